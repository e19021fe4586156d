package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"gridwatch/internal/alerting"
	apihttp "gridwatch/internal/api/http"
	"gridwatch/internal/config"
	directory "gridwatch/internal/directory/domain"
	"gridwatch/internal/directory/redisbus"
	"gridwatch/internal/directory/replication"
	"gridwatch/internal/observability/metrics"
	"gridwatch/internal/reports"
	"gridwatch/internal/telemetry/aggregation"
	telemetry "gridwatch/internal/telemetry/domain"
	telemetrypostgres "gridwatch/internal/telemetry/infrastructure/postgres"
	"gridwatch/internal/telemetry/interfaces/ingest"
	"gridwatch/internal/telemetry/routing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	redisClient, err := redisbus.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("redis error: %v", err)
	}
	defer redisClient.Close()

	metrics.Init()

	store := directory.NewStore()
	replicator, err := replication.NewReplicator(store, logger)
	if err != nil {
		logger.Fatalf("replicator error: %v", err)
	}
	subscriber, err := redisbus.NewSubscriber(redisClient, cfg.EventsChannel, logger)
	if err != nil {
		logger.Fatalf("subscriber error: %v", err)
	}
	go func() {
		err := subscriber.Run(context.Background(), func(ctx context.Context, env redisbus.Envelope) error {
			return replicator.HandleEvent(ctx, env.EventType, env.Payload)
		})
		logger.Fatalf("directory subscription stopped: %v", err)
	}()

	aggregateRepo, err := telemetrypostgres.NewAggregateRepository(db)
	if err != nil {
		logger.Fatalf("aggregate repository error: %v", err)
	}

	alertSinks := []telemetry.AlertSink{alerting.NewLogSink(logger)}
	queueSink, err := alerting.NewRedisQueueSink(redisClient, cfg.AlertQueue)
	if err != nil {
		logger.Fatalf("alert queue sink error: %v", err)
	}
	alertSinks = append(alertSinks, queueSink)
	if cfg.AlertWebhookURL != "" {
		webhookSink, err := alerting.NewWebhookSink(cfg.AlertWebhookURL)
		if err != nil {
			logger.Fatalf("alert webhook error: %v", err)
		}
		alertSinks = append(alertSinks, webhookSink)
	}
	alertSink := alerting.NewMultiSink(alertSinks...)

	router, err := routing.NewRouter(routing.Config{
		ShardCount:    cfg.ShardCount,
		QueueCapacity: cfg.QueueCapacity,
		HashSeed:      cfg.HashSeed,
	}, logger)
	if err != nil {
		logger.Fatalf("router error: %v", err)
	}

	for shard := 0; shard < router.ShardCount(); shard++ {
		aggregator, err := aggregation.NewAggregator(shard, cfg.WindowSize, store, aggregateRepo, alertSink, logger)
		if err != nil {
			logger.Fatalf("aggregator %d error: %v", shard, err)
		}
		queue, err := router.Queue(shard)
		if err != nil {
			logger.Fatalf("shard %d queue error: %v", shard, err)
		}
		go aggregator.Run(context.Background(), queue)
	}
	logger.Printf("aggregation running: %d shards, window size %d", cfg.ShardCount, cfg.WindowSize)

	readingsHandler, err := ingest.NewReadingsHandler(router, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}
	csvHandler, err := ingest.NewCSVReadingsHandler(router, logger)
	if err != nil {
		logger.Fatalf("csv ingest handler error: %v", err)
	}
	consumptionHandler, err := apihttp.NewConsumptionHandler(aggregateRepo)
	if err != nil {
		logger.Fatalf("consumption handler error: %v", err)
	}
	xlsxHandler, err := reports.NewExportHandler(aggregateRepo, reports.FormatXLSX)
	if err != nil {
		logger.Fatalf("xlsx export handler error: %v", err)
	}
	pdfHandler, err := reports.NewExportHandler(aggregateRepo, reports.FormatPDF)
	if err != nil {
		logger.Fatalf("pdf export handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/ingest/readings", readingsHandler)
	mux.Handle("/ingest/readings.csv", csvHandler)
	mux.Handle("/api/v1/consumption", consumptionHandler)
	mux.Handle("/api/v1/consumption/export.xlsx", xlsxHandler)
	mux.Handle("/api/v1/consumption/export.pdf", pdfHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
