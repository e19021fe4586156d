package routing

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"

	"gridwatch/internal/observability/metrics"
	telemetry "gridwatch/internal/telemetry/domain"
)

// Config is the routing topology. Shard count and hash seed are explicit,
// injected configuration: a replica must never infer its shard assignment
// from deployment naming, because renumbered replicas would silently
// re-route live devices.
type Config struct {
	ShardCount    int
	QueueCapacity int
	HashSeed      uint32
}

func (c Config) validate() error {
	if c.ShardCount < 1 {
		return fmt.Errorf("routing: shard count must be >= 1, got %d", c.ShardCount)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("routing: queue capacity must be >= 1, got %d", c.QueueCapacity)
	}
	return nil
}

// Router deterministically maps each device onto one of N shard queues.
// All readings of one device land on the same shard for a fixed N, which
// gives every per-device window buffer a single owning worker.
type Router struct {
	shardCount uint64
	seed       uint32
	queues     []chan telemetry.Reading
	logger     *log.Logger
}

// NewRouter constructs a router with one bounded queue per shard.
func NewRouter(cfg Config, logger *log.Logger) (*Router, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	queues := make([]chan telemetry.Reading, cfg.ShardCount)
	for i := range queues {
		queues[i] = make(chan telemetry.Reading, cfg.QueueCapacity)
	}
	return &Router{
		shardCount: uint64(cfg.ShardCount),
		seed:       cfg.HashSeed,
		queues:     queues,
		logger:     logger,
	}, nil
}

// ShardFor returns the shard index for a device. Pure function of
// (deviceID, shardCount, seed); stable across calls and replicas.
func (r *Router) ShardFor(deviceID uuid.UUID) int {
	return int(murmur3.Sum64WithSeed(deviceID[:], r.seed) % r.shardCount)
}

// ShardCount reports the configured number of shards.
func (r *Router) ShardCount() int {
	return len(r.queues)
}

// Queue exposes one shard's work queue to its aggregator worker.
func (r *Router) Queue(shard int) (<-chan telemetry.Reading, error) {
	if shard < 0 || shard >= len(r.queues) {
		return nil, fmt.Errorf("routing: shard %d out of range [0,%d)", shard, len(r.queues))
	}
	return r.queues[shard], nil
}

// Route validates a reading and enqueues it on its shard. Delivery is
// at-most-once: a saturated queue drops the reading rather than blocking
// the producer. Returns false when the reading did not reach a shard.
func (r *Router) Route(reading telemetry.Reading) bool {
	if err := reading.Validate(); err != nil {
		r.logger.Printf("router: rejecting record: %v", err)
		metrics.IncReadingMalformed()
		return false
	}

	shard := r.ShardFor(reading.DeviceID)
	queue := r.queues[shard]
	select {
	case queue <- reading:
		metrics.IncReadingRouted(shard)
		metrics.SetShardQueueDepth(shard, len(queue))
		return true
	default:
		r.logger.Printf("router: shard %d queue full, dropping reading for device %s", shard, reading.DeviceID)
		metrics.IncReadingDropped()
		return false
	}
}

// Close closes every shard queue. Workers drain what is left and exit.
// Route must not be called after Close.
func (r *Router) Close() {
	for _, queue := range r.queues {
		close(queue)
	}
}
