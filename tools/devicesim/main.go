// Command devicesim replays a CSV of telemetry readings against the
// ingest endpoint, in fixed-size batches on a ticker. With the default
// batch of 6 lines per second, one tick feeds one full reporting hour
// per device. The file loops at EOF so a small fixture can run forever.
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

type config struct {
	csvPath  string
	url      string
	batch    int
	interval time.Duration
	once     bool
}

func parseConfig() config {
	var cfg config
	flag.StringVar(&cfg.csvPath, "csv", "sensor.csv", "path to the readings CSV (timestamp,deviceId,value)")
	flag.StringVar(&cfg.url, "url", "http://localhost:8080/ingest/readings.csv", "ingest endpoint")
	flag.IntVar(&cfg.batch, "batch", 6, "lines per tick")
	flag.DurationVar(&cfg.interval, "interval", time.Second, "tick interval")
	flag.BoolVar(&cfg.once, "once", false, "send the file once and exit instead of looping")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseConfig()
	if cfg.batch <= 0 {
		log.Fatal("batch must be > 0")
	}

	file, err := os.Open(cfg.csvPath)
	if err != nil {
		log.Fatalf("open csv: %v", err)
	}
	defer file.Close()
	reader := bufio.NewScanner(file)

	client := &http.Client{Timeout: 10 * time.Second}
	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()

	log.Printf("replaying %s -> %s (%d lines per %s)", cfg.csvPath, cfg.url, cfg.batch, cfg.interval)
	for range ticker.C {
		lines, eof := nextBatch(reader, cfg.batch)
		if len(lines) > 0 {
			if err := postBatch(client, cfg.url, lines); err != nil {
				log.Printf("send batch: %v", err)
			}
		}
		if !eof {
			continue
		}
		if cfg.once {
			log.Print("end of csv reached, exiting")
			return
		}
		log.Print("end of csv reached, restarting")
		if _, err := file.Seek(0, 0); err != nil {
			log.Fatalf("rewind csv: %v", err)
		}
		reader = bufio.NewScanner(file)
	}
}

func nextBatch(reader *bufio.Scanner, batch int) ([]string, bool) {
	var lines []string
	for len(lines) < batch {
		if !reader.Scan() {
			return lines, true
		}
		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, false
}

func postBatch(client *http.Client, url string, lines []string) error {
	body := strings.Join(lines, "\n")
	resp, err := client.Post(url, "text/csv", bytes.NewReader([]byte(body)))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ingest returned %d", resp.StatusCode)
	}
	return nil
}
