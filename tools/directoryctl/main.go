// Command directoryctl publishes device/user lifecycle events onto the
// broadcast channel, standing in for the CRUD services that normally
// originate them. Useful for seeding a directory replica or exercising
// the replication path by hand.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"

	directory "gridwatch/internal/directory/domain"
	"gridwatch/internal/directory/redisbus"
)

type config struct {
	redisAddr     string
	redisPassword string
	redisDB       int
	channel       string

	action    string
	deviceID  string
	userID    string
	userName  string
	threshold float64
}

func parseConfig() config {
	var cfg config
	flag.StringVar(&cfg.redisAddr, "redis", "localhost:6379", "redis address")
	flag.StringVar(&cfg.redisPassword, "redis-password", "", "redis password")
	flag.IntVar(&cfg.redisDB, "redis-db", 0, "redis database")
	flag.StringVar(&cfg.channel, "channel", "directory.sync", "broadcast channel")
	flag.StringVar(&cfg.action, "action", "", "one of: create-device, delete-device, create-user, delete-user")
	flag.StringVar(&cfg.deviceID, "device", "", "device id (uuid)")
	flag.StringVar(&cfg.userID, "user", "", "user id (uuid)")
	flag.StringVar(&cfg.userName, "name", "", "user name (create-user)")
	flag.Float64Var(&cfg.threshold, "threshold", 0, "max consumption threshold (create-device)")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseConfig()

	event, err := buildEvent(cfg)
	if err != nil {
		log.Fatalf("bad arguments: %v", err)
	}

	client, err := redisbus.NewClient(cfg.redisAddr, cfg.redisPassword, cfg.redisDB)
	if err != nil {
		log.Fatalf("redis error: %v", err)
	}
	defer client.Close()

	publisher, err := redisbus.NewPublisher(client, cfg.channel)
	if err != nil {
		log.Fatalf("publisher error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := publisher.Publish(ctx, event); err != nil {
		log.Fatalf("publish error: %v", err)
	}
	log.Printf("published %s to %s", event.EventType(), cfg.channel)
}

func buildEvent(cfg config) (directory.Event, error) {
	switch cfg.action {
	case "create-device":
		deviceID, err := uuid.Parse(cfg.deviceID)
		if err != nil {
			return nil, err
		}
		event := directory.CreateOrUpdateDevice{
			DeviceID:       deviceID,
			MaxConsumption: cfg.threshold,
		}
		if cfg.userID != "" {
			ownerID, err := uuid.Parse(cfg.userID)
			if err != nil {
				return nil, err
			}
			event.OwnerUserID = &ownerID
		}
		return event, nil
	case "delete-device":
		deviceID, err := uuid.Parse(cfg.deviceID)
		if err != nil {
			return nil, err
		}
		return directory.DeleteDevice{DeviceID: deviceID}, nil
	case "create-user":
		userID, err := uuid.Parse(cfg.userID)
		if err != nil {
			return nil, err
		}
		return directory.CreateUser{UserID: userID, Name: cfg.userName}, nil
	case "delete-user":
		userID, err := uuid.Parse(cfg.userID)
		if err != nil {
			return nil, err
		}
		return directory.DeleteUser{UserID: userID}, nil
	default:
		return nil, flag.ErrHelp
	}
}
