package main

import (
	"context"
	"log"

	"github.com/huddlechat/huddle/pkg/config"
	"github.com/huddlechat/huddle/pkg/db"
	"github.com/huddlechat/huddle/pkg/snowflake"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("KAFKA_BROKERS must be set for the archiver")
	}

	ids, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		log.Fatalf("Failed to initialize snowflake node: %v", err)
	}

	session, err := db.NewSession(cfg.ScyllaHosts, cfg.Keyspace)
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB: %v", err)
	}
	defer session.Close()

	consumer := NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, "archiver-group", session, ids)
	defer consumer.Close()

	log.Println("Starting firehose archiver...")
	consumer.Consume(context.Background())
}
