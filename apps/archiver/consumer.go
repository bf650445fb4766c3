package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/huddlechat/huddle/pkg/db"
	"github.com/huddlechat/huddle/pkg/model"
	"github.com/huddlechat/huddle/pkg/snowflake"
)

// Consumer drains the gateway's event firehose into the events_archive
// table. The archive is for offline analysis; the message log written by the
// gateway remains the canonical history.
type Consumer struct {
	reader *kafka.Reader
	db     *db.Session
	ids    *snowflake.Node
}

func NewConsumer(brokers []string, topic, groupID string, session *db.Session, ids *snowflake.Node) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: r, db: session, ids: ids}
}

func (c *Consumer) Consume(ctx context.Context) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			log.Printf("Error reading message: %v. Retrying in 1s...", err)
			time.Sleep(1 * time.Second)
			continue
		}

		var ev model.Event
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			log.Printf("Failed to unmarshal event: %v", err)
			continue
		}

		// Presence events have no room; archive them under a synthetic
		// partition so they stay queryable.
		roomID := ev.RoomID
		if roomID == "" {
			roomID = "_global"
		}
		// Ephemeral events carry no id of their own.
		archiveID := ev.ID
		if archiveID == 0 {
			archiveID = c.ids.Generate()
		}

		q := `INSERT INTO events_archive (room_id, id, event_type, payload, ts) VALUES (?, ?, ?, ?, ?)`
		if err := c.db.Query(q, roomID, archiveID, string(ev.Type), string(m.Value), time.Now().UTC()).Exec(); err != nil {
			log.Printf("Failed to archive %s event: %v", ev.Type, err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
