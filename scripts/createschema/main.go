// Command createschema bootstraps the chat keyspace and tables. Pass -drop to
// tear the keyspace down first.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/huddlechat/huddle/pkg/config"
	"github.com/huddlechat/huddle/pkg/db"
)

var tables = []string{
	`CREATE TABLE IF NOT EXISTS rooms (
		id text,
		name text,
		creator_id text,
		created_at timestamp,
		PRIMARY KEY (id)
	)`,
	`CREATE TABLE IF NOT EXISTS room_members (
		room_id text,
		user_id text,
		joined_at timestamp,
		PRIMARY KEY (room_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		room_id text,
		id bigint,
		user_id text,
		username text,
		body text,
		file_url text,
		ts timestamp,
		PRIMARY KEY (room_id, id)
	) WITH CLUSTERING ORDER BY (id DESC)`,
	`CREATE TABLE IF NOT EXISTS messages_by_id (
		id bigint,
		room_id text,
		user_id text,
		username text,
		body text,
		file_url text,
		ts timestamp,
		PRIMARY KEY (id)
	)`,
	`CREATE TABLE IF NOT EXISTS reactions (
		message_id bigint,
		user_id text,
		emoji text,
		created_at timestamp,
		PRIMARY KEY (message_id, user_id, emoji)
	)`,
	`CREATE TABLE IF NOT EXISTS events_archive (
		room_id text,
		id bigint,
		event_type text,
		payload text,
		ts timestamp,
		PRIMARY KEY (room_id, id)
	) WITH CLUSTERING ORDER BY (id DESC)`,
}

func main() {
	drop := flag.Bool("drop", false, "drop the keyspace before creating it")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	sysSession, err := db.NewSession(cfg.ScyllaHosts, "system")
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB system keyspace: %v", err)
	}

	if *drop {
		log.Printf("Dropping keyspace %s...", cfg.Keyspace)
		if err := sysSession.Query(fmt.Sprintf(`DROP KEYSPACE IF EXISTS %s`, cfg.Keyspace)).Exec(); err != nil {
			log.Fatalf("Failed to drop keyspace: %v", err)
		}
	}

	q := fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : 1 }`, cfg.Keyspace)
	if err := sysSession.Query(q).Exec(); err != nil {
		log.Fatalf("Failed to create keyspace: %v", err)
	}
	sysSession.Close()

	session, err := db.NewSession(cfg.ScyllaHosts, cfg.Keyspace)
	if err != nil {
		log.Fatalf("Failed to connect to %s keyspace: %v", cfg.Keyspace, err)
	}
	defer session.Close()

	for _, ddl := range tables {
		if err := session.Query(ddl).Exec(); err != nil {
			log.Fatalf("Failed to create table: %v", err)
		}
	}
	log.Printf("Schema ready in keyspace %s", cfg.Keyspace)
}
