package main

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/huddlechat/huddle/pkg/auth"
	"github.com/huddlechat/huddle/pkg/config"
	"github.com/huddlechat/huddle/pkg/db"
	"github.com/huddlechat/huddle/pkg/hub"
	"github.com/huddlechat/huddle/pkg/presence"
	"github.com/huddlechat/huddle/pkg/session"
	"github.com/huddlechat/huddle/pkg/snowflake"
	"github.com/huddlechat/huddle/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ids, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		log.Fatalf("Failed to initialize snowflake node: %v", err)
	}

	scylla, err := db.NewSession(cfg.ScyllaHosts, cfg.Keyspace)
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB: %v", err)
	}
	defer scylla.Close()
	st := store.NewScylla(scylla, ids)

	var firehose *hub.Firehose
	if len(cfg.KafkaBrokers) > 0 {
		firehose = hub.NewFirehose(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer firehose.Close()
	}
	h := hub.New(cfg.SendQueue, firehose)

	mirror := presence.NewMirror(cfg.RedisAddr)
	defer mirror.Close()

	var manager *session.Manager
	tracker := presence.New(cfg.PresenceTTL, func(userID string, online bool) {
		manager.PresenceChanged(userID, online)
	}, mirror)
	go tracker.Run()
	defer tracker.Close()

	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.TokenTTL)
	manager = session.NewManager(verifier, h, st, st, st, tracker, mirror)

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(manager, w, r)
	})
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	log.Printf("Gateway Service Starting on %s...", cfg.GatewayAddr)
	if err := http.ListenAndServe(cfg.GatewayAddr, nil); err != nil {
		log.Fatal(err)
	}
}
