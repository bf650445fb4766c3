package main

import (
	"log"
	"net/http"

	"github.com/huddlechat/huddle/pkg/auth"
	"github.com/huddlechat/huddle/pkg/config"
	"github.com/huddlechat/huddle/pkg/db"
	"github.com/huddlechat/huddle/pkg/presence"
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

	mirror := presence.NewMirror(cfg.RedisAddr)
	defer mirror.Close()

	srv := &server{
		rooms:     st,
		messages:  st,
		reactions: st,
		mirror:    mirror,
		verifier:  auth.NewVerifier(cfg.JWTSecret, cfg.TokenTTL),
	}

	log.Printf("API Service Starting on %s...", cfg.APIAddr)
	if err := http.ListenAndServe(cfg.APIAddr, corsMiddleware(srv.router())); err != nil {
		log.Fatal(err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
