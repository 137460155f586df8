package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"trackcore/config"
	"trackcore/engine"
	"trackcore/messaging"
	"trackcore/snapcache"
	"trackcore/store"
	"trackcore/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "trackcore.yaml", "path to config file")
	flag.Parse()

	if *showVersion {
		fmt.Println("trackcore", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("trackcore: database open (%s)", cfg.Database.Driver)

	// Redis snapshot mirror
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("trackcore: redis not available (%v), serving snapshots from SQL", err)
		redisClient.Close()
		redisClient = nil
	} else {
		log.Printf("trackcore: redis connected (%s)", cfg.Redis.Address)
		defer redisClient.Close()
	}
	cancel()

	mirror := snapcache.NewMirror(db, redisClient, cfg.Tracking.IdleTimeout)

	// Messaging: Kafka status stream + MQTT agent uplink. Either leg
	// can be down; the outbox and REST paths keep working.
	msgClient := messaging.NewClient(&cfg.Messaging)
	if err := msgClient.ConnectKafka(); err != nil {
		log.Printf("trackcore: kafka connect failed (%v)", err)
	}
	if err := msgClient.ConnectMQTT(); err != nil {
		log.Printf("trackcore: mqtt connect failed (%v)", err)
	}
	defer msgClient.Close()

	// Engine
	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: *configPath,
		DB:         db,
		Mirror:     mirror,
		MsgClient:  msgClient,
	})
	eng.Start()
	defer eng.Stop()

	// Web server
	handler, stopWeb := www.NewRouter(eng)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		log.Printf("trackcore: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("trackcore: ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("trackcore: shutting down...")
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Printf("trackcore: stopped")
}
