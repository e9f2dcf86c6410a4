package main

import (
	"context"
	"encoding/json"
	"flag"

	"github.com/joripage/clob-engine/config"
	"github.com/joripage/clob-engine/pkg/exchange/repo"
	"github.com/joripage/clob-engine/pkg/exchange/worker"
	"github.com/joripage/clob-engine/pkg/infra"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}

	configBytes, err := json.MarshalIndent(cfg, "", "   ")
	if err != nil {
		zap.S().Warnf("could not convert config to JSON: %v", err)
	} else {
		zap.S().Debugf("load config %s", string(configBytes))
	}

	ctx := context.Background()

	// NATS
	nc, err := nats.Connect(cfg.Nats.URL)
	if err != nil {
		panic(err)
	}
	defer nc.Close()
	js, err := nc.JetStream()
	if err != nil {
		panic(err)
	}

	// Ensure stream
	_, _ = js.AddStream(&nats.StreamConfig{
		Name:     cfg.Nats.Stream,
		Subjects: []string{cfg.Nats.Subject},
	})

	// init db, migrating to the latest schema before consuming
	db := infra.GetMigrateTool().ConnectAndMigrate(cfg.SettleDB, "file://migration/sql")

	// init repo
	sqlRepo := repo.NewRepo(db)

	// Worker
	w := worker.NewWorker(sqlRepo)
	if err := w.StartConsumer(ctx, js, cfg.Nats.Subject, cfg.Nats.Durable); err != nil {
		zap.S().Errorf("consumer stopped with err: %v", err)
	}
}
