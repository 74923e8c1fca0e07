package main

import (
	"context"
	"log"
	"time"

	"github.com/chain-assassin/coordinator/internal/api"
	"github.com/chain-assassin/coordinator/internal/chainadapter"
	"github.com/chain-assassin/coordinator/internal/config"
	"github.com/chain-assassin/coordinator/internal/coordinator"
	"github.com/chain-assassin/coordinator/internal/metrics"
	"github.com/chain-assassin/coordinator/internal/realtime"
	"github.com/chain-assassin/coordinator/internal/settlement"
	"github.com/chain-assassin/coordinator/internal/store"
	"github.com/chain-assassin/coordinator/internal/targetchain"
)

func main() {
	log.Println("Starting chain-assassin coordinator...")

	cfg := config.Load()

	var st store.Store
	pg, err := store.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Printf("Warning: failed to connect to PostgreSQL, falling back to in-memory store: %v", err)
		st = store.NewMemoryStore()
	} else {
		defer pg.Close()
		if err := pg.InitSchema(); err != nil {
			log.Printf("Warning: DB schema init failed: %v", err)
		}
		st = pg
	}

	chain := targetchain.New(st)
	hub := realtime.NewHub()
	reg, promReg := metrics.NewRegistry()

	client := settlement.NewClient(settlement.Config{
		RPCURL:             cfg.RPCURL,
		ContractAddress:    cfg.ContractAddress,
		OperatorPrivateKey: cfg.OperatorPrivateKey,
	})

	coord := coordinator.New(st, chain, hub, nil, client, cfg, reg)
	adapter := chainadapter.New(st, client, coord)
	coord.SetAdapter(adapter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := coord.Resume(ctx); err != nil {
		log.Printf("Warning: crash recovery failed: %v", err)
	}

	go adapter.RunPoller(ctx, time.Duration(cfg.PollingIntervalMs)*time.Millisecond)

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := coord.CheckAutoStart(ctx); err != nil {
					log.Printf("CheckAutoStart: %v", err)
				}
			}
		}
	}()

	r := api.SetupRouter(coord, st, hub, adapter, promReg)

	log.Printf("Coordinator running on :%s\n", cfg.Port)
	if err := r.Run(cfg.Host + ":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
