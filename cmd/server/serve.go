package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/reqfaster-debug/bunker-ws/internal/character"
	"github.com/reqfaster-debug/bunker-ws/internal/httpapi"
	"github.com/reqfaster-debug/bunker-ws/internal/hub"
	"github.com/reqfaster-debug/bunker-ws/internal/narrator"
	"github.com/reqfaster-debug/bunker-ws/internal/registry"
	"github.com/reqfaster-debug/bunker-ws/internal/snapshot"
)

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serve(ctx context.Context, cfg *Config) error {
	log, err := newLogger(cfg.verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	store, err := snapshot.Open(cfg.db)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer store.Close()

	persister := snapshot.NewPersister(store, log)
	defer persister.Close()

	reg := registry.New()
	h := hub.NewHub(ctx, hub.Deps{
		Rules:    cfg.rules(),
		Tables:   character.DefaultTables(),
		Params:   cfg.params(),
		Persist:  persister,
		Registry: reg,
		Log:      log,
	})

	snapshots, err := store.LoadAll()
	if err != nil {
		return fmt.Errorf("load snapshots: %w", err)
	}
	h.Rehydrate(snapshots)

	nar := narrator.NewStatic(rand.New(rand.NewSource(time.Now().UnixNano())))
	handler := httpapi.SetupRoutes(h, reg, nar, log)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, fmt.Sprint(cfg.port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.snapshotEvery > 0 {
		go func() {
			ticker := time.NewTicker(cfg.snapshotEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					h.Inbox() <- hub.SnapshotAll{}
				}
			}
		}()
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	h.Inbox() <- hub.ShutdownHub{}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
