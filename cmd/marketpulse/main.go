package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"marketpulse/internal/adapters/sink/redislive"
	"marketpulse/internal/adapters/sink/warehouse"
	"marketpulse/internal/adapters/source/binance"
	"marketpulse/internal/adapters/source/defillama"
	"marketpulse/internal/adapters/source/synthetic"
	"marketpulse/internal/adapters/web"
	"marketpulse/internal/application/ports"
	"marketpulse/internal/application/usecases"
	"marketpulse/internal/config"
	"marketpulse/internal/loader"
	"marketpulse/internal/logger"
	"marketpulse/internal/metrics"
	"marketpulse/internal/scheduler"
)

func main() {
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	help := flag.Bool("help", false, "show usage")
	flag.Parse()

	if *help {
		fmt.Println("Usage: marketpulse [--port <N>]")
		fmt.Println("  --port N  override the configured HTTP port")
		return
	}

	log := logger.New()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	live, err := redislive.New(cfg.Cache)
	if err != nil {
		log.Fatal("failed to connect to live store", zap.Error(err))
	}
	defer live.Close()

	analytical, err := warehouse.New(cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to analytical store", zap.Error(err))
	}
	defer analytical.Close()

	recorder := metrics.New(metrics.DefaultRingSize)
	manager := scheduler.NewManager(log)

	for _, src := range buildSources(cfg) {
		writer := loader.NewSnapshotWriter(live, analytical, cfg.Scheduler.PendingLimit,
			log.With(zap.String("source", src.Name())))
		manager.Register(scheduler.NewRunner(src, writer, recorder, scheduler.RealClock(), cfg.Scheduler, log))
	}

	if len(manager.Sources()) == 0 {
		log.Fatal("no sources enabled")
	}
	log.Info("sources configured", zap.Strings("sources", manager.Sources()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	manager.Start(ctx)

	rollups := scheduler.NewRollupRunner(analytical, scheduler.RealClock(), cfg.Scheduler.RollupInterval, log)
	go rollups.Run(ctx)

	queries := usecases.NewSnapshotQueryUseCase(live, analytical, log)
	server := web.NewServer(cfg.Server.Port, queries, manager, recorder, log)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info("shutdown signal received", zap.String("signal", s.String()))
	case err := <-serverErr:
		log.Error("HTTP server failed", zap.Error(err))
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}

	manager.Wait()
	log.Info("shutdown complete")
}

// buildSources assembles every enabled source. An interval of zero disables a
// source; the synthetic source is only built when explicitly configured.
func buildSources(cfg *config.Config) []ports.SourcePort {
	var sources []ports.SourcePort

	if cfg.Sources.Binance.Interval > 0 {
		sources = append(sources, binance.New(cfg.Sources.Binance))
	}
	if cfg.Sources.Protocols.Interval > 0 {
		sources = append(sources, defillama.NewProtocols(cfg.Sources.Protocols))
	}
	if cfg.Sources.Chains.Interval > 0 {
		sources = append(sources, defillama.NewChains(cfg.Sources.Chains))
	}
	if cfg.Sources.Stablecoins.Interval > 0 {
		sources = append(sources, defillama.NewStablecoins(cfg.Sources.Stablecoins))
	}
	if cfg.Sources.Synthetic.Interval > 0 {
		sources = append(sources, synthetic.New(cfg.Sources.Synthetic))
	}

	return sources
}
