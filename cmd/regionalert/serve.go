package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/regionalert/internal/core"
	"github.com/JonMunkholm/regionalert/internal/notify"
	"github.com/JonMunkholm/regionalert/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API for alerts and CSV imports.

With the memory queue backend, notifications are delivered by an in-process
consumer. With redis or kafka, run "regionalert consume" separately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}

	ch, err := a.openChannel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	var consumers sync.WaitGroup
	if cfg.Queue.Backend == notify.BackendMemory {
		consumer, err := a.newConsumer(ch)
		if err != nil {
			return err
		}
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			if err := consumer.Run(jobCtx); err != nil {
				a.logger.Error("consumer stopped with error", "error", err)
			}
		}()
	}

	var jobs sync.WaitGroup
	if cfg.History.Enabled {
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			core.RunHistoryRetention(jobCtx, st, core.RetentionConfig{
				Retention:     cfg.History.Retention,
				CheckInterval: cfg.History.CheckInterval,
			}, a.logger)
		}()
	}

	limiter := core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime)
	importer := core.NewImporter(core.NewParser(a.logger), st,
		core.WithChunkSize(cfg.Import.ChunkSize),
		core.WithHistory(st),
		core.WithLogger(a.logger),
	)
	dispatcher := core.NewDispatcher(st, ch, core.DispatcherConfig{
		LookupTimeout:  cfg.Alert.LookupTimeout,
		PublishTimeout: cfg.Alert.PublishTimeout,
	}, a.logger)

	srv := web.NewServer(cfg, web.Deps{
		Dispatcher: dispatcher,
		Importer:   importer,
		History:    st,
		Health:     st,
		Limiter:    limiter,
	}, a.logger)

	a.logger.Info("starting",
		"addr", cfg.Server.Addr(),
		"db_driver", cfg.Database.Driver,
		"queue_backend", cfg.Queue.Backend,
		"sms_provider", cfg.SMS.Provider,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if status := limiter.Status(); status.Active > 0 {
		a.logger.Info("waiting for imports to complete", "active", status.Active)
		if err := limiter.WaitForDrain(shutdownCtx); err != nil {
			a.logger.Warn("imports did not complete in time", "error", err)
		}
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}

	// Closing the memory channel lets the in-process consumer flush what is
	// queued. Other backends are closed by the deferred Close.
	if cfg.Queue.Backend == notify.BackendMemory {
		_ = ch.Close()
		if !waitGroup(shutdownCtx, &consumers) {
			a.logger.Warn("queued notifications not flushed before shutdown timeout")
		}
	}

	cancelJobs()
	jobs.Wait()
	a.logger.Info("shutdown complete")
	return nil
}

// waitGroup waits for wg or ctx, whichever comes first. It reports whether
// wg finished.
func waitGroup(ctx context.Context, wg *sync.WaitGroup) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
