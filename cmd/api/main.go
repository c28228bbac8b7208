package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"taskManager/internal/app"
	"taskManager/internal/config"
	"taskManager/internal/logger"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configDir := flag.String("config", ".", "directory holding an optional config.yml")
	rollback := flag.Bool("rollback", false, "roll back postgres migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if *rollback {
		if err := logger.Init(cfg.IsDevelopment()); err != nil {
			return err
		}
		defer logger.Sync()
		return app.Rollback(context.Background(), cfg)
	}

	application, err := app.New(cfg).Init(context.Background())
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	var runErr error
	go func() {
		runErr = application.Run(ctx)
		close(done)
	}()

	// SIGINT/SIGTERM cancel the server context; Run then drains and closes the store.
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				cancel()
				select {
				case <-done:
					return runErr
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		},
	)

	select {
	case <-done:
		// listener failed before any signal arrived
		return runErr
	case code := <-wait:
		logger.Info("App: exited", zap.Int("exit_code", code))
		if code != 0 {
			return fmt.Errorf("shutdown finished with exit code %d", code)
		}
		return nil
	}
}
