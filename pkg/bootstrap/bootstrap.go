// Package bootstrap holds the startup and shutdown plumbing shared by the
// binaries under cmd/.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

// Load reads an optional .env file, then the environment config, and builds
// the service logger from it. The returned logger is usable even when err is
// non-nil.
func Load(service string) (*config.Config, *logger.Logger, error) {
	logg := logger.New(logger.Options{ServiceName: service})
	if err := godotenv.Load(); err != nil {
		logg.Debug(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, logg, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = service

	return cfg, logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	}), nil
}

// Closers releases resources in reverse registration order.
type Closers struct {
	mu    sync.Mutex
	names []string
	fns   []func() error
}

func (c *Closers) Add(name string, fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = append(c.names, name)
	c.fns = append(c.fns, fn)
}

// Close runs every closer and logs the ones that fail.
func (c *Closers) Close(ctx context.Context, logg *logger.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.fns) - 1; i >= 0; i-- {
		if err := c.fns[i](); err != nil && logg != nil {
			logg.Error(logg.WithField(ctx, "resource", c.names[i]), "close failed", err)
		}
	}
	c.names, c.fns = nil, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// RunAll runs every loop until the first one returns, then cancels the rest.
// Cancellation of ctx is a clean shutdown and reported as nil.
func RunAll(ctx context.Context, loops ...func(context.Context) error) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for _, loop := range loops {
		group.Go(func() error { return loop(groupCtx) })
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Exit logs err and terminates the process when err is non-nil.
func Exit(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, msg, err)
	os.Exit(1)
}
