package controllers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/angelmondragon/vendorledger/api/responses"
	"github.com/angelmondragon/vendorledger/pkg/config"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

const (
	readinessTimeout = 2 * time.Second
	envHeader        = "X-VendorLedger-Env"
)

// Pinger is any dependency the readiness probe checks.
type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings all dependencies in parallel under one deadline. Any
// failure answers 503 listing every failed dependency.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks, failed := pingAll(ctx, deps)
		if len(failed) > 0 {
			err := pkgerrors.Wrap(pkgerrors.CodeDependency, failed[0].err, "dependencies unavailable")
			names := make([]string, len(failed))
			for i, f := range failed {
				names[i] = f.name
			}
			responses.WriteError(r.Context(), logg, w, err.WithDetails(map[string]any{"dependencies": names, "checks": checks}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}

type pingFailure struct {
	name string
	err  error
}

// pingAll returns a status per dependency and the failures sorted by name.
func pingAll(ctx context.Context, deps map[string]Pinger) (map[string]string, []pingFailure) {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]string, len(deps))
		failed []pingFailure
	)
	for name, dep := range deps {
		if dep == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := dep.Ping(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[name] = "unavailable"
				failed = append(failed, pingFailure{name: name, err: err})
				return
			}
			checks[name] = "ok"
		}()
	}
	wg.Wait()
	sort.Slice(failed, func(i, j int) bool { return failed[i].name < failed[j].name })
	return checks, failed
}
