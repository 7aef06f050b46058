package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vendorledger/pkg/config"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func healthy() Pinger { return pingFunc(func(context.Context) error { return nil }) }

func failing(msg string) Pinger {
	return pingFunc(func(context.Context) error { return errors.New(msg) })
}

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "test"}}
}

func TestHealthLive(t *testing.T) {
	resp := httptest.NewRecorder()
	HealthLive(testConfig())(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "test", resp.Header().Get(envHeader))
	assert.JSONEq(t, `{"data":{"status":"live"}}`, resp.Body.String())
}

func TestHealthReadyAllHealthy(t *testing.T) {
	deps := map[string]Pinger{"database": healthy(), "redis": healthy(), "unused": nil}
	resp := httptest.NewRecorder()
	HealthReady(testConfig(), nil, deps)(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"data":{"status":"ready","checks":{"database":"ok","redis":"ok"}}}`, resp.Body.String())
}

func TestHealthReadyReportsEveryFailure(t *testing.T) {
	deps := map[string]Pinger{
		"database": failing("connection refused"),
		"redis":    failing("i/o timeout"),
		"pubsub":   healthy(),
	}
	resp := httptest.NewRecorder()
	HealthReady(testConfig(), nil, deps)(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Dependencies []string          `json:"dependencies"`
				Checks       map[string]string `json:"checks"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "DEPENDENCY_ERROR", body.Error.Code)
	assert.Equal(t, []string{"database", "redis"}, body.Error.Details.Dependencies)
	assert.Equal(t, map[string]string{"database": "unavailable", "redis": "unavailable", "pubsub": "ok"}, body.Error.Details.Checks)
	assert.NotContains(t, resp.Body.String(), "connection refused")
}
