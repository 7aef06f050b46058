package middleware

import (
	"net/http"
	"strings"
	"time"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
)

type idempotencyRule struct {
	method   string
	segments []string
	ttl      time.Duration
}

// Money-moving writes require an Idempotency-Key. Checkout is absent: the
// order dedup key is enforced by the orders service.
var idempotencyRules = []idempotencyRule{
	rule(http.MethodPost, "/api/v1/vendor/payouts", criticalIdempotencyTTL),
	rule(http.MethodPost, "/api/v1/vendor/payouts/{payoutId}/cancel", defaultIdempotencyTTL),
	rule(http.MethodPost, "/api/admin/v1/payouts/{payoutId}/process", criticalIdempotencyTTL),
	rule(http.MethodPost, "/api/admin/v1/payouts/{payoutId}/approve", defaultIdempotencyTTL),
	rule(http.MethodPost, "/api/admin/v1/payouts/{payoutId}/processing", defaultIdempotencyTTL),
	rule(http.MethodPost, "/api/admin/v1/payouts/{payoutId}/reject", defaultIdempotencyTTL),
}

func rule(method, template string, ttl time.Duration) idempotencyRule {
	return idempotencyRule{method: method, segments: splitPath(template), ttl: ttl}
}

// matches compares path segment by segment; "{param}" matches any non-empty segment.
func (r idempotencyRule) matches(method, path string) bool {
	if r.method != method {
		return false
	}
	parts := splitPath(path)
	if len(parts) != len(r.segments) {
		return false
	}
	for i, seg := range r.segments {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if parts[i] == "" {
				return false
			}
			continue
		}
		if seg != parts[i] {
			return false
		}
	}
	return true
}

func routeTTL(method, path string) (time.Duration, bool) {
	for _, r := range idempotencyRules {
		if r.matches(method, path) {
			return r.ttl, true
		}
	}
	return 0, false
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}
