package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/vendorledger/api/middleware"
	"github.com/angelmondragon/vendorledger/api/responses"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

// TokenRevoker denylists an access token id until it would have expired.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error
}

// RevokeSession signs the caller out by denylisting the token they used.
// Tokens without a jti cannot be revoked.
func RevokeSession(revoker TokenRevoker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := middleware.SessionFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		if session.TokenID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "token has no id and cannot be revoked"))
			return
		}
		ttl := time.Until(session.ExpiresAt)
		if ttl <= 0 {
			responses.WriteSuccess(w, map[string]any{"revoked": true})
			return
		}
		if err := revoker.RevokeToken(r.Context(), session.TokenID, ttl); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke token"))
			return
		}
		if logg != nil {
			logg.Info(logg.WithField(r.Context(), "ttl_seconds", int64(ttl.Seconds())), "session revoked")
		}
		responses.WriteSuccess(w, map[string]any{"revoked": true})
	}
}
