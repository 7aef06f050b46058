package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/vendorledger/api/responses"
	pkgAuth "github.com/angelmondragon/vendorledger/pkg/auth"
	"github.com/angelmondragon/vendorledger/pkg/config"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

const bearerPrefix = "bearer "

// RevocationChecker reports whether an access token id was revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Auth requires a valid, unrevoked bearer token and puts the caller's actor
// and session on the request context.
func Auth(cfg config.JWTConfig, revocations RevocationChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(r, cfg, revocations)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), claims, logg)))
		})
	}
}

func authenticate(r *http.Request, cfg config.JWTConfig, revocations RevocationChecker) (*pkgAuth.AccessTokenClaims, error) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if revocations == nil {
		return claims, nil
	}
	switch revoked, err := revocations.IsRevoked(r.Context(), claims.ID); {
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check token revocation")
	case revoked:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "token revoked")
	}
	return claims, nil
}

// bearerToken accepts "Bearer <t>" in any case, or a bare token.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if strings.EqualFold(header, strings.TrimSpace(bearerPrefix)) {
		return ""
	}
	if len(header) >= len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		header = header[len(bearerPrefix):]
	}
	return strings.TrimSpace(header)
}

func withCaller(ctx context.Context, claims *pkgAuth.AccessTokenClaims, logg *logger.Logger) context.Context {
	actor := claims.Actor()
	session := Session{TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	ctx = withSession(WithActor(ctx, actor), session)
	if logg == nil {
		return ctx
	}
	ctx = logg.WithUserID(ctx, actor.UserID.String())
	ctx = logg.WithActorRole(ctx, actor.Role.String())
	if actor.VendorID != nil {
		ctx = logg.WithVendorID(ctx, actor.VendorID.String())
	}
	return ctx
}
