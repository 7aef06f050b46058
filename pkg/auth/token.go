package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/enums"
)

// clockSkew tolerated between the identity service and this API.
const clockSkew = 30 * time.Second

var signingMethod = jwt.SigningMethodHS256

var (
	errNoSecret      = errors.New("jwt secret is required")
	errNoIssuer      = errors.New("jwt issuer is required")
	errBadTTL        = errors.New("jwt expiration minutes must be positive")
	errMissingUser   = errors.New("user_id claim is required")
	errMissingVendor = errors.New("vendor_id claim is required for vendor tokens")
)

// MintAccessToken signs an HS256 token for payload. Tokens used in production
// are issued by the identity service; this exists for tooling and tests.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", errNoSecret
	case cfg.Issuer == "":
		return "", errNoIssuer
	case cfg.ExpirationMinutes <= 0:
		return "", errBadTTL
	}
	if err := validateIdentity(payload.UserID, payload.Role, payload.VendorID); err != nil {
		return "", err
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	ttl := time.Duration(cfg.ExpirationMinutes) * time.Minute

	claims := AccessTokenClaims{
		UserID:   payload.UserID,
		Role:     payload.Role,
		VendorID: payload.VendorID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    cfg.Issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry, then checks that
// the identity claims are coherent for the role.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errNoSecret
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
	)
	claims := &AccessTokenClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, secretKey(cfg.Secret)); err != nil {
		return nil, err
	}
	if err := validateIdentity(claims.UserID, claims.Role, claims.VendorID); err != nil {
		return nil, err
	}
	return claims, nil
}

func secretKey(secret string) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if token.Method != signingMethod {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}
}

func validateIdentity(userID uuid.UUID, role enums.ActorRole, vendorID *uuid.UUID) error {
	switch {
	case userID == uuid.Nil:
		return errMissingUser
	case !role.IsValid():
		return fmt.Errorf("invalid actor role %q", role)
	case role == enums.ActorRoleVendor && (vendorID == nil || *vendorID == uuid.Nil):
		return errMissingVendor
	}
	return nil
}
