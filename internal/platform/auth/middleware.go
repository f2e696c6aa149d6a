package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
	StaffIDKey   contextKey = "staff_id"
)

// Claims carried by tokens issued for health-center users. StaffID links
// doctors, nurses and front-desk staff to their staff record.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string   `json:"tenant_id"`
	Roles    []string `json:"roles"`
	StaffID  string   `json:"staff_id,omitempty"`
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey enables HS256 validation for standalone deployments that
	// have no identity provider.
	SigningKey []byte
	// Skipper bypasses validation for public endpoints.
	Skipper func(c echo.Context) bool
}

var knownRoles = map[string]bool{
	RoleAdmin: true, RoleDoctor: true, RoleNurse: true, RoleStaff: true, RolePatient: true,
}

// normalizeRoles lowercases role claims and drops the ones the health center
// does not use, such as identity-provider housekeeping roles.
func normalizeRoles(roles []string) []string {
	roles = lo.Map(roles, func(r string, _ int) string { return strings.ToLower(strings.TrimSpace(r)) })
	return lo.Uniq(lo.Filter(roles, func(r string, _ int) bool { return knownRoles[r] }))
}

// tokenValidator parses bearer tokens with either a shared HS256 key or the
// RS256 keys published by the identity provider.
type tokenValidator struct {
	parser  *jwt.Parser
	keyFunc jwt.Keyfunc
}

func newTokenValidator(cfg JWTConfig) *tokenValidator {
	method := "RS256"
	if len(cfg.SigningKey) > 0 {
		method = "HS256"
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{method})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	v := &tokenValidator{parser: jwt.NewParser(opts...)}

	switch {
	case len(cfg.SigningKey) > 0:
		v.keyFunc = func(*jwt.Token) (interface{}, error) { return cfg.SigningKey, nil }
	case cfg.JWKSURL != "":
		v.keyFunc = NewJWKSCache(cfg.JWKSURL, defaultJWKSCacheTTL).keyFunc
	case cfg.Issuer != "":
		// Discovery failure leaves keyFunc nil and every token is refused.
		if provider, err := NewOIDCProvider(cfg.Issuer); err == nil {
			v.keyFunc = NewJWKSCache(provider.JWKSURI, defaultJWKSCacheTTL).keyFunc
		}
	}
	return v
}

func (v *tokenValidator) validate(header string) (*Claims, error) {
	if header == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	if v.keyFunc == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "token validation is not configured")
	}
	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, v.keyFunc)
	if err != nil || !parsed.Valid {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	return claims, nil
}

// withIdentity stores the caller's identity on the request. The tenant claim
// is kept on the echo context for the tenant middleware.
func withIdentity(c echo.Context, userID string, roles []string, staffID, tenantID string) {
	if tenantID != "" {
		c.Set("jwt_tenant_id", tenantID)
	}
	ctx := c.Request().Context()
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, UserRolesKey, roles)
	ctx = context.WithValue(ctx, StaffIDKey, staffID)
	c.SetRequest(c.Request().WithContext(ctx))
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	v := newTokenValidator(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			claims, err := v.validate(c.Request().Header.Get("Authorization"))
			if err != nil {
				return err
			}
			withIdentity(c, claims.Subject, normalizeRoles(claims.Roles), claims.StaffID, claims.TenantID)
			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for development. Requests
// without a token run as an admin of the default barangay unless X-Dev-Role
// and X-Dev-Staff-ID pick another identity. A request that carries a token
// is validated with cfg when a signing key is configured.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	validate := JWTMiddleware(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withToken := validate(next)
		return func(c echo.Context) error {
			h := c.Request().Header
			if h.Get("Authorization") != "" && len(cfg.SigningKey) > 0 {
				return withToken(c)
			}
			roles := []string{RoleAdmin}
			if r := h.Get("X-Dev-Role"); r != "" {
				roles = normalizeRoles(strings.Split(r, ","))
				if len(roles) == 0 {
					return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown role in X-Dev-Role: %s", r))
				}
			}
			withIdentity(c, "dev-user", roles, h.Get("X-Dev-Staff-ID"), "")
			return next(c)
		}
	}
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}

// StaffIDFromContext returns the staff record id bound to the caller's token,
// or "" for patients and service accounts.
func StaffIDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(StaffIDKey).(string)
	return sid
}
