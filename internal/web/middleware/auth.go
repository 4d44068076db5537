package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/JonMunkholm/rosterimport/internal/config"
	"github.com/JonMunkholm/rosterimport/internal/core"
)

// AnonymousActorID identifies the caller when authentication is disabled.
const AnonymousActorID = "anonymous"

// Actor returns middleware that places the caller in the request context.
//
// With RequireAuth set, the Authorization header must carry an HS256 bearer
// token signed with JWTSecret. The token's subject becomes the actor id and
// the RoleClaim claim its role. Role checks are left to the core, so a valid
// token without an allowed role still reaches the handler.
//
// With RequireAuth unset, every request acts as an anonymous caller holding
// the first allowed role.
func Actor(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	key := []byte(cfg.JWTSecret)
	roleClaim := cfg.RoleClaim
	if roleClaim == "" {
		roleClaim = "role"
	}
	anonRole := core.DefaultAllowedRoles[0]
	if len(cfg.AllowedRoles) > 0 {
		anonRole = cfg.AllowedRoles[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := core.ContextWithIPAddress(r.Context(), r.RemoteAddr)

			if !cfg.RequireAuth {
				ctx = core.ContextWithActor(ctx, core.Actor{ID: AnonymousActorID, Role: anonRole})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			raw, ok := bearerToken(r)
			if !ok {
				slog.Warn("auth: missing bearer token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, "missing bearer token", "AUTH_MISSING_TOKEN")
				return
			}

			actor, err := parseActor(raw, key, roleClaim)
			if err != nil {
				slog.Warn("auth: invalid bearer token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
					"error", err.Error(),
				)
				writeAuthError(w, "invalid bearer token", "AUTH_INVALID_TOKEN")
				return
			}

			next.ServeHTTP(w, r.WithContext(core.ContextWithActor(ctx, actor)))
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// parseActor verifies an HS256 token and reads the actor from its claims.
func parseActor(raw string, key []byte, roleClaim string) (core.Actor, error) {
	if len(key) == 0 {
		return core.Actor{}, errors.New("no signing key configured")
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return core.Actor{}, err
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return core.Actor{}, err
	}
	actor := core.Actor{ID: sub}
	if v, ok := claims[roleClaim]; ok {
		role, ok := v.(string)
		if !ok {
			return core.Actor{}, fmt.Errorf("claim %q is not a string", roleClaim)
		}
		actor.Role = role
	}
	return actor, nil
}

func writeAuthError(w http.ResponseWriter, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":%q,"code":%q}`, msg, code)
}
