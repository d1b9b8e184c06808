package middleware

import (
	"net/http"
	"strings"

	"github.com/2beens/cfdnsadmin/internal/auth"
	"github.com/2beens/cfdnsadmin/internal/telemetry/tracing"
	"github.com/2beens/cfdnsadmin/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=$GOFILE -destination=auth_mocks_test.go -package=middleware_test

type sessionVerifier interface {
	VerifyToken(token string) (auth.Identity, bool)
}

type AuthMiddlewareHandler struct {
	verifier     sessionVerifier
	allowedPaths map[string]bool
}

// NewAuthMiddlewareHandler gates every request behind a bearer session token,
// except preflight requests, login, health and version.
func NewAuthMiddlewareHandler(verifier sessionVerifier, apiPrefix string) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		verifier: verifier,
		allowedPaths: map[string]bool{
			apiPrefix + "/auth/login": true,
			apiPrefix + "/health":     true,
			apiPrefix + "/version":    true,
		},
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}

func (h *AuthMiddlewareHandler) AuthCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.auth")
			defer span.End()

			if r.Method == http.MethodOptions {
				w.Header().Add("Allow", corsAllowMethods)
				w.WriteHeader(http.StatusOK)
				span.SetStatus(codes.Ok, "options-ok")
				return
			}

			if h.allowedPaths[r.URL.Path] {
				span.SetStatus(codes.Ok, "allowed")
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				log.Tracef("[missing token] [auth middleware] unauthorized => %s", r.URL.Path)
				pkg.WriteError(w, http.StatusUnauthorized, "Access token required", "")
				span.SetStatus(codes.Error, "missing-auth-token")
				return
			}

			identity, ok := h.verifier.VerifyToken(token)
			if !ok {
				log.Tracef("[invalid token] [auth middleware] forbidden => %s", r.URL.Path)
				pkg.WriteError(w, http.StatusForbidden, "Invalid or expired token", "")
				span.SetStatus(codes.Error, "invalid-auth-token")
				return
			}

			span.SetAttributes(attribute.String("operator.username", identity.Username))
			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(ctx, identity)))
		})
	}
}
