package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/2beens/cfdnsadmin/internal/telemetry/metrics"
	"github.com/2beens/cfdnsadmin/internal/telemetry/tracing"
	"github.com/2beens/cfdnsadmin/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Handler struct {
	service        *Service
	metricsManager *metrics.Manager
}

func NewHandler(service *Service, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		service:        service,
		metricsManager: metricsManager,
	}
}

const maxLoginBodyBytes = 4 << 10

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string   `json:"token"`
	User    Identity `json:"user"`
	Message string   `json:"message"`
}

type verifyResponse struct {
	Valid bool     `json:"valid"`
	User  Identity `json:"user"`
}

// SetupRoutes registers /auth/login and /auth/verify. The login middlewares
// (rate limiting) only wrap the login endpoint.
func (handler *Handler) SetupRoutes(router *mux.Router, loginMiddlewares ...mux.MiddlewareFunc) {
	var login http.Handler = http.HandlerFunc(handler.handleLogin)
	for i := len(loginMiddlewares) - 1; i >= 0; i-- {
		login = loginMiddlewares[i](login)
	}

	router.Handle("/auth/login", login).Methods("POST", "OPTIONS").Name("login")
	router.HandleFunc("/auth/verify", handler.handleVerify).Methods("GET", "OPTIONS").Name("verify")
}

func (handler *Handler) countLogin(result string) {
	if handler.metricsManager != nil {
		handler.metricsManager.CounterLoginAttempts.WithLabelValues(result).Inc()
	}
}

func (handler *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "authHandler.login")
	defer span.End()

	var loginReq loginRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&loginReq); err != nil {
		log.Debugf("login, unmarshal json params: %s", err)
		handler.countLogin("bad_request")
		span.SetStatus(codes.Error, "bad-json")
		pkg.WriteError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	if loginReq.Username == "" || loginReq.Password == "" {
		handler.countLogin("bad_request")
		span.SetStatus(codes.Error, "missing-fields")
		pkg.WriteError(w, http.StatusBadRequest, "Username and password are required", "")
		return
	}

	span.SetAttributes(attribute.String("operator.username", loginReq.Username))

	token, identity, err := handler.service.Authenticate(loginReq.Username, loginReq.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			log.Tracef("failed login attempt for user: %s", loginReq.Username)
			handler.countLogin("failure")
			span.SetStatus(codes.Error, "invalid-credentials")
			pkg.WriteError(w, http.StatusUnauthorized, "Invalid username or password", "")
			return
		}
		log.Errorf("login failed, issue token: %s", err)
		handler.countLogin("error")
		span.SetStatus(codes.Error, "issue-token")
		span.RecordError(err)
		pkg.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}

	log.Debugf("login success for user: %s", identity.Username)
	handler.countLogin("success")
	span.SetStatus(codes.Ok, "ok")
	pkg.WriteJSONOK(w, loginResponse{
		Token:   token,
		User:    identity,
		Message: "Login successful",
	})
}

func (handler *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "authHandler.verify")
	defer span.End()

	identity, ok := IdentityFrom(r.Context())
	if !ok {
		span.SetStatus(codes.Error, "no-identity")
		pkg.WriteError(w, http.StatusUnauthorized, "Access token required", "")
		return
	}

	span.SetStatus(codes.Ok, "ok")
	pkg.WriteJSONOK(w, verifyResponse{
		Valid: true,
		User:  identity,
	})
}
