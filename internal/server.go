package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/cfdnsadmin/internal/accounts"
	"github.com/2beens/cfdnsadmin/internal/auth"
	"github.com/2beens/cfdnsadmin/internal/config"
	"github.com/2beens/cfdnsadmin/internal/console"
	"github.com/2beens/cfdnsadmin/internal/middleware"
	"github.com/2beens/cfdnsadmin/internal/misc"
	"github.com/2beens/cfdnsadmin/internal/telemetry/metrics"
	"github.com/2beens/cfdnsadmin/internal/telemetry/tracing"
	"github.com/2beens/cfdnsadmin/internal/upstream"
	"github.com/2beens/cfdnsadmin/pkg"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config      *config.Config
	store       *accounts.Store
	gateway     *upstream.Gateway
	authService *auth.Service

	// nil when redis is not configured; login is then not rate limited
	redisClient    *redis.Client
	rateLimiter    middleware.RequestRateLimiter
	trustedProxies pkg.TrustedProxies

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	RedisPassword           string
	HoneycombTracingEnabled bool

	// optional, mostly for tests
	RedisClient        *redis.Client
	UpstreamHTTPClient *http.Client
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	promRegistry := metrics.SetupPrometheus()
	metricsManager := metrics.NewManager("cfdnsadmin", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	operators, err := auth.LoadOperators(cfg.AuthFilePath)
	if err != nil {
		return nil, fmt.Errorf("load operators: %w", err)
	}
	authService, err := auth.NewService(operators)
	if err != nil {
		return nil, fmt.Errorf("new auth service: %w", err)
	}
	log.Debugf("loaded %d operators, session expiry: %s", len(operators.Users), authService.Expiry())

	trustedProxies, err := pkg.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	store := accounts.NewStore(cfg.AccountsFilePath)
	gateway := upstream.NewGateway(store, upstream.GatewayParams{
		BaseURL:    cfg.UpstreamBaseURL,
		Timeout:    cfg.UpstreamTimeout.Duration,
		HTTPClient: params.UpstreamHTTPClient,
		Metrics:    metricsManager,
	})

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "cfdnsadmin")
	if err != nil {
		return nil, fmt.Errorf("honeycomb setup: %w", err)
	}

	s := &Server{
		config:      cfg,
		versionInfo: params.VersionInfo,
		store:       store,
		gateway:     gateway,
		authService: authService,

		trustedProxies: trustedProxies,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}

	rdb := params.RedisClient
	if rdb == nil && cfg.RedisHost != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: params.RedisPassword,
			DB:       0, // use default DB
		})
	}
	if rdb != nil {
		rdb.AddHook(redisotel.NewTracingHook())
		s.redisClient = rdb
		rdbStatus := rdb.Ping(ctx)
		if err := rdbStatus.Err(); err != nil {
			log.Errorf("--> failed to ping redis, login rate limiting disabled: %s", err)
		} else {
			log.Debugf("redis ping: %s", rdbStatus.Val())
			s.rateLimiter = redis_rate.NewLimiter(rdb)
		}
	} else {
		log.Warnln("redis not configured, login rate limiting disabled")
	}

	return s, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("cfdnsadmin-router"))

	api := r
	if s.config.APIPrefix != "" {
		api = r.PathPrefix(s.config.APIPrefix).Subrouter()
	}

	misc.NewHandler(s.versionInfo).SetupRoutes(api)

	var loginMiddlewares []mux.MiddlewareFunc
	if s.rateLimiter != nil {
		loginMiddlewares = append(loginMiddlewares, middleware.RateLimit(
			s.rateLimiter,
			"login",
			s.config.LoginRateLimitAllowedPerMin,
			s.trustedProxies,
			s.metricsManager,
		))
	}
	auth.NewHandler(s.authService, s.metricsManager).SetupRoutes(api, loginMiddlewares...)

	console.NewHandler(s.store, s.gateway, s.metricsManager).SetupRoutes(api)

	// all the rest - unhandled paths
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		pkg.WriteError(w, http.StatusNotFound, "Not found", "")
	}).Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.authService, s.config.APIPrefix)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.AllowedOrigins))
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

// Router returns the fully wired API handler, middlewares included.
func (s *Server) Router() http.Handler {
	return s.routerSetup()
}

// LoginRateLimited reports whether the login endpoint is rate limited.
func (s *Server) LoginRateLimited() bool {
	return s.rateLimiter != nil
}

func (s *Server) Serve(host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.InstrumentMetricHandler(
		s.promRegistry,
		promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed, http.StateHijacked:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
