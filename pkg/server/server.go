// Package server provides the HTTP API for the eco-routing backend.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/citymesh/ecoroute/pkg/config"
	"github.com/citymesh/ecoroute/pkg/eco"
	"github.com/citymesh/ecoroute/pkg/monitoring"
	"github.com/citymesh/ecoroute/pkg/providers"
	"github.com/citymesh/ecoroute/pkg/version"
)

const (
	// ServerName is the service name reported in config and health payloads
	ServerName = "ecoroute"

	// ServerVersion is the API version
	ServerVersion = "2.0.0"

	// maxRequestBytes bounds request bodies
	maxRequestBytes = 1 << 20
)

const loggerKey = "logger"

// Server wires the provider clients, the scoring pipeline and the HTTP
// router together.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	weather    *providers.WeatherClient
	traffic    *providers.TrafficClient
	airQuality *providers.AirQualityClient
	transit    *providers.TransitClient
	directions *providers.DirectionsClient
	assistant  *providers.AssistantClient
	pipeline   *eco.Pipeline

	limiter  *RateLimiter
	engine   *gin.Engine
	health   *monitoring.HealthChecker
	monitors []*monitoring.ConnectionMonitor
}

// New creates a server with all provider clients and routes configured.
func New(cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	providers.SetUserAgent(cfg.Server.UserAgent)
	for service, rl := range cfg.RateLimits {
		providers.UpdateRateLimit(service, rl.RPS, rl.Burst)
	}

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		weather:    providers.NewWeatherClient(cfg.Keys.WeatherAPI),
		traffic:    providers.NewTrafficClient(cfg.Keys.TomTom),
		airQuality: providers.NewAirQualityClient(cfg.Keys.OpenWeather),
		transit:    providers.NewTransitClient(cfg.Keys.Transitland),
		directions: providers.NewDirectionsClient(cfg.Keys.GoogleMaps),
		assistant:  providers.NewAssistantClient(cfg.Keys.Gemini),
		limiter:    NewRateLimiter(rate.Limit(10), 20),
	}

	if cfg.Cache.WeatherTTL > 0 {
		s.weather.SetCacheTTL(time.Duration(cfg.Cache.WeatherTTL) * time.Second)
	}
	if cfg.Cache.TrafficTTL > 0 {
		s.traffic.SetCacheTTL(time.Duration(cfg.Cache.TrafficTTL) * time.Second)
	}
	if cfg.Cache.AirQualityTTL > 0 {
		s.airQuality.SetCacheTTL(time.Duration(cfg.Cache.AirQualityTTL) * time.Second)
	}
	if cfg.Cache.TransitTTL > 0 {
		s.transit.SetCacheTTL(time.Duration(cfg.Cache.TransitTTL) * time.Second)
	}

	snapshots := providers.NewSnapshots(s.traffic, s.weather)
	s.pipeline = eco.NewPipeline(snapshots)
	s.pipeline.SetLogger(logger)

	s.engine = s.buildRouter()
	return s
}

// buildRouter assembles the gin engine with the middleware chain and all
// API routes.
func (s *Server) buildRouter() *gin.Engine {
	if !s.cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(loggerKey, s.logger)
		c.Next()
	})
	r.Use(RequestID())
	r.Use(RequestLogger())
	r.Use(Recovery())
	r.Use(Tracing())
	r.Use(SecurityHeaders())
	r.Use(CORS())
	r.Use(RequestSizeLimiter(maxRequestBytes))
	r.Use(s.limiter.Middleware())

	api := r.Group("/api")
	{
		api.GET("/config", s.handleConfig)
		api.POST("/route", s.handleRoute)
		api.GET("/weather", s.handleWeather)
		api.GET("/traffic", s.handleTraffic)
		api.GET("/transit", s.handleTransit)
		api.GET("/air_quality", s.handleAirQuality)
		api.POST("/emissions", s.handleEmissions)
		api.POST("/eco_chat", s.handleEcoChat)
		api.GET("/eco_tips", s.handleEcoTips)
	}

	r.GET("/health", s.handleHealth)

	return r
}

// Router returns the configured HTTP handler.
func (s *Server) Router() http.Handler {
	return s.engine
}

// StartMonitoring creates the health checker with provider probes and
// starts the monitoring listener (metrics + health/ready/live). The
// returned server is already serving.
func (s *Server) StartMonitoring() *http.Server {
	s.health = monitoring.NewHealthChecker(monitoring.ServiceName, version.Version)

	probes := map[string]func() error{
		"weatherapi":  providers.CheckWeatherHealth,
		"tomtom":      providers.CheckTrafficHealth,
		"openweather": providers.CheckAirQualityHealth,
		"transitland": providers.CheckTransitHealth,
	}
	for name, probe := range probes {
		m := monitoring.NewConnectionMonitor(name, s.health, probe, 30*time.Second)
		m.Start()
		s.monitors = append(s.monitors, m)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.health.HealthHandler())
	mux.HandleFunc("/ready", s.health.ReadinessHandler())
	mux.HandleFunc("/live", s.health.LivenessHandler())

	srv := &http.Server{
		Addr:              s.cfg.Server.MonitoringAddr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}
	go func() {
		s.logger.Info("monitoring server listening", "addr", s.cfg.Server.MonitoringAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("monitoring server failed", "error", err)
		}
	}()
	return srv
}

// Run serves the API until the context is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", "addr", s.cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.limiter.Stop()
	for _, m := range s.monitors {
		m.Stop()
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	return srv.Shutdown(shutdownCtx)
}

// loggerFrom returns the request-scoped logger.
func loggerFrom(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}
