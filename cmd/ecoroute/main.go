package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/citymesh/ecoroute/pkg/config"
	"github.com/citymesh/ecoroute/pkg/registration"
	"github.com/citymesh/ecoroute/pkg/server"
	"github.com/citymesh/ecoroute/pkg/tracing"
	ver "github.com/citymesh/ecoroute/pkg/version"
)

var (
	showVersionFlag bool
	debug           bool
	configPath      string
	addr            string
	monitoringAddr  string
	userAgent       string

	// Registration flags
	enableRegistration bool
	registryURL        string
	serviceURL         string
	internalURL        string
)

func init() {
	flag.BoolVar(&showVersionFlag, "version", false, "Display version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.StringVar(&configPath, "config", "", "Path to a JSON or YAML configuration file")
	flag.StringVar(&addr, "addr", "", "API server address (overrides configuration)")
	flag.StringVar(&monitoringAddr, "monitoring-addr", "", "Monitoring server address (overrides configuration)")
	flag.StringVar(&userAgent, "user-agent", "", "User-Agent string for provider API requests")

	// Registration flags
	flag.BoolVar(&enableRegistration, "enable-registration", false, "Enable service registration with a service registry")
	flag.StringVar(&registryURL, "registry-url", "", "Service registry URL (e.g., http://registry:7083)")
	flag.StringVar(&serviceURL, "service-url", "", "External URL where this service is accessible")
	flag.StringVar(&internalURL, "internal-url", "", "Internal URL for container environments")
}

func main() {
	flag.Parse()

	if showVersionFlag {
		fmt.Println(ver.String())
		return
	}

	var logLevel slog.Level
	if debug {
		logLevel = slog.LevelDebug
	} else {
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if monitoringAddr != "" {
		cfg.Server.MonitoringAddr = monitoringAddr
	}
	if userAgent != "" {
		cfg.Server.UserAgent = userAgent
	}
	cfg.Server.Debug = cfg.Server.Debug || debug
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize OpenTelemetry tracing
	ctx := context.Background()
	shutdownTracing, err := tracing.InitTracing(ctx, ver.Version)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		// Continue without tracing - it's not critical
	} else {
		defer func() {
			if err := shutdownTracing(ctx); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()

		if endpoint := os.Getenv("OTLP_ENDPOINT"); endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", endpoint)
		}
	}

	logger.Info("starting eco-routing server",
		"version", ver.Version,
		"log_level", logLevel.String(),
		"addr", cfg.Server.Addr,
		"monitoring_addr", cfg.Server.MonitoringAddr,
		"weather_configured", cfg.Keys.WeatherAPI != "",
		"traffic_configured", cfg.Keys.TomTom != "",
		"air_quality_configured", cfg.Keys.OpenWeather != "",
		"directions_configured", cfg.Keys.GoogleMaps != "",
		"assistant_configured", cfg.Keys.Gemini != "")

	s := server.New(cfg, logger)

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Monitoring server: Prometheus metrics plus health/ready/live probes
	monitoringServer := s.StartMonitoring()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := monitoringServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown monitoring server", "error", err)
		}
	}()

	// Initialize registration client if enabled
	if enableRegistration || cfg.Registry.Enabled {
		regURL := registryURL
		if regURL == "" {
			regURL = cfg.Registry.Endpoint
		}
		svcURL := serviceURL
		if svcURL == "" {
			svcURL = fmt.Sprintf("http://localhost%s", cfg.Server.Addr)
		}
		healthURL := fmt.Sprintf("http://localhost%s/health", cfg.Server.MonitoringAddr)

		regCfg := registration.Config{
			Enabled:     true,
			RegistryURL: regURL,
			ServiceName: cfg.Registry.Name,
			ServiceType: "api",
			ServiceURL:  svcURL,
			HealthURL:   healthURL,
			InternalURL: internalURL,
			Version:     ver.Version,
			Capabilities: []string{
				"routing", "environmental-data", "emissions", "assistant",
			},
			Endpoints: []string{
				"/api/config", "/api/route", "/api/weather", "/api/traffic",
				"/api/transit", "/api/air_quality", "/api/emissions",
				"/api/eco_chat", "/api/eco_tips",
			},
			Metadata: map[string]interface{}{
				"monitoring_addr": cfg.Server.MonitoringAddr,
			},
		}
		if internalURL != "" {
			regCfg.InternalHealthURL = internalURL + "/health"
		}

		regClient := registration.NewClient(regCfg, logger)
		regClient.Start(ctx)
		defer regClient.Stop()

		logger.Info("registration client initialized",
			"registry_url", regURL,
			"service_url", svcURL)
	}

	if err := s.Run(ctx); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}
