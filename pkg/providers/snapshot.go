package providers

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/citymesh/ecoroute/pkg/eco"
)

// Snapshots aggregates live traffic and weather into the environmental
// context the scoring pipeline consumes. It implements eco.SnapshotProvider.
type Snapshots struct {
	traffic *TrafficClient
	weather *WeatherClient
	logger  *slog.Logger
}

// NewSnapshots creates a snapshot provider over the given clients.
func NewSnapshots(traffic *TrafficClient, weather *WeatherClient) *Snapshots {
	return &Snapshots{
		traffic: traffic,
		weather: weather,
		logger:  slog.Default().With("component", "snapshots"),
	}
}

// Snapshot fetches traffic and weather concurrently and condenses them into
// an environmental snapshot. Both clients degrade to fallback payloads on
// their own, so the only error surfaced here is context cancellation.
func (s *Snapshots) Snapshot(ctx context.Context, lat, lon float64) (eco.EnvironmentalSnapshot, error) {
	var (
		traffic *TrafficReport
		weather *WeatherReport
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		traffic = s.traffic.Conditions(gctx, lat, lon)
		return gctx.Err()
	})
	g.Go(func() error {
		weather = s.weather.Current(gctx, "", lat, lon)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return eco.NeutralSnapshot(), err
	}

	snap := eco.EnvironmentalSnapshot{
		TrafficScore:    traffic.TrafficScore,
		WeatherImpact:   eco.WeatherImpact(weather.TrafficImpact.ImpactLevel),
		AirQualityIndex: weather.AirQuality.USEPAIndex,
	}

	s.logger.Debug("environmental snapshot",
		"lat", lat, "lon", lon,
		"traffic_score", snap.TrafficScore,
		"weather_impact", snap.WeatherImpact,
		"aqi", snap.AirQualityIndex)

	return snap, nil
}
