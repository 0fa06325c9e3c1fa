package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/citymesh/ecoroute/pkg/cache"
	"github.com/citymesh/ecoroute/pkg/monitoring"
	"github.com/citymesh/ecoroute/pkg/tracing"
)

// TransitStop is a nearby public transit stop.
type TransitStop struct {
	OnestopID string   `json:"onestop_id"`
	Name      string   `json:"name"`
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	RouteIDs  []string `json:"served_by_route_ids"`
}

// TransitRoute is a public transit route serving the area.
type TransitRoute struct {
	OnestopID string `json:"onestop_id"`
	ShortName string `json:"short_name"`
	LongName  string `json:"long_name"`
	Mode      string `json:"mode"`
	Operator  string `json:"operator"`
}

// TransitReport is the transit payload served to clients.
type TransitReport struct {
	Location  Location       `json:"location"`
	Stops     []TransitStop  `json:"stops"`
	Routes    []TransitRoute `json:"routes"`
	StopCount int            `json:"stop_count"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Note      string         `json:"note,omitempty"`
}

type transitStopsResponse struct {
	Stops []struct {
		OnestopID string `json:"onestop_id"`
		StopName  string `json:"stop_name"`
		Geometry  struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		ServedByRouteIDs []string `json:"served_by_route_ids"`
	} `json:"stops"`
}

type transitRoutesResponse struct {
	Routes []struct {
		OnestopID      string `json:"onestop_id"`
		RouteShortName string `json:"route_short_name"`
		RouteLongName  string `json:"route_long_name"`
		RouteType      int    `json:"route_type"`
		Agency         struct {
			AgencyName string `json:"agency_name"`
		} `json:"agency"`
	} `json:"routes"`
}

// TransitClient fetches nearby stops and routes.
type TransitClient struct {
	apiKey  string
	baseURL string
	logger  *slog.Logger
	cache   *cache.TTLCache
}

// NewTransitClient creates a transit client. An empty key is allowed; all
// lookups then serve the fallback payload.
func NewTransitClient(apiKey string) *TransitClient {
	return &TransitClient{
		apiKey:  apiKey,
		baseURL: TransitlandBaseURL,
		logger:  slog.Default().With("provider", tracing.ServiceTransit),
		cache:   cache.NewTTLCache(tracing.ServiceTransit, 30*time.Minute, time.Minute, 256),
	}
}

// SetBaseURL overrides the provider endpoint, used in tests.
func (c *TransitClient) SetBaseURL(base string) {
	c.baseURL = base
}

// SetCacheTTL overrides how long nearby-transit lookups are cached.
func (c *TransitClient) SetCacheTTL(ttl time.Duration) {
	c.cache.SetDefaultTTL(ttl)
}

// Available reports whether a provider key is configured.
func (c *TransitClient) Available() bool {
	return c.apiKey != ""
}

// Nearby returns transit stops and routes within a radius of a coordinate.
// It never fails: missing keys and provider errors degrade to the fallback
// report.
func (c *TransitClient) Nearby(ctx context.Context, lat, lon float64, radiusM int) *TransitReport {
	if !c.Available() {
		c.logger.Warn("transit provider key not configured")
		monitoring.RecordFallback(tracing.ServiceTransit, "missing_key")
		return fallbackTransitReport(lat, lon)
	}

	key := fmt.Sprintf("%.4f|%.4f|%d", lat, lon, radiusM)
	if v, ok := c.cache.Get(key); ok {
		recordCacheHit(ctx, tracing.CacheTypeProvider, key)
		return v.(*TransitReport)
	}
	monitoring.RecordCacheMiss(tracing.CacheTypeProvider)

	stops, err := c.fetchStops(ctx, lat, lon, radiusM)
	if err != nil {
		c.logger.Error("transit stops lookup failed", "error", err, "lat", lat, "lon", lon)
		monitoring.RecordFallback(tracing.ServiceTransit, "request_failed")
		return fallbackTransitReport(lat, lon)
	}

	// Route failures degrade to an empty list, not a fallback report.
	routes := c.fetchRoutes(ctx, lat, lon, radiusM)

	report := &TransitReport{
		Location:  Location{Lat: lat, Lon: lon},
		Stops:     stops,
		Routes:    routes,
		StopCount: len(stops),
		Timestamp: time.Now().UTC(),
		Source:    "Transitland",
	}

	c.cache.Set(key, report)
	return report
}

func (c *TransitClient) fetchStops(ctx context.Context, lat, lon float64, radiusM int) ([]TransitStop, error) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lon", fmt.Sprintf("%f", lon))
	params.Set("radius", fmt.Sprintf("%d", radiusM))
	params.Set("limit", "20")

	req, err := NewRequest(ctx, http.MethodGet, c.baseURL+"/rest/stops?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := DoRequest(ctx, tracing.ServiceTransit, "stops", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transit provider returned status %d", resp.StatusCode)
	}

	var payload transitStopsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding stops payload: %w", err)
	}

	stops := make([]TransitStop, 0, len(payload.Stops))
	for _, s := range payload.Stops {
		stop := TransitStop{
			OnestopID: s.OnestopID,
			Name:      s.StopName,
			RouteIDs:  s.ServedByRouteIDs,
		}
		if len(s.Geometry.Coordinates) >= 2 {
			stop.Lon = s.Geometry.Coordinates[0]
			stop.Lat = s.Geometry.Coordinates[1]
		}
		if stop.RouteIDs == nil {
			stop.RouteIDs = []string{}
		}
		stops = append(stops, stop)
	}
	return stops, nil
}

func (c *TransitClient) fetchRoutes(ctx context.Context, lat, lon float64, radiusM int) []TransitRoute {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lon", fmt.Sprintf("%f", lon))
	params.Set("radius", fmt.Sprintf("%d", radiusM))
	params.Set("limit", "10")

	req, err := NewRequest(ctx, http.MethodGet, c.baseURL+"/rest/routes?"+params.Encode(), nil)
	if err != nil {
		return []TransitRoute{}
	}

	resp, err := DoRequest(ctx, tracing.ServiceTransit, "routes", req)
	if err != nil {
		c.logger.Error("transit routes lookup failed", "error", err)
		return []TransitRoute{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return []TransitRoute{}
	}

	var payload transitRoutesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logger.Error("decoding routes payload failed", "error", err)
		return []TransitRoute{}
	}

	routes := make([]TransitRoute, 0, len(payload.Routes))
	for _, r := range payload.Routes {
		routes = append(routes, TransitRoute{
			OnestopID: r.OnestopID,
			ShortName: r.RouteShortName,
			LongName:  r.RouteLongName,
			Mode:      routeMode(r.RouteType),
			Operator:  r.Agency.AgencyName,
		})
	}
	return routes
}

// routeMode names the GTFS route_type codes.
func routeMode(routeType int) string {
	switch routeType {
	case 0:
		return "tram"
	case 1:
		return "metro"
	case 2:
		return "rail"
	case 3:
		return "bus"
	case 4:
		return "ferry"
	case 5:
		return "cable_car"
	case 6:
		return "gondola"
	case 7:
		return "funicular"
	default:
		return "other"
	}
}

// fallbackTransitReport is the payload served when live data is unavailable.
func fallbackTransitReport(lat, lon float64) *TransitReport {
	return &TransitReport{
		Location:  Location{Lat: lat, Lon: lon},
		Stops:     []TransitStop{},
		Routes:    []TransitRoute{},
		StopCount: 0,
		Timestamp: time.Now().UTC(),
		Source:    "fallback_data",
		Note:      "Real-time transit data unavailable",
	}
}
