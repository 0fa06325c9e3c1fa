package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/citymesh/ecoroute/pkg/eco"
	"github.com/citymesh/ecoroute/pkg/monitoring"
	"github.com/citymesh/ecoroute/pkg/tracing"
)

// Coordinates is a latitude/longitude pair on route geometry.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RouteStep is a single maneuver along a route.
type RouteStep struct {
	Instruction   string      `json:"instruction"`
	Distance      string      `json:"distance"`
	Duration      string      `json:"duration"`
	StartLocation Coordinates `json:"start_location"`
	EndLocation   Coordinates `json:"end_location"`
}

// RouteBounds is the viewport enclosing a route.
type RouteBounds struct {
	Northeast Coordinates `json:"northeast"`
	Southwest Coordinates `json:"southwest"`
}

// RouteInfo is one routing alternative with its eco metrics.
type RouteInfo struct {
	Distance          string      `json:"distance"`
	Duration          string      `json:"duration"`
	DurationInTraffic string      `json:"duration_in_traffic,omitempty"`
	Steps             []RouteStep `json:"steps"`
	Polyline          string      `json:"polyline"`
	Bounds            RouteBounds `json:"bounds"`
	CarbonEstimateKg  float64     `json:"carbon_estimate_kg"`
	EcoScore          int         `json:"eco_score"`
}

// RouteRequest describes a routing query.
type RouteRequest struct {
	Source        string        `json:"source"`
	Destination   string        `json:"destination"`
	RouteType     eco.RouteType `json:"route_type"`
	AvoidTolls    bool          `json:"avoid_tolls"`
	AvoidHighways bool          `json:"avoid_highways"`
}

// RouteResponse is the routing payload served to clients.
type RouteResponse struct {
	Routes []RouteInfo `json:"routes"`
	Status string      `json:"status"`
}

// directionsAPIResponse mirrors the provider's directions payload.
type directionsAPIResponse struct {
	Status string `json:"status"`
	Routes []struct {
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		Bounds struct {
			Northeast struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"northeast"`
			Southwest struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"southwest"`
		} `json:"bounds"`
		Legs []struct {
			Distance struct {
				Text string `json:"text"`
			} `json:"distance"`
			Duration struct {
				Text string `json:"text"`
			} `json:"duration"`
			DurationInTraffic struct {
				Text string `json:"text"`
			} `json:"duration_in_traffic"`
			Steps []struct {
				HTMLInstructions string `json:"html_instructions"`
				Distance         struct {
					Text string `json:"text"`
				} `json:"distance"`
				Duration struct {
					Text string `json:"text"`
				} `json:"duration"`
				StartLocation struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"start_location"`
				EndLocation struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"end_location"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

// DirectionsClient fetches routing alternatives and enriches them with eco
// metrics.
type DirectionsClient struct {
	apiKey  string
	baseURL string
	logger  *slog.Logger
	cache   *lru.Cache[string, *RouteResponse]
}

// NewDirectionsClient creates a directions client. An empty or demo key is
// allowed; all queries then serve the mock route.
func NewDirectionsClient(apiKey string) *DirectionsClient {
	if apiKey == "demo_key_replace_with_actual_key" {
		apiKey = ""
	}
	c, _ := lru.New[string, *RouteResponse](128)
	return &DirectionsClient{
		apiKey:  apiKey,
		baseURL: DirectionsBaseURL,
		logger:  slog.Default().With("provider", tracing.ServiceDirections),
		cache:   c,
	}
}

// SetBaseURL overrides the provider endpoint, used in tests.
func (c *DirectionsClient) SetBaseURL(base string) {
	c.baseURL = base
}

// Available reports whether a provider key is configured.
func (c *DirectionsClient) Available() bool {
	return c.apiKey != ""
}

// Route returns routing alternatives for a query, deduplicated, enriched
// with carbon estimates and eco scores, and sorted by the requested
// optimization. It never fails: missing keys and provider errors degrade to
// the mock route.
func (c *DirectionsClient) Route(ctx context.Context, req RouteRequest) *RouteResponse {
	if req.RouteType == "" {
		req.RouteType = eco.RouteFastest
	}

	if !c.Available() {
		c.logger.Warn("directions provider key not configured")
		monitoring.RecordFallback(tracing.ServiceDirections, "missing_key")
		return MockRouteResponse()
	}

	key := cacheKey(req)
	if v, ok := c.cache.Get(key); ok {
		recordCacheHit(ctx, tracing.CacheTypeDirections, key)
		return v
	}
	monitoring.RecordCacheMiss(tracing.CacheTypeDirections)

	resp, err := c.fetch(ctx, req)
	if err != nil {
		c.logger.Error("directions lookup failed", "error", err,
			"source", req.Source, "destination", req.Destination)
		monitoring.RecordFallback(tracing.ServiceDirections, "request_failed")
		return MockRouteResponse()
	}

	c.cache.Add(key, resp)
	return resp
}

func cacheKey(req RouteRequest) string {
	return strings.Join([]string{
		strings.ToLower(req.Source),
		strings.ToLower(req.Destination),
		string(req.RouteType),
		fmt.Sprintf("%t|%t", req.AvoidTolls, req.AvoidHighways),
	}, "|")
}

func (c *DirectionsClient) fetch(ctx context.Context, req RouteRequest) (*RouteResponse, error) {
	params := url.Values{}
	params.Set("origin", req.Source)
	params.Set("destination", req.Destination)
	params.Set("mode", "driving")
	params.Set("alternatives", "true")
	params.Set("departure_time", "now")
	params.Set("traffic_model", "best_guess")
	params.Set("key", c.apiKey)

	var avoid []string
	if req.AvoidTolls {
		avoid = append(avoid, "tolls")
	}
	if req.AvoidHighways {
		avoid = append(avoid, "highways")
	}
	if len(avoid) > 0 {
		params.Set("avoid", strings.Join(avoid, "|"))
	}

	httpReq, err := NewRequest(ctx, http.MethodGet, c.baseURL+"/json?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := DoRequest(ctx, tracing.ServiceDirections, "route", httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directions provider returned status %d", resp.StatusCode)
	}

	var payload directionsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding directions payload: %w", err)
	}

	if payload.Status != "OK" || len(payload.Routes) == 0 {
		return &RouteResponse{Routes: []RouteInfo{}, Status: "NO_ROUTES_FOUND"}, nil
	}

	routes := make([]RouteInfo, 0, len(payload.Routes))
	for _, r := range payload.Routes {
		if len(r.Legs) == 0 {
			continue
		}
		leg := r.Legs[0]

		steps := make([]RouteStep, 0, len(leg.Steps))
		for _, s := range leg.Steps {
			steps = append(steps, RouteStep{
				Instruction:   s.HTMLInstructions,
				Distance:      s.Distance.Text,
				Duration:      s.Duration.Text,
				StartLocation: Coordinates{Latitude: s.StartLocation.Lat, Longitude: s.StartLocation.Lng},
				EndLocation:   Coordinates{Latitude: s.EndLocation.Lat, Longitude: s.EndLocation.Lng},
			})
		}

		info := RouteInfo{
			Distance:          leg.Distance.Text,
			Duration:          leg.Duration.Text,
			DurationInTraffic: leg.DurationInTraffic.Text,
			Steps:             steps,
			Polyline:          r.OverviewPolyline.Points,
			Bounds: RouteBounds{
				Northeast: Coordinates{Latitude: r.Bounds.Northeast.Lat, Longitude: r.Bounds.Northeast.Lng},
				Southwest: Coordinates{Latitude: r.Bounds.Southwest.Lat, Longitude: r.Bounds.Southwest.Lng},
			},
		}
		routes = append(routes, EnrichRoute(info, req.RouteType))
	}

	routes = DeduplicateRoutes(routes)
	SortRoutes(routes, req.RouteType)

	return &RouteResponse{Routes: routes, Status: "OK"}, nil
}

// Carbon factors per route type in kg CO2 per km. Shortest routes cover
// less ground and fastest routes favor steady highway speeds, so both carry
// slightly lower factors than eco routes through city streets.
var routeCarbonFactors = map[eco.RouteType]float64{
	eco.RouteEcoFriendly: 0.20,
	eco.RouteShortest:    0.19,
	eco.RouteFastest:     0.18,
}

// EnrichRoute attaches the carbon estimate and eco score for the requested
// optimization to a parsed route.
func EnrichRoute(info RouteInfo, routeType eco.RouteType) RouteInfo {
	distanceKm := eco.ParseDistanceKm(info.Distance)
	durationMin := eco.ParseDurationMinutes(info.Duration)

	factor, ok := routeCarbonFactors[routeType]
	if !ok {
		factor = routeCarbonFactors[eco.RouteFastest]
	}

	delay := 0
	if routeType == eco.RouteEcoFriendly && info.DurationInTraffic != "" {
		delay = eco.TrafficDelayMinutes(info.Duration, info.DurationInTraffic)
	}

	info.CarbonEstimateKg = eco.Round3(distanceKm * factor)
	info.EcoScore = eco.RouteScore(routeType, distanceKm, durationMin, delay)
	return info
}

// DeduplicateRoutes drops alternatives whose distance and duration are both
// within 5% of an already-kept route.
func DeduplicateRoutes(routes []RouteInfo) []RouteInfo {
	unique := make([]RouteInfo, 0, len(routes))
	for _, r := range routes {
		dist := eco.ParseDistanceKm(r.Distance)
		dur := float64(eco.ParseDurationMinutes(r.Duration))

		duplicate := false
		for _, kept := range unique {
			keptDist := eco.ParseDistanceKm(kept.Distance)
			keptDur := float64(eco.ParseDurationMinutes(kept.Duration))

			distDiff := abs(dist-keptDist) / maxf(keptDist, 0.1)
			durDiff := abs(dur-keptDur) / maxf(keptDur, 1)
			if distDiff < 0.05 && durDiff < 0.05 {
				duplicate = true
				break
			}
		}
		if !duplicate {
			unique = append(unique, r)
		}
	}
	return unique
}

// SortRoutes orders alternatives by the requested optimization: eco routes
// by score descending then carbon ascending, shortest by distance, fastest
// by duration.
func SortRoutes(routes []RouteInfo, routeType eco.RouteType) {
	switch routeType {
	case eco.RouteEcoFriendly:
		sort.SliceStable(routes, func(i, j int) bool {
			if routes[i].EcoScore != routes[j].EcoScore {
				return routes[i].EcoScore > routes[j].EcoScore
			}
			return routes[i].CarbonEstimateKg < routes[j].CarbonEstimateKg
		})
	case eco.RouteShortest:
		sort.SliceStable(routes, func(i, j int) bool {
			return eco.ParseDistanceKm(routes[i].Distance) < eco.ParseDistanceKm(routes[j].Distance)
		})
	default:
		sort.SliceStable(routes, func(i, j int) bool {
			return eco.ParseDurationMinutes(routes[i].Duration) < eco.ParseDurationMinutes(routes[j].Duration)
		})
	}
}

// MockRouteResponse is the canned route served when live routing is
// unavailable.
func MockRouteResponse() *RouteResponse {
	return &RouteResponse{
		Routes: []RouteInfo{{
			Distance:          "9.7 km",
			Duration:          "15 mins",
			DurationInTraffic: "18 mins",
			Steps: []RouteStep{
				{
					Instruction:   "Head north on Main St",
					Distance:      "1.2 km",
					Duration:      "3 mins",
					StartLocation: Coordinates{Latitude: 17.3850, Longitude: 78.4867},
					EndLocation:   Coordinates{Latitude: 17.3950, Longitude: 78.4867},
				},
				{
					Instruction:   "Turn right onto Highway 1",
					Distance:      "8.5 km",
					Duration:      "12 mins",
					StartLocation: Coordinates{Latitude: 17.3950, Longitude: 78.4867},
					EndLocation:   Coordinates{Latitude: 17.4065, Longitude: 78.4772},
				},
			},
			Polyline: "mock_polyline_data",
			Bounds: RouteBounds{
				Northeast: Coordinates{Latitude: 17.4065, Longitude: 78.4867},
				Southwest: Coordinates{Latitude: 17.3850, Longitude: 78.4772},
			},
			CarbonEstimateKg: 1.94,
			EcoScore:         75,
		}},
		Status: "OK_MOCK",
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
