package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/citymesh/ecoroute/pkg/cache"
	"github.com/citymesh/ecoroute/pkg/monitoring"
	"github.com/citymesh/ecoroute/pkg/tracing"
)

// FlowData describes measured speeds on the road segment nearest a point.
type FlowData struct {
	CurrentSpeedKmh   float64 `json:"current_speed_kmh"`
	FreeFlowSpeedKmh  float64 `json:"free_flow_speed_kmh"`
	CurrentTravelTime float64 `json:"current_travel_time_sec"`
	FreeFlowTime      float64 `json:"free_flow_travel_time_sec"`
	CongestionPercent float64 `json:"congestion_percent"`
	RoadClosure       bool    `json:"road_closure"`
	Confidence        float64 `json:"confidence"`
}

// TrafficIncident is a single reported disruption near the query point.
type TrafficIncident struct {
	Type        string  `json:"type"`
	Severity    string  `json:"severity"`
	Description string  `json:"description"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// TrafficReport is the full traffic payload served to clients.
type TrafficReport struct {
	Location        Location          `json:"location"`
	Flow            FlowData          `json:"flow"`
	Incidents       []TrafficIncident `json:"incidents"`
	IncidentCount   int               `json:"incident_count"`
	TrafficScore    int               `json:"traffic_score"`
	Recommendations []string          `json:"recommendations"`
	Timestamp       time.Time         `json:"timestamp"`
	Source          string            `json:"source"`
	Note            string            `json:"note,omitempty"`
}

type flowSegmentResponse struct {
	FlowSegmentData struct {
		CurrentSpeed          float64 `json:"currentSpeed"`
		FreeFlowSpeed         float64 `json:"freeFlowSpeed"`
		CurrentTravelTime     float64 `json:"currentTravelTime"`
		FreeFlowTravelTime    float64 `json:"freeFlowTravelTime"`
		RoadClosure           bool    `json:"roadClosure"`
		Confidence            float64 `json:"confidence"`
	} `json:"flowSegmentData"`
}

type incidentsResponse struct {
	Incidents []struct {
		Properties struct {
			IconCategory     int `json:"iconCategory"`
			MagnitudeOfDelay int `json:"magnitudeOfDelay"`
			Events           []struct {
				Description string `json:"description"`
			} `json:"events"`
		} `json:"properties"`
		Geometry struct {
			Coordinates []interface{} `json:"coordinates"`
		} `json:"geometry"`
	} `json:"incidents"`
}

// TrafficClient fetches live flow and incident data.
type TrafficClient struct {
	apiKey  string
	baseURL string
	logger  *slog.Logger
	cache   *cache.TTLCache
}

// NewTrafficClient creates a traffic client. An empty key is allowed; all
// lookups then serve the fallback payload.
func NewTrafficClient(apiKey string) *TrafficClient {
	return &TrafficClient{
		apiKey:  apiKey,
		baseURL: TomTomBaseURL,
		logger:  slog.Default().With("provider", tracing.ServiceTraffic),
		cache:   cache.NewTTLCache(tracing.ServiceTraffic, 2*time.Minute, time.Minute, 256),
	}
}

// SetBaseURL overrides the provider endpoint, used in tests.
func (c *TrafficClient) SetBaseURL(base string) {
	c.baseURL = base
}

// SetCacheTTL overrides how long traffic conditions are cached.
func (c *TrafficClient) SetCacheTTL(ttl time.Duration) {
	c.cache.SetDefaultTTL(ttl)
}

// Available reports whether a provider key is configured.
func (c *TrafficClient) Available() bool {
	return c.apiKey != ""
}

// Conditions returns live traffic around a coordinate. It never fails:
// missing keys and provider errors degrade to the fallback report.
func (c *TrafficClient) Conditions(ctx context.Context, lat, lon float64) *TrafficReport {
	if !c.Available() {
		c.logger.Warn("traffic provider key not configured")
		monitoring.RecordFallback(tracing.ServiceTraffic, "missing_key")
		return fallbackTrafficReport(lat, lon)
	}

	key := fmt.Sprintf("%.4f|%.4f", lat, lon)
	if v, ok := c.cache.Get(key); ok {
		recordCacheHit(ctx, tracing.CacheTypeProvider, key)
		return v.(*TrafficReport)
	}
	monitoring.RecordCacheMiss(tracing.CacheTypeProvider)

	flow, err := c.fetchFlow(ctx, lat, lon)
	if err != nil {
		c.logger.Error("traffic flow lookup failed", "error", err, "lat", lat, "lon", lon)
		monitoring.RecordFallback(tracing.ServiceTraffic, "request_failed")
		return fallbackTrafficReport(lat, lon)
	}

	// Incident failures degrade to an empty list, not a fallback report.
	incidents := c.fetchIncidents(ctx, lat, lon)

	score := trafficScore(flow.CongestionPercent, len(incidents))
	report := &TrafficReport{
		Location:        Location{Lat: lat, Lon: lon},
		Flow:            flow,
		Incidents:       incidents,
		IncidentCount:   len(incidents),
		TrafficScore:    score,
		Recommendations: trafficRecommendations(score, len(incidents)),
		Timestamp:       time.Now().UTC(),
		Source:          "TomTom",
	}

	c.cache.Set(key, report)
	return report
}

func (c *TrafficClient) fetchFlow(ctx context.Context, lat, lon float64) (FlowData, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("point", fmt.Sprintf("%f,%f", lat, lon))

	reqURL := c.baseURL + "/traffic/services/4/flowSegmentData/absolute/10/json?" + params.Encode()
	req, err := NewRequest(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return FlowData{}, err
	}

	resp, err := DoRequest(ctx, tracing.ServiceTraffic, "flow", req)
	if err != nil {
		return FlowData{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return FlowData{}, fmt.Errorf("traffic provider returned status %d", resp.StatusCode)
	}

	var payload flowSegmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return FlowData{}, fmt.Errorf("decoding flow payload: %w", err)
	}

	seg := payload.FlowSegmentData
	return FlowData{
		CurrentSpeedKmh:   seg.CurrentSpeed,
		FreeFlowSpeedKmh:  seg.FreeFlowSpeed,
		CurrentTravelTime: seg.CurrentTravelTime,
		FreeFlowTime:      seg.FreeFlowTravelTime,
		CongestionPercent: congestionPercent(seg.CurrentSpeed, seg.FreeFlowSpeed),
		RoadClosure:       seg.RoadClosure,
		Confidence:        seg.Confidence,
	}, nil
}

func (c *TrafficClient) fetchIncidents(ctx context.Context, lat, lon float64) []TrafficIncident {
	bbox := fmt.Sprintf("%f,%f,%f,%f", lon-0.01, lat-0.01, lon+0.01, lat+0.01)

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("bbox", bbox)
	params.Set("fields", "{incidents{properties{iconCategory,magnitudeOfDelay,events{description}},geometry{coordinates}}}")

	req, err := NewRequest(ctx, http.MethodGet, c.baseURL+"/traffic/services/5/incidentDetails?"+params.Encode(), nil)
	if err != nil {
		return []TrafficIncident{}
	}

	resp, err := DoRequest(ctx, tracing.ServiceTraffic, "incidents", req)
	if err != nil {
		c.logger.Error("incident lookup failed", "error", err)
		return []TrafficIncident{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return []TrafficIncident{}
	}

	var payload incidentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logger.Error("decoding incidents payload failed", "error", err)
		return []TrafficIncident{}
	}

	incidents := make([]TrafficIncident, 0, len(payload.Incidents))
	for _, in := range payload.Incidents {
		desc := "Traffic incident"
		if len(in.Properties.Events) > 0 && in.Properties.Events[0].Description != "" {
			desc = in.Properties.Events[0].Description
		}
		incidents = append(incidents, TrafficIncident{
			Type:        fmt.Sprintf("category_%d", in.Properties.IconCategory),
			Severity:    incidentSeverity(in.Properties.MagnitudeOfDelay),
			Description: desc,
			Lat:         lat,
			Lon:         lon,
		})
	}
	return incidents
}

// congestionPercent derives a 0..100 congestion figure from measured speeds,
// rounded to one decimal.
func congestionPercent(current, freeFlow float64) float64 {
	if freeFlow < 1 {
		freeFlow = 1
	}
	pct := (1 - current/freeFlow) * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return math.Round(pct*10) / 10
}

func incidentSeverity(magnitude int) string {
	switch {
	case magnitude >= 4:
		return "high"
	case magnitude >= 2:
		return "medium"
	default:
		return "low"
	}
}

// trafficScore maps congestion and incident load onto 0..100, higher is
// better flow.
func trafficScore(congestion float64, incidents int) int {
	score := int(100 - congestion*0.8 - float64(incidents)*10)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func trafficRecommendations(score, incidents int) []string {
	var recs []string
	switch {
	case score < 30:
		recs = append(recs, "Heavy congestion. Consider delaying your trip or using public transit.")
	case score < 60:
		recs = append(recs, "Moderate traffic. Allow extra travel time.")
	default:
		recs = append(recs, "Traffic is flowing well.")
	}
	if incidents > 0 {
		recs = append(recs, fmt.Sprintf("%d incident(s) reported nearby. Check your route before departing.", incidents))
	}
	return recs
}

// fallbackTrafficReport is the payload served when live data is unavailable.
func fallbackTrafficReport(lat, lon float64) *TrafficReport {
	return &TrafficReport{
		Location:        Location{Lat: lat, Lon: lon},
		Flow:            FlowData{CongestionPercent: 0},
		Incidents:       []TrafficIncident{},
		IncidentCount:   0,
		TrafficScore:    80,
		Recommendations: []string{"Traffic is flowing well."},
		Timestamp:       time.Now().UTC(),
		Source:          "fallback_data",
		Note:            "Real-time traffic data unavailable",
	}
}
