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

// AirQualityReport is the air quality payload served to clients.
type AirQualityReport struct {
	Location   Location             `json:"location"`
	AQI        int                  `json:"aqi"`
	Category   string               `json:"category"`
	Components AirQualityComponents `json:"components"`
	Timestamp  time.Time            `json:"timestamp"`
	Source     string               `json:"source"`
	Note       string               `json:"note,omitempty"`
}

type airPollutionResponse struct {
	List []struct {
		Main struct {
			AQI int `json:"aqi"`
		} `json:"main"`
		Components struct {
			CO   float64 `json:"co"`
			NO2  float64 `json:"no2"`
			O3   float64 `json:"o3"`
			SO2  float64 `json:"so2"`
			PM25 float64 `json:"pm2_5"`
			PM10 float64 `json:"pm10"`
		} `json:"components"`
	} `json:"list"`
}

// AirQualityClient fetches pollution data.
type AirQualityClient struct {
	apiKey  string
	baseURL string
	logger  *slog.Logger
	cache   *cache.TTLCache
}

// NewAirQualityClient creates an air quality client. An empty key is
// allowed; all lookups then serve the fallback payload.
func NewAirQualityClient(apiKey string) *AirQualityClient {
	return &AirQualityClient{
		apiKey:  apiKey,
		baseURL: OpenWeatherBaseURL,
		logger:  slog.Default().With("provider", tracing.ServiceAirQuality),
		cache:   cache.NewTTLCache(tracing.ServiceAirQuality, 10*time.Minute, time.Minute, 256),
	}
}

// SetBaseURL overrides the provider endpoint, used in tests.
func (c *AirQualityClient) SetBaseURL(base string) {
	c.baseURL = base
}

// SetCacheTTL overrides how long pollution readings are cached.
func (c *AirQualityClient) SetCacheTTL(ttl time.Duration) {
	c.cache.SetDefaultTTL(ttl)
}

// Available reports whether a provider key is configured.
func (c *AirQualityClient) Available() bool {
	return c.apiKey != ""
}

// Pollution returns the air quality index and pollutant concentrations for
// a coordinate. It never fails: missing keys and provider errors degrade to
// the fallback report.
func (c *AirQualityClient) Pollution(ctx context.Context, lat, lon float64) *AirQualityReport {
	if !c.Available() {
		c.logger.Warn("air quality provider key not configured")
		monitoring.RecordFallback(tracing.ServiceAirQuality, "missing_key")
		return fallbackAirQualityReport(lat, lon)
	}

	key := fmt.Sprintf("%.4f|%.4f", lat, lon)
	if v, ok := c.cache.Get(key); ok {
		recordCacheHit(ctx, tracing.CacheTypeProvider, key)
		return v.(*AirQualityReport)
	}
	monitoring.RecordCacheMiss(tracing.CacheTypeProvider)

	report, err := c.fetch(ctx, lat, lon)
	if err != nil {
		c.logger.Error("air quality lookup failed", "error", err, "lat", lat, "lon", lon)
		monitoring.RecordFallback(tracing.ServiceAirQuality, "request_failed")
		return fallbackAirQualityReport(lat, lon)
	}

	c.cache.Set(key, report)
	return report
}

func (c *AirQualityClient) fetch(ctx context.Context, lat, lon float64) (*AirQualityReport, error) {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lon", fmt.Sprintf("%f", lon))
	params.Set("appid", c.apiKey)

	req, err := NewRequest(ctx, http.MethodGet, c.baseURL+"/air_pollution?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := DoRequest(ctx, tracing.ServiceAirQuality, "pollution", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("air quality provider returned status %d", resp.StatusCode)
	}

	var payload airPollutionResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding air quality payload: %w", err)
	}
	if len(payload.List) == 0 {
		return nil, fmt.Errorf("air quality payload contained no readings")
	}

	reading := payload.List[0]
	return &AirQualityReport{
		Location: Location{Lat: lat, Lon: lon},
		AQI:      reading.Main.AQI,
		Category: AQICategory(reading.Main.AQI),
		Components: AirQualityComponents{
			CO:   reading.Components.CO,
			NO2:  reading.Components.NO2,
			O3:   reading.Components.O3,
			SO2:  reading.Components.SO2,
			PM25: reading.Components.PM25,
			PM10: reading.Components.PM10,
		},
		Timestamp: time.Now().UTC(),
		Source:    "OpenWeather",
	}, nil
}

// AQICategory names the 1..5 pollution index bands.
func AQICategory(aqi int) string {
	switch aqi {
	case 1:
		return "Good"
	case 2:
		return "Fair"
	case 3:
		return "Moderate"
	case 4:
		return "Poor"
	case 5:
		return "Very Poor"
	default:
		return "Unknown"
	}
}

// fallbackAirQualityReport is the payload served when live data is
// unavailable.
func fallbackAirQualityReport(lat, lon float64) *AirQualityReport {
	return &AirQualityReport{
		Location:  Location{Lat: lat, Lon: lon},
		AQI:       2,
		Category:  "Fair",
		Components: AirQualityComponents{
			PM25: 25,
			PM10: 45,
		},
		Timestamp: time.Now().UTC(),
		Source:    "fallback_data",
		Note:      "Real-time air quality data unavailable",
	}
}
