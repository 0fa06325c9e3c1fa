package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/citymesh/ecoroute/pkg/cache"
	"github.com/citymesh/ecoroute/pkg/eco"
	"github.com/citymesh/ecoroute/pkg/monitoring"
	"github.com/citymesh/ecoroute/pkg/tracing"
)

// Location identifies the place a weather report covers.
type Location struct {
	Name    string  `json:"name"`
	Region  string  `json:"region,omitempty"`
	Country string  `json:"country,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// CurrentWeather holds the current observed conditions.
type CurrentWeather struct {
	TemperatureC float64 `json:"temperature_c"`
	TemperatureF float64 `json:"temperature_f,omitempty"`
	Condition    string  `json:"condition"`
	Humidity     int     `json:"humidity"`
	WindKph      float64 `json:"wind_kph"`
	WindDir      string  `json:"wind_dir,omitempty"`
	PressureMb   float64 `json:"pressure_mb,omitempty"`
	VisibilityKm float64 `json:"visibility_km,omitempty"`
	UVIndex      float64 `json:"uv_index,omitempty"`
	FeelsLikeC   float64 `json:"feels_like_c,omitempty"`
}

// AirQualityComponents are pollutant concentrations reported alongside weather.
type AirQualityComponents struct {
	CO         float64 `json:"co"`
	NO2        float64 `json:"no2"`
	O3         float64 `json:"o3"`
	SO2        float64 `json:"so2"`
	PM25       float64 `json:"pm2_5"`
	PM10       float64 `json:"pm10"`
	USEPAIndex int     `json:"us_epa_index"`
	DefraIndex int     `json:"gb_defra_index,omitempty"`
}

// ForecastDay is a single day of forecast data.
type ForecastDay struct {
	Date         string  `json:"date"`
	MaxTempC     float64 `json:"max_temp_c"`
	MinTempC     float64 `json:"min_temp_c"`
	Condition    string  `json:"condition"`
	ChanceOfRain int     `json:"chance_of_rain"`
	MaxWindKph   float64 `json:"max_wind_kph"`
	AvgHumidity  float64 `json:"avg_humidity"`
}

// Forecast holds the multi-day outlook and active alerts.
type Forecast struct {
	Days   []ForecastDay `json:"days"`
	Alerts []interface{} `json:"alerts"`
}

// TrafficImpact describes how current weather affects driving conditions.
type TrafficImpact struct {
	ImpactScore    int      `json:"impact_score"`
	ImpactLevel    string   `json:"impact_level"`
	Factors        []string `json:"factors"`
	Recommendation string   `json:"recommendation"`
}

// WeatherReport is the full weather payload served to clients.
type WeatherReport struct {
	Location       Location             `json:"location"`
	CurrentWeather CurrentWeather       `json:"current_weather"`
	AirQuality     AirQualityComponents `json:"air_quality"`
	Forecast       Forecast             `json:"forecast"`
	TrafficImpact  TrafficImpact        `json:"traffic_impact"`
	Timestamp      time.Time            `json:"timestamp"`
	Source         string               `json:"source"`
	Note           string               `json:"note,omitempty"`
}

// weatherAPIResponse mirrors the provider's current-conditions payload.
type weatherAPIResponse struct {
	Location struct {
		Name    string  `json:"name"`
		Region  string  `json:"region"`
		Country string  `json:"country"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	} `json:"location"`
	Current struct {
		TempC     float64 `json:"temp_c"`
		TempF     float64 `json:"temp_f"`
		Condition struct {
			Text string `json:"text"`
		} `json:"condition"`
		Humidity   int      `json:"humidity"`
		WindKph    float64  `json:"wind_kph"`
		WindDir    string   `json:"wind_dir"`
		PressureMb float64  `json:"pressure_mb"`
		VisKm      *float64 `json:"vis_km"`
		UV         float64  `json:"uv"`
		FeelsLikeC float64  `json:"feelslike_c"`
		AirQuality struct {
			CO         float64 `json:"co"`
			NO2        float64 `json:"no2"`
			O3         float64 `json:"o3"`
			SO2        float64 `json:"so2"`
			PM25       float64 `json:"pm2_5"`
			PM10       float64 `json:"pm10"`
			USEPAIndex int     `json:"us-epa-index"`
			DefraIndex int     `json:"gb-defra-index"`
		} `json:"air_quality"`
	} `json:"current"`
}

type weatherForecastResponse struct {
	Forecast struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  struct {
				MaxTempC  float64 `json:"maxtemp_c"`
				MinTempC  float64 `json:"mintemp_c"`
				Condition struct {
					Text string `json:"text"`
				} `json:"condition"`
				DailyChanceOfRain int     `json:"daily_chance_of_rain"`
				MaxWindKph        float64 `json:"maxwind_kph"`
				AvgHumidity       float64 `json:"avghumidity"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
	Alerts struct {
		Alert []interface{} `json:"alert"`
	} `json:"alerts"`
}

// WeatherClient fetches current conditions, air quality and forecasts.
type WeatherClient struct {
	apiKey  string
	baseURL string
	logger  *slog.Logger
	cache   *cache.TTLCache
}

// NewWeatherClient creates a weather client. An empty key is allowed; all
// lookups then serve the fallback payload.
func NewWeatherClient(apiKey string) *WeatherClient {
	return &WeatherClient{
		apiKey:  apiKey,
		baseURL: WeatherAPIBaseURL,
		logger:  slog.Default().With("provider", tracing.ServiceWeather),
		cache:   cache.NewTTLCache(tracing.ServiceWeather, 5*time.Minute, time.Minute, 256),
	}
}

// SetBaseURL overrides the provider endpoint, used in tests.
func (c *WeatherClient) SetBaseURL(base string) {
	c.baseURL = base
}

// SetCacheTTL overrides how long current-conditions responses are cached.
func (c *WeatherClient) SetCacheTTL(ttl time.Duration) {
	c.cache.SetDefaultTTL(ttl)
}

// Available reports whether a provider key is configured.
func (c *WeatherClient) Available() bool {
	return c.apiKey != ""
}

// Current returns comprehensive weather data for a coordinate. It never
// fails: missing keys, provider errors and bad payloads all degrade to the
// fallback report.
func (c *WeatherClient) Current(ctx context.Context, city string, lat, lon float64) *WeatherReport {
	if !c.Available() {
		c.logger.Warn("weather provider key not configured")
		monitoring.RecordFallback(tracing.ServiceWeather, "missing_key")
		return fallbackWeatherReport()
	}

	key := fmt.Sprintf("%s|%.4f|%.4f", city, lat, lon)
	if v, ok := c.cache.Get(key); ok {
		recordCacheHit(ctx, tracing.CacheTypeProvider, key)
		return v.(*WeatherReport)
	}
	monitoring.RecordCacheMiss(tracing.CacheTypeProvider)

	report, err := c.fetchCurrent(ctx, city, lat, lon)
	if err != nil {
		c.logger.Error("weather lookup failed", "error", err, "lat", lat, "lon", lon)
		monitoring.RecordFallback(tracing.ServiceWeather, "request_failed")
		return fallbackWeatherReport()
	}

	c.cache.Set(key, report)
	return report
}

func (c *WeatherClient) fetchCurrent(ctx context.Context, city string, lat, lon float64) (*WeatherReport, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("q", fmt.Sprintf("%f,%f", lat, lon))
	params.Set("aqi", "yes")

	req, err := NewRequest(ctx, http.MethodGet, c.baseURL+"/current.json?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := DoRequest(ctx, tracing.ServiceWeather, "current", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather provider returned status %d", resp.StatusCode)
	}

	var payload weatherAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding weather payload: %w", err)
	}

	name := payload.Location.Name
	if name == "" {
		name = city
	}
	reportLat := payload.Location.Lat
	if reportLat == 0 {
		reportLat = lat
	}
	reportLon := payload.Location.Lon
	if reportLon == 0 {
		reportLon = lon
	}

	// Visibility is optional in the payload; absent means clear, not zero.
	visKm := 10.0
	if payload.Current.VisKm != nil {
		visKm = *payload.Current.VisKm
	}

	report := &WeatherReport{
		Location: Location{
			Name:    name,
			Region:  payload.Location.Region,
			Country: payload.Location.Country,
			Lat:     reportLat,
			Lon:     reportLon,
		},
		CurrentWeather: CurrentWeather{
			TemperatureC: payload.Current.TempC,
			TemperatureF: payload.Current.TempF,
			Condition:    payload.Current.Condition.Text,
			Humidity:     payload.Current.Humidity,
			WindKph:      payload.Current.WindKph,
			WindDir:      payload.Current.WindDir,
			PressureMb:   payload.Current.PressureMb,
			VisibilityKm: visKm,
			UVIndex:      payload.Current.UV,
			FeelsLikeC:   payload.Current.FeelsLikeC,
		},
		AirQuality: AirQualityComponents{
			CO:         payload.Current.AirQuality.CO,
			NO2:        payload.Current.AirQuality.NO2,
			O3:         payload.Current.AirQuality.O3,
			SO2:        payload.Current.AirQuality.SO2,
			PM25:       payload.Current.AirQuality.PM25,
			PM10:       payload.Current.AirQuality.PM10,
			USEPAIndex: defaultInt(payload.Current.AirQuality.USEPAIndex, 1),
			DefraIndex: payload.Current.AirQuality.DefraIndex,
		},
		Forecast:      c.fetchForecast(ctx, lat, lon),
		TrafficImpact: weatherTrafficImpact(payload.Current.Condition.Text, visKm, payload.Current.WindKph),
		Timestamp:     time.Now().UTC(),
		Source:        "WeatherAPI",
	}

	return report, nil
}

// fetchForecast fetches the 3-day outlook; failures degrade to an empty
// forecast rather than failing the weather report.
func (c *WeatherClient) fetchForecast(ctx context.Context, lat, lon float64) Forecast {
	empty := Forecast{Days: []ForecastDay{}, Alerts: []interface{}{}}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("q", fmt.Sprintf("%f,%f", lat, lon))
	params.Set("days", "3")
	params.Set("aqi", "no")
	params.Set("alerts", "yes")

	req, err := NewRequest(ctx, http.MethodGet, c.baseURL+"/forecast.json?"+params.Encode(), nil)
	if err != nil {
		return empty
	}

	resp, err := DoRequest(ctx, tracing.ServiceWeather, "forecast", req)
	if err != nil {
		c.logger.Error("forecast lookup failed", "error", err)
		return empty
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return empty
	}

	var payload weatherForecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logger.Error("decoding forecast payload failed", "error", err)
		return empty
	}

	days := make([]ForecastDay, 0, len(payload.Forecast.ForecastDay))
	for _, d := range payload.Forecast.ForecastDay {
		days = append(days, ForecastDay{
			Date:         d.Date,
			MaxTempC:     d.Day.MaxTempC,
			MinTempC:     d.Day.MinTempC,
			Condition:    d.Day.Condition.Text,
			ChanceOfRain: d.Day.DailyChanceOfRain,
			MaxWindKph:   d.Day.MaxWindKph,
			AvgHumidity:  d.Day.AvgHumidity,
		})
	}

	alerts := payload.Alerts.Alert
	if alerts == nil {
		alerts = []interface{}{}
	}

	return Forecast{Days: days, Alerts: alerts}
}

// weatherTrafficImpact scores how conditions affect driving. Precipitation
// weighs heaviest, then visibility, then wind.
func weatherTrafficImpact(condition string, visibilityKm, windKph float64) TrafficImpact {
	lower := strings.ToLower(condition)

	score := 0
	factors := []string{}

	if strings.Contains(lower, "rain") || strings.Contains(lower, "storm") || strings.Contains(lower, "snow") {
		score += 30
		factors = append(factors, "Precipitation")
	} else if strings.Contains(lower, "fog") || strings.Contains(lower, "mist") {
		score += 20
		factors = append(factors, "Reduced visibility")
	}

	if visibilityKm < 5 {
		score += 25
		factors = append(factors, "Poor visibility")
	} else if visibilityKm < 10 {
		score += 10
		factors = append(factors, "Limited visibility")
	}

	if windKph > 50 {
		score += 15
		factors = append(factors, "Strong winds")
	}

	if score > 100 {
		score = 100
	}

	return TrafficImpact{
		ImpactScore:    score,
		ImpactLevel:    string(impactLevel(score)),
		Factors:        factors,
		Recommendation: drivingRecommendation(score),
	}
}

func impactLevel(score int) eco.WeatherImpact {
	switch {
	case score > 50:
		return eco.ImpactHigh
	case score > 20:
		return eco.ImpactMedium
	default:
		return eco.ImpactLow
	}
}

func drivingRecommendation(score int) string {
	switch {
	case score > 50:
		return "Exercise extreme caution. Consider delaying travel if possible."
	case score > 20:
		return "Drive carefully and allow extra time for your journey."
	default:
		return "Weather conditions are favorable for driving."
	}
}

// fallbackWeatherReport is the payload served when live data is unavailable.
func fallbackWeatherReport() *WeatherReport {
	return &WeatherReport{
		Location: Location{Name: "Unknown"},
		CurrentWeather: CurrentWeather{
			TemperatureC: 25,
			Condition:    "Clear",
			Humidity:     60,
			WindKph:      10,
		},
		AirQuality: AirQualityComponents{
			PM25:       25,
			PM10:       45,
			USEPAIndex: 2,
		},
		Forecast: Forecast{Days: []ForecastDay{}, Alerts: []interface{}{}},
		TrafficImpact: TrafficImpact{
			ImpactScore:    0,
			ImpactLevel:    string(eco.ImpactLow),
			Factors:        []string{},
			Recommendation: "Weather conditions are favorable for driving.",
		},
		Timestamp: time.Now().UTC(),
		Source:    "fallback_data",
		Note:      "Real-time weather data unavailable",
	}
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
