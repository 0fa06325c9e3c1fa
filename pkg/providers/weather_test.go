package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWeatherTrafficImpact(t *testing.T) {
	tests := []struct {
		name         string
		condition    string
		visibilityKm float64
		windKph      float64
		wantScore    int
		wantLevel    string
	}{
		{"clear conditions", "Sunny", 10, 10, 0, "low"},
		{"light rain", "Light rain", 10, 10, 30, "medium"},
		{"storm", "Thunderstorm", 10, 10, 30, "medium"},
		{"snow", "Heavy snow", 10, 10, 30, "medium"},
		{"fog only", "Fog", 10, 10, 20, "low"},
		{"mist only", "Mist", 10, 10, 20, "low"},
		{"poor visibility", "Sunny", 3, 10, 25, "medium"},
		{"limited visibility", "Sunny", 8, 10, 10, "low"},
		{"strong winds", "Sunny", 10, 60, 15, "low"},
		{"rain with poor visibility", "Rain", 3, 10, 55, "high"},
		{"everything at once", "Storm", 2, 60, 70, "high"},
		{"fog with poor visibility", "Fog", 4, 10, 45, "medium"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			impact := weatherTrafficImpact(tt.condition, tt.visibilityKm, tt.windKph)
			if impact.ImpactScore != tt.wantScore {
				t.Errorf("score = %d, want %d", impact.ImpactScore, tt.wantScore)
			}
			if impact.ImpactLevel != tt.wantLevel {
				t.Errorf("level = %q, want %q", impact.ImpactLevel, tt.wantLevel)
			}
		})
	}
}

func TestWeatherTrafficImpactFactors(t *testing.T) {
	impact := weatherTrafficImpact("Heavy rain", 3, 60)
	want := []string{"Precipitation", "Poor visibility", "Strong winds"}
	if len(impact.Factors) != len(want) {
		t.Fatalf("factors = %v, want %v", impact.Factors, want)
	}
	for i, f := range want {
		if impact.Factors[i] != f {
			t.Errorf("factor[%d] = %q, want %q", i, impact.Factors[i], f)
		}
	}
}

func TestDrivingRecommendation(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, "Weather conditions are favorable for driving."},
		{20, "Weather conditions are favorable for driving."},
		{21, "Drive carefully and allow extra time for your journey."},
		{50, "Drive carefully and allow extra time for your journey."},
		{51, "Exercise extreme caution. Consider delaying travel if possible."},
	}
	for _, tt := range tests {
		if got := drivingRecommendation(tt.score); got != tt.want {
			t.Errorf("drivingRecommendation(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestWeatherCurrentWithoutKey(t *testing.T) {
	c := NewWeatherClient("")
	report := c.Current(context.Background(), "Hyderabad", 17.3850, 78.4867)

	if report.Source != "fallback_data" {
		t.Errorf("source = %q, want fallback_data", report.Source)
	}
	if report.CurrentWeather.TemperatureC != 25 {
		t.Errorf("temperature = %v, want 25", report.CurrentWeather.TemperatureC)
	}
	if report.AirQuality.USEPAIndex != 2 {
		t.Errorf("epa index = %d, want 2", report.AirQuality.USEPAIndex)
	}
	if report.TrafficImpact.ImpactLevel != "low" {
		t.Errorf("impact level = %q, want low", report.TrafficImpact.ImpactLevel)
	}
}

func TestWeatherCurrentFromServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/current.json":
			if r.URL.Query().Get("aqi") != "yes" {
				t.Errorf("aqi param = %q, want yes", r.URL.Query().Get("aqi"))
			}
			fmt.Fprint(w, `{
				"location": {"name": "Hyderabad", "region": "Telangana", "country": "India", "lat": 17.38, "lon": 78.49},
				"current": {
					"temp_c": 31.5, "temp_f": 88.7,
					"condition": {"text": "Light rain"},
					"humidity": 74, "wind_kph": 22.3, "wind_dir": "SW",
					"pressure_mb": 1008, "vis_km": 8, "uv": 6, "feelslike_c": 36.1,
					"air_quality": {"co": 300.4, "no2": 18.2, "o3": 40.1, "so2": 8.5,
						"pm2_5": 42.7, "pm10": 61.3, "us-epa-index": 3, "gb-defra-index": 4}
				}
			}`)
		case "/forecast.json":
			fmt.Fprint(w, `{
				"forecast": {"forecastday": [
					{"date": "2026-08-29", "day": {"maxtemp_c": 33, "mintemp_c": 24,
						"condition": {"text": "Patchy rain"}, "daily_chance_of_rain": 80,
						"maxwind_kph": 28, "avghumidity": 70}}
				]},
				"alerts": {"alert": []}
			}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewWeatherClient("test-key")
	c.SetBaseURL(srv.URL)

	report := c.Current(context.Background(), "Hyderabad", 17.3850, 78.4867)

	if report.Source != "WeatherAPI" {
		t.Fatalf("source = %q, want WeatherAPI", report.Source)
	}
	if report.Location.Name != "Hyderabad" {
		t.Errorf("location name = %q, want Hyderabad", report.Location.Name)
	}
	if report.CurrentWeather.Condition != "Light rain" {
		t.Errorf("condition = %q, want Light rain", report.CurrentWeather.Condition)
	}
	if report.AirQuality.PM25 != 42.7 {
		t.Errorf("pm2_5 = %v, want 42.7", report.AirQuality.PM25)
	}
	if report.AirQuality.USEPAIndex != 3 {
		t.Errorf("epa index = %d, want 3", report.AirQuality.USEPAIndex)
	}

	// Rain plus limited visibility: 30 + 10.
	if report.TrafficImpact.ImpactScore != 40 {
		t.Errorf("impact score = %d, want 40", report.TrafficImpact.ImpactScore)
	}
	if report.TrafficImpact.ImpactLevel != "medium" {
		t.Errorf("impact level = %q, want medium", report.TrafficImpact.ImpactLevel)
	}

	if len(report.Forecast.Days) != 1 {
		t.Fatalf("forecast days = %d, want 1", len(report.Forecast.Days))
	}
	if report.Forecast.Days[0].ChanceOfRain != 80 {
		t.Errorf("chance of rain = %d, want 80", report.Forecast.Days[0].ChanceOfRain)
	}
}

func TestWeatherCurrentMissingVisibility(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/current.json":
			fmt.Fprint(w, `{
				"location": {"name": "Hyderabad", "lat": 17.38, "lon": 78.49},
				"current": {
					"temp_c": 29, "temp_f": 84.2,
					"condition": {"text": "Sunny"},
					"humidity": 60, "wind_kph": 12, "wind_dir": "W",
					"pressure_mb": 1010, "uv": 5, "feelslike_c": 31,
					"air_quality": {"us-epa-index": 2}
				}
			}`)
		case "/forecast.json":
			fmt.Fprint(w, `{"forecast": {"forecastday": []}, "alerts": {"alert": []}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewWeatherClient("test-key")
	c.SetBaseURL(srv.URL)

	report := c.Current(context.Background(), "Hyderabad", 17.3850, 78.4867)

	// Absent vis_km means clear visibility, not zero.
	if report.CurrentWeather.VisibilityKm != 10 {
		t.Errorf("visibility = %v, want 10", report.CurrentWeather.VisibilityKm)
	}
	if report.TrafficImpact.ImpactScore != 0 {
		t.Errorf("impact score = %d, want 0", report.TrafficImpact.ImpactScore)
	}
	for _, f := range report.TrafficImpact.Factors {
		if f == "Poor visibility" {
			t.Errorf("unexpected visibility factor in %v", report.TrafficImpact.Factors)
		}
	}
}

func TestWeatherCurrentServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewWeatherClient("bad-key")
	c.SetBaseURL(srv.URL)

	report := c.Current(context.Background(), "Hyderabad", 17.3850, 78.4867)
	if report.Source != "fallback_data" {
		t.Errorf("source = %q, want fallback_data", report.Source)
	}
	if report.Note == "" {
		t.Error("expected fallback note")
	}
}

func TestWeatherCurrentCaches(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/current.json" {
			calls++
		}
		fmt.Fprint(w, `{"location": {"name": "X"}, "current": {"condition": {"text": "Clear"}, "vis_km": 10}}`)
	}))
	defer srv.Close()

	c := NewWeatherClient("test-key")
	c.SetBaseURL(srv.URL)

	ctx := context.Background()
	c.Current(ctx, "X", 1, 2)
	c.Current(ctx, "X", 1, 2)

	if calls != 1 {
		t.Errorf("current.json calls = %d, want 1", calls)
	}
}
