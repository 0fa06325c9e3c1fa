package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/citymesh/ecoroute/pkg/core"
	"github.com/citymesh/ecoroute/pkg/eco"
	"github.com/citymesh/ecoroute/pkg/providers"
)

// maxTransitRadiusM bounds the transit stop search radius in meters.
const maxTransitRadiusM = 10000

// chatRequest is the body of POST /api/eco_chat.
type chatRequest struct {
	Message string                 `json:"message" binding:"required"`
	Context *providers.ChatContext `json:"context"`
}

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"google_maps_api_key": s.cfg.Keys.GoogleMaps,
		"app_name":            "EcoRoute",
		"version":             ServerVersion,
		"features": gin.H{
			"real_weather": true,
			"real_traffic": true,
			"real_transit": true,
			"eco_routes":   true,
			"ai_assistant": true,
			"user_auth":    true,
			"google_maps":  s.directions.Available(),
			"eco_chatbot":  s.assistant.Available(),
		},
	})
}

func (s *Server) handleRoute(c *gin.Context) {
	var req providers.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, core.NewError(core.ErrInvalidInput, "Invalid route request: "+err.Error()))
		return
	}
	if req.Source == "" || req.Destination == "" {
		abortWithError(c, core.NewError(core.ErrMissingParameter, "Source and destination are required"))
		return
	}

	logger := loggerFrom(c)
	logger.Info("route request",
		"source", req.Source, "destination", req.Destination, "type", req.RouteType)

	resp := s.directions.Route(c.Request.Context(), req)
	if len(resp.Routes) == 0 {
		abortWithError(c, core.NewError(core.ErrNoResults, "No routes found").
			WithQuery(req.Source+" to "+req.Destination).
			WithSuggestions("Check the spelling of the source and destination",
				"Try a nearby landmark or a wider area"))
		return
	}

	// Eco-friendly routes get re-scored against live environmental
	// conditions instead of the static per-route-type estimate.
	if eco.ParseRouteType(string(req.RouteType)) == eco.RouteEcoFriendly {
		for i := range resp.Routes {
			route := &resp.Routes[i]
			assessment := s.pipeline.Assess(c.Request.Context(), eco.AssessmentInput{
				DistanceKm:      eco.ParseDistanceKm(route.Distance),
				DurationMinutes: eco.ParseDurationMinutes(route.Duration),
				VehicleType:     "car",
				RouteType:       string(eco.RouteEcoFriendly),
				Lat:             s.cfg.Server.DefaultLat,
				Lon:             s.cfg.Server.DefaultLon,
			})
			route.CarbonEstimateKg = assessment.CO2Kg
			route.EcoScore = assessment.EcoScore

			logger.Info("enhanced eco route", "distance", route.Distance,
				"co2_kg", route.CarbonEstimateKg, "eco_score", route.EcoScore)
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleWeather(c *gin.Context) {
	city := c.DefaultQuery("city", "Hyderabad")
	lat, lon, ok := s.coords(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, s.weather.Current(c.Request.Context(), city, lat, lon))
}

func (s *Server) handleTraffic(c *gin.Context) {
	lat, lon, ok := s.coords(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, s.traffic.Conditions(c.Request.Context(), lat, lon))
}

func (s *Server) handleTransit(c *gin.Context) {
	lat, lon, ok := s.coords(c)
	if !ok {
		return
	}
	radius, err := core.ParseRadius(c.Request.URL.Query(), "radius", 1000, maxTransitRadiusM)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, s.transit.Nearby(c.Request.Context(), lat, lon, int(radius)))
}

func (s *Server) handleAirQuality(c *gin.Context) {
	lat, lon, ok := s.coords(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, s.airQuality.Pollution(c.Request.Context(), lat, lon))
}

func (s *Server) handleEmissions(c *gin.Context) {
	var in eco.AssessmentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		abortWithError(c, core.NewError(core.ErrInvalidInput, "Invalid emissions request: "+err.Error()))
		return
	}
	if in.Lat == 0 && in.Lon == 0 {
		in.Lat = s.cfg.Server.DefaultLat
		in.Lon = s.cfg.Server.DefaultLon
	}
	if err := core.ValidateCoords(in.Lat, in.Lon); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, s.pipeline.Assess(c.Request.Context(), in))
}

func (s *Server) handleEcoChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, core.NewError(core.ErrMissingParameter, "Message is required"))
		return
	}

	resp := s.assistant.Chat(c.Request.Context(), req.Message, req.Context)
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"response":    resp.Response,
		"suggestions": resp.Suggestions,
		"timestamp":   resp.Timestamp,
	})
}

func (s *Server) handleEcoTips(c *gin.Context) {
	chatCtx := &providers.ChatContext{
		Location:        c.Query("location"),
		CommuteDistance: c.Query("commute_distance"),
	}
	personalized := chatCtx.Location != "" || chatCtx.CommuteDistance != ""

	tips := s.assistant.EcoTips(c.Request.Context(), chatCtx)
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"tips":         tips,
		"timestamp":    time.Now().UTC(),
		"personalized": personalized,
	})
}

// coords extracts the lat/lon query parameters, defaulting to the
// configured city center. Out-of-range values produce a 400 and ok=false.
func (s *Server) coords(c *gin.Context) (lat, lon float64, ok bool) {
	lat, lon, err := core.ParseCoords(c.Request.URL.Query(), "lat", "lon",
		s.cfg.Server.DefaultLat, s.cfg.Server.DefaultLon)
	if err != nil {
		abortWithError(c, err)
		return 0, 0, false
	}
	return lat, lon, true
}

// abortWithError renders the structured error payload. The detail string is
// what the frontend surfaces; code and guidance are for API consumers.
func abortWithError(c *gin.Context, err error) {
	apiErr := core.AsAPIError(err)
	body := gin.H{"detail": apiErr.Message, "code": apiErr.Code}
	if apiErr.Guidance != "" {
		body["guidance"] = apiErr.Guidance
	}
	if len(apiErr.Suggestions) > 0 {
		body["suggestions"] = apiErr.Suggestions
	}
	c.JSON(apiErr.HTTPStatus(), body)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"services": gin.H{
			"google_maps": s.directions.Available(),
			"eco_chatbot": s.assistant.Available(),
			"real_data":   true,
		},
		"version": ServerVersion,
	})
}
