package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/citymesh/ecoroute/pkg/monitoring"
	"github.com/citymesh/ecoroute/pkg/tracing"
)

const assistantModel = "gemini-1.5-flash"

const assistantSystemPrompt = `You are EcoBot, an AI assistant specialized in sustainable transportation and environmental impact reduction. Your expertise includes:

- Eco-friendly route planning and optimization
- Public transportation recommendations
- Carbon footprint calculations and reduction strategies
- Air quality awareness and health impacts
- Sustainable mobility solutions (cycling, walking, electric vehicles)
- Real-time environmental data interpretation
- Traffic pattern analysis for emission reduction

Guidelines:
- Always prioritize environmental sustainability
- Provide practical, actionable advice
- Include specific data when possible (CO2 savings, time estimates)
- Consider user context (location, weather, air quality)
- Be encouraging and positive about eco-friendly choices
- Explain environmental benefits clearly
- Suggest alternatives when eco options aren't available

IMPORTANT FORMATTING RULES:
- Use ONLY plain text in your responses
- Do NOT use any markdown formatting like **bold**, *italic*, or # headers
- Do NOT use bullet points with * or -
- Use simple numbered lists (1. 2. 3.) if needed
- Keep responses conversational and easy to read without any special formatting

Keep responses concise but informative, and always include at least one specific eco tip.`

// ChatRouteContext describes the route the user is currently viewing.
type ChatRouteContext struct {
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Distance string `json:"distance,omitempty"`
}

// ChatContext is optional situational data attached to a chat message.
type ChatContext struct {
	Location        string            `json:"location,omitempty"`
	CurrentRoute    *ChatRouteContext `json:"current_route,omitempty"`
	VehicleType     string            `json:"vehicle_type,omitempty"`
	AirQualityIndex int               `json:"air_quality_index,omitempty"`
	CommuteDistance string            `json:"commute_distance,omitempty"`
}

// ChatSuggestion is an actionable line extracted from an assistant reply.
type ChatSuggestion struct {
	Text       string `json:"text"`
	Type       string `json:"type"`
	Actionable bool   `json:"actionable"`
}

// ChatResponse is the assistant payload served to clients.
type ChatResponse struct {
	Response       string           `json:"response"`
	Suggestions    []ChatSuggestion `json:"suggestions"`
	Timestamp      time.Time        `json:"timestamp"`
	Model          string           `json:"model"`
	ConversationID int              `json:"conversation_id,omitempty"`
	Note           string           `json:"note,omitempty"`
}

// EcoTip is a single sustainability tip.
type EcoTip struct {
	Tip      string `json:"tip"`
	Category string `json:"category"`
	Impact   string `json:"impact"`
	Icon     string `json:"icon"`
	Savings  string `json:"savings"`
}

type generateRequest struct {
	SystemInstruction *generateContent  `json:"system_instruction,omitempty"`
	Contents          []generateContent `json:"contents"`
	GenerationConfig  generationConfig  `json:"generationConfig"`
}

type generateContent struct {
	Role  string         `json:"role,omitempty"`
	Parts []generatePart `json:"parts"`
}

type generatePart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// AssistantClient answers sustainability questions with a generative model,
// degrading to canned guidance when the model is unavailable.
type AssistantClient struct {
	apiKey  string
	baseURL string
	logger  *slog.Logger

	mu            sync.Mutex
	conversations int
}

// NewAssistantClient creates an assistant client. An empty or demo key is
// allowed; all queries then serve fallback responses.
func NewAssistantClient(apiKey string) *AssistantClient {
	if apiKey == "demo_key" {
		apiKey = ""
	}
	return &AssistantClient{
		apiKey:  apiKey,
		baseURL: AssistantBaseURL,
		logger:  slog.Default().With("provider", tracing.ServiceAssistant),
	}
}

// SetBaseURL overrides the provider endpoint, used in tests.
func (c *AssistantClient) SetBaseURL(base string) {
	c.baseURL = base
}

// Available reports whether a model key is configured.
func (c *AssistantClient) Available() bool {
	return c.apiKey != ""
}

// Chat answers a user message, optionally enriched with situational context.
// It never fails: missing keys and model errors degrade to keyword-matched
// fallback responses.
func (c *AssistantClient) Chat(ctx context.Context, message string, chatCtx *ChatContext) *ChatResponse {
	if !c.Available() {
		monitoring.RecordFallback(tracing.ServiceAssistant, "missing_key")
		return fallbackChatResponse(message)
	}

	text, err := c.generate(ctx, "chat", assistantSystemPrompt, enhanceMessage(message, chatCtx))
	if err != nil {
		c.logger.Error("assistant chat failed", "error", err)
		monitoring.RecordFallback(tracing.ServiceAssistant, "request_failed")
		return fallbackChatResponse(message)
	}

	c.mu.Lock()
	c.conversations++
	id := c.conversations
	c.mu.Unlock()

	return &ChatResponse{
		Response:       text,
		Suggestions:    extractSuggestions(text),
		Timestamp:      time.Now().UTC(),
		Model:          assistantModel,
		ConversationID: id,
	}
}

// EcoTips returns up to three context-aware sustainability tips, degrading
// to the canned list when the model is unavailable.
func (c *AssistantClient) EcoTips(ctx context.Context, chatCtx *ChatContext) []EcoTip {
	if !c.Available() {
		monitoring.RecordFallback(tracing.ServiceAssistant, "missing_key")
		return FallbackEcoTips()
	}

	prompt := "Provide 3 specific eco-friendly transportation tips"
	if chatCtx != nil {
		if chatCtx.Location != "" {
			prompt += fmt.Sprintf(" for someone in %s", chatCtx.Location)
		}
		if chatCtx.CommuteDistance != "" {
			prompt += fmt.Sprintf(" with a typical commute of %s km", chatCtx.CommuteDistance)
		}
	}
	prompt += ". Make each tip specific, actionable, and include estimated environmental impact. Use plain text only, no markdown formatting."

	text, err := c.generate(ctx, "tips", "", prompt)
	if err != nil {
		c.logger.Error("assistant tips failed", "error", err)
		monitoring.RecordFallback(tracing.ServiceAssistant, "request_failed")
		return FallbackEcoTips()
	}

	tips := parseTips(text)
	if len(tips) == 0 {
		return FallbackEcoTips()
	}
	return tips
}

func (c *AssistantClient) generate(ctx context.Context, operation, system, prompt string) (string, error) {
	reqBody := generateRequest{
		Contents: []generateContent{{
			Role:  "user",
			Parts: []generatePart{{Text: prompt}},
		}},
		GenerationConfig: generationConfig{
			Temperature:     0.7,
			TopP:            0.8,
			TopK:            40,
			MaxOutputTokens: 1000,
		},
	}
	if system != "" {
		reqBody.SystemInstruction = &generateContent{Parts: []generatePart{{Text: system}}}
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	reqURL := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, assistantModel, c.apiKey)
	req, err := NewRequest(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := DoRequest(ctx, tracing.ServiceAssistant, operation, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("assistant model returned status %d", resp.StatusCode)
	}

	var payload generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding assistant payload: %w", err)
	}
	if len(payload.Candidates) == 0 || len(payload.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("assistant payload contained no candidates")
	}

	return payload.Candidates[0].Content.Parts[0].Text, nil
}

// enhanceMessage prepends situational context to the user's question so the
// model can tailor its advice.
func enhanceMessage(message string, chatCtx *ChatContext) string {
	if chatCtx == nil {
		return message
	}

	var parts []string
	if chatCtx.Location != "" {
		parts = append(parts, fmt.Sprintf("User location: %s", chatCtx.Location))
	}
	if r := chatCtx.CurrentRoute; r != nil {
		from, to := r.From, r.To
		if from == "" {
			from = "Unknown"
		}
		if to == "" {
			to = "Unknown"
		}
		parts = append(parts, fmt.Sprintf("Current route: %s to %s", from, to))
		if r.Distance != "" {
			parts = append(parts, fmt.Sprintf("Distance: %s km", r.Distance))
		}
	}
	if chatCtx.VehicleType != "" {
		parts = append(parts, fmt.Sprintf("Vehicle type: %s", chatCtx.VehicleType))
	}
	if chatCtx.AirQualityIndex > 0 {
		parts = append(parts, fmt.Sprintf("Current air quality: AQI %d", chatCtx.AirQualityIndex))
	}

	if len(parts) == 0 {
		return message
	}
	return fmt.Sprintf("Context: %s\n\nUser question: %s", strings.Join(parts, "; "), message)
}

var suggestionKeywords = []string{
	"recommend", "suggest", "try", "consider", "use", "switch to",
	"opt for", "choose", "go with", "take the",
}

// extractSuggestions pulls actionable lines from a reply, capped at three.
func extractSuggestions(text string) []ChatSuggestion {
	suggestions := []ChatSuggestion{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) <= 20 || len(line) >= 200 {
			continue
		}
		lower := strings.ToLower(line)
		for _, kw := range suggestionKeywords {
			if strings.Contains(lower, kw) {
				suggestions = append(suggestions, ChatSuggestion{
					Text:       line,
					Type:       "recommendation",
					Actionable: true,
				})
				break
			}
		}
		if len(suggestions) == 3 {
			break
		}
	}
	return suggestions
}

type tipCategory struct {
	category string
	icon     string
	impact   string
}

// Keyword order matters: the first matching keyword wins.
var tipCategoryKeywords = []struct {
	keyword string
	info    tipCategory
}{
	{"public", tipCategory{"Public Transport", "🚌", "high"}},
	{"bus", tipCategory{"Public Transport", "🚌", "high"}},
	{"train", tipCategory{"Public Transport", "🚊", "high"}},
	{"cycle", tipCategory{"Active Transport", "🚴", "high"}},
	{"bike", tipCategory{"Active Transport", "🚴", "high"}},
	{"walk", tipCategory{"Active Transport", "🚶", "high"}},
	{"drive", tipCategory{"Driving Efficiency", "⚡", "medium"}},
	{"fuel", tipCategory{"Driving Efficiency", "⛽", "medium"}},
	{"route", tipCategory{"Route Planning", "🗺️", "medium"}},
	{"trip", tipCategory{"Trip Planning", "🗺️", "medium"}},
	{"electric", tipCategory{"Clean Energy", "🔋", "high"}},
	{"carpool", tipCategory{"Shared Transport", "👥", "medium"}},
}

var (
	co2SavingsRe     = regexp.MustCompile(`(\d+\.?\d*)\s*kg.*co2`)
	percentSavingsRe = regexp.MustCompile(`(\d+)%`)
	tipStartRe       = regexp.MustCompile(`^(1\.|2\.|3\.|•|-)`)
)

// parseTips splits a model reply into structured tips, categorizing each by
// keyword and extracting any claimed savings. At most three are returned.
func parseTips(text string) []EcoTip {
	var tips []EcoTip
	current := ""

	flush := func() {
		if current == "" || len(tips) >= 3 {
			return
		}
		tips = append(tips, buildTip(strings.TrimSpace(current)))
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if tipStartRe.MatchString(line) {
			flush()
			current = line
		} else if current != "" {
			current += " " + line
		}
	}
	flush()

	return tips
}

func buildTip(text string) EcoTip {
	lower := strings.ToLower(text)

	info := tipCategory{"Eco Transport", "🌱", "medium"}
	for _, entry := range tipCategoryKeywords {
		if strings.Contains(lower, entry.keyword) {
			info = entry.info
			break
		}
	}

	savings := "Reduces emissions"
	if strings.Contains(text, "kg") && strings.Contains(lower, "co2") {
		if m := co2SavingsRe.FindStringSubmatch(lower); m != nil {
			savings = fmt.Sprintf("%s kg CO₂ saved", m[1])
		}
	} else if strings.Contains(text, "%") {
		if m := percentSavingsRe.FindStringSubmatch(text); m != nil {
			savings = fmt.Sprintf("%s%% emission reduction", m[1])
		}
	}

	return EcoTip{
		Tip:      text,
		Category: info.category,
		Impact:   info.impact,
		Icon:     info.icon,
		Savings:  savings,
	}
}

// fallbackChatResponse keyword-matches the question onto canned guidance.
func fallbackChatResponse(message string) *ChatResponse {
	lower := strings.ToLower(message)

	var response string
	switch {
	case containsAny(lower, "route", "direction", "way"):
		response = "I'd recommend checking public transportation options or cycling routes for a more eco-friendly journey. These alternatives can significantly reduce your carbon footprint!"
	case containsAny(lower, "traffic", "congestion", "jam"):
		response = "During heavy traffic, consider using public transit or planning your trip for off-peak hours to reduce emissions and save time."
	case containsAny(lower, "weather", "rain", "sunny"):
		response = "Weather conditions can affect your travel choices. On clear days, cycling or walking are great eco-friendly options!"
	default:
		response = "I'm here to help you make more sustainable transportation choices! Consider public transit, cycling, or walking when possible to reduce your environmental impact."
	}

	return &ChatResponse{
		Response:    response,
		Suggestions: []ChatSuggestion{},
		Timestamp:   time.Now().UTC(),
		Model:       "fallback",
		Note:        "AI service temporarily unavailable",
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// FallbackEcoTips is the canned tip list served when the model is
// unavailable.
func FallbackEcoTips() []EcoTip {
	return []EcoTip{
		{
			Tip:      "Switch to public transportation for your daily commute. Buses and trains can reduce your carbon footprint by up to 45% compared to driving alone, while saving you money on fuel and parking costs.",
			Category: "Public Transport",
			Impact:   "high",
			Icon:     "🚌",
			Savings:  "Up to 2.3 kg CO₂ per day",
		},
		{
			Tip:      "Choose cycling or walking for trips under 5 kilometers. These zero-emission options provide excellent exercise while completely eliminating transportation-related carbon emissions for short journeys.",
			Category: "Active Transport",
			Impact:   "high",
			Icon:     "🚴",
			Savings:  "100% emission reduction",
		},
		{
			Tip:      "Plan and combine multiple errands into a single trip. Trip chaining can reduce your fuel consumption by 20-30% and significantly decrease the number of cold engine starts, which are less efficient.",
			Category: "Trip Planning",
			Impact:   "medium",
			Icon:     "🗺️",
			Savings:  "0.5-1.2 kg CO₂ per week",
		},
		{
			Tip:      "Maintain optimal driving speeds between 50-80 km/h on highways. This speed range maximizes fuel efficiency and can improve your gas mileage by up to 15% compared to aggressive driving.",
			Category: "Driving Efficiency",
			Impact:   "medium",
			Icon:     "⚡",
			Savings:  "0.8 kg CO₂ per 100km",
		},
		{
			Tip:      "Use eco-friendly route options that avoid heavy traffic and steep inclines. Smart routing can reduce fuel consumption by 10-20% and decrease travel time while lowering emissions.",
			Category: "Route Optimization",
			Impact:   "medium",
			Icon:     "🌱",
			Savings:  "0.3-0.6 kg CO₂ per trip",
		},
	}
}
