// In file: internal/tools/forecast_tool.go
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/meteo-chat/backend/internal/openmeteo"
)

// forecastUnavailableMessage is returned when the forecast provider cannot
// be reached, so the model can phrase a graceful reply.
const forecastUnavailableMessage = "Previsioni meteo non disponibili al momento."

// ForecastTool fetches current conditions and the short daily forecast for a
// coordinate pair from the Open-Meteo forecast API. The provider payload is
// passed to the model verbatim.
type ForecastTool struct {
	client *openmeteo.Client
}

var _ ToolExecutor = (*ForecastTool)(nil)

func NewForecastTool(client *openmeteo.Client) *ForecastTool {
	return &ForecastTool{client: client}
}

func (ft *ForecastTool) Definition() Tool {
	return NewFunctionTool(
		"forecast",
		"Returns weather data for the given coordinates: current conditions and the daily forecast.",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"latitude": {
					Type:        "number",
					Description: "Latitude of the location.",
				},
				"longitude": {
					Type:        "number",
					Description: "Longitude of the location.",
				},
			},
			Required: []string{"latitude", "longitude"},
		},
	)
}

// Execute fetches the forecast. Provider failures are logged and converted
// into an "unavailable" marker rather than raised, keeping the conversation
// alive.
func (ft *ForecastTool) Execute(ctx context.Context, arguments string) (string, error) {
	var args struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("invalid arguments for forecast tool: %w", err)
	}

	data, err := ft.client.Forecast(ctx, args.Latitude, args.Longitude)
	if err != nil {
		log.Printf("WARNING: forecast lookup failed for lat=%.4f lon=%.4f: %v", args.Latitude, args.Longitude, err)
		return forecastUnavailableMessage, nil
	}
	return string(data), nil
}
