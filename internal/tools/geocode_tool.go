// In file: internal/tools/geocode_tool.go
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/meteo-chat/backend/internal/openmeteo"
)

// cityNotFoundMessage is what the model receives when geocoding misses, so
// it can relay the outcome in its own words instead of the request failing.
const cityNotFoundMessage = "Città non trovata."

// GeocodeTool resolves a free-text city name to coordinates through the
// Open-Meteo geocoding API. In a typical conversation the model calls it
// first and then feeds the coordinates into the forecast tool.
type GeocodeTool struct {
	client *openmeteo.Client
}

var _ ToolExecutor = (*GeocodeTool)(nil)

func NewGeocodeTool(client *openmeteo.Client) *GeocodeTool {
	return &GeocodeTool{client: client}
}

func (gt *GeocodeTool) Definition() Tool {
	return NewFunctionTool(
		"geocode",
		"Returns the latitude and longitude of a given city.",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"city": {
					Type:        "string",
					Description: "Name of the city, e.g. Milano or Roma.",
				},
			},
			Required: []string{"city"},
		},
	)
}

// Execute looks the city up. A miss or a provider failure is not an error:
// the external-call problem is logged and the model receives a short
// natural-language marker it can relay to the user.
func (gt *GeocodeTool) Execute(ctx context.Context, arguments string) (string, error) {
	var args struct {
		City string `json:"city"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("invalid arguments for geocode tool: %w", err)
	}
	if strings.TrimSpace(args.City) == "" {
		return cityNotFoundMessage, nil
	}

	coords, err := gt.client.Geocode(ctx, args.City)
	if err != nil {
		log.Printf("WARNING: geocoding failed for %q: %v", args.City, err)
		return cityNotFoundMessage, nil
	}
	if coords == nil {
		return cityNotFoundMessage, nil
	}

	payload, err := json.Marshal(coords)
	if err != nil {
		return "", fmt.Errorf("failed to serialize coordinates: %w", err)
	}
	return string(payload), nil
}
