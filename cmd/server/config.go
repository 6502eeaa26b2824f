// In file: cmd/server/config.go
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/meteo-chat/backend/internal/chat"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig holds all configuration for the backend. Secrets come from the
// environment; everything that shapes the conversation comes from
// config.yaml so it can be tuned without a rebuild.
type AppConfig struct {
	Port      string
	RedisAddr string

	// Cloudflare Workers AI credentials, used for "@cf/..." models.
	CloudflareAccountID string
	CloudflareAPIToken  string
	// Gemini API key, used for "gemini..." models.
	GeminiAPIKey string

	// GeocodingLanguage is the locale requested from the geocoding provider
	// for display names.
	GeocodingLanguage string

	Chat chat.Config
}

// configFile mirrors the layout of config.yaml.
type configFile struct {
	Chat              chat.Config `yaml:"chat"`
	GeocodingLanguage string      `yaml:"geocoding_language"`
}

// LoadConfig loads configuration from a .env file (local development only),
// environment variables, and config.yaml.
func LoadConfig() (*AppConfig, error) {
	// In Docker (GIN_MODE=release) configuration is provided directly as
	// environment variables; a .env file only exists locally.
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Println("WARNING: No .env file found for local development.")
		}
	}

	cfg := &AppConfig{
		Port:                os.Getenv("PORT"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		CloudflareAccountID: os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		CloudflareAPIToken:  os.Getenv("CLOUDFLARE_API_TOKEN"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	raw, err := os.ReadFile("config.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}
	var file configFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config.yaml: %w", err)
	}
	cfg.Chat = file.Chat
	cfg.GeocodingLanguage = file.GeocodingLanguage

	if cfg.Chat.Model == "" {
		return nil, fmt.Errorf("config.yaml must set chat.model")
	}
	if cfg.Chat.RefusalSentence == "" {
		return nil, fmt.Errorf("config.yaml must set chat.refusal_sentence")
	}
	if cfg.Chat.Persona == "" {
		return nil, fmt.Errorf("config.yaml must set chat.persona")
	}
	if cfg.Chat.ResponseLanguage == "" {
		cfg.Chat.ResponseLanguage = "italiano"
	}
	if cfg.GeocodingLanguage == "" {
		cfg.GeocodingLanguage = "it"
	}
	return cfg, nil
}
