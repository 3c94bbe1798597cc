package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config aggregates the engine's configuration.
type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	User    UserConfig
	Mirror  MirrorConfig
}

// ServerConfig describes the local debug HTTP surface.
type ServerConfig struct {
	Addr string
}

// BackendConfig locates the remote backend.
type BackendConfig struct {
	BaseURL    string
	WSURL      string
	Token      string
	GeocodeURL string
}

// UserConfig carries the authenticated user's static identity.
type UserConfig struct {
	ID          string
	Name        string
	FirstName   string
	Preferences []string
	PriceRange  string
}

// MirrorConfig describes the on-disk mirror.
type MirrorConfig struct {
	Path    string
	Enabled bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	backend, err := loadBackendConfig()
	if err != nil {
		return nil, err
	}

	mirrorEnabled, err := parseBoolEnv("MIRROR_ENABLED", true)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server:  server,
		Backend: backend,
		User: UserConfig{
			ID:          strings.TrimSpace(os.Getenv("USER_ID")),
			Name:        getEnvOrDefault("USER_NAME", "User"),
			FirstName:   strings.TrimSpace(os.Getenv("USER_FIRST_NAME")),
			Preferences: splitList(os.Getenv("USER_PREFERENCES")),
			PriceRange:  strings.TrimSpace(os.Getenv("USER_PRICE_RANGE")),
		},
		Mirror: MirrorConfig{
			Path:    getEnvOrDefault("MIRROR_PATH", "tablemate.db"),
			Enabled: mirrorEnabled,
		},
	}

	if cfg.User.ID == "" {
		return nil, fmt.Errorf("USER_ID is required")
	}
	return cfg, nil
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("DEBUG_PORT"))
	if port == "" {
		port = "7080"
	}

	if strings.Contains(port, ":") {
		// Allow ":7080" or "127.0.0.1:7080" directly.
		return ServerConfig{Addr: port}, nil
	}
	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid DEBUG_PORT value %q: %w", port, err)
	}
	return ServerConfig{Addr: ":" + port}, nil
}

func loadBackendConfig() (BackendConfig, error) {
	baseURL := strings.TrimSpace(os.Getenv("BACKEND_URL"))
	if baseURL == "" {
		return BackendConfig{}, fmt.Errorf("BACKEND_URL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	wsURL := strings.TrimSpace(os.Getenv("BACKEND_WS_URL"))
	if wsURL == "" {
		// Derive from the REST URL when not set explicitly.
		wsURL = strings.Replace(baseURL, "http", "ws", 1)
	}
	wsURL = strings.TrimSuffix(wsURL, "/")

	token := strings.TrimSpace(os.Getenv("BACKEND_TOKEN"))
	if token == "" {
		return BackendConfig{}, fmt.Errorf("BACKEND_TOKEN is required")
	}

	return BackendConfig{
		BaseURL:    baseURL,
		WSURL:      wsURL,
		Token:      token,
		GeocodeURL: strings.TrimSpace(os.Getenv("GEOCODE_URL")),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
