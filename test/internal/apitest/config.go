package apitest

import "os"

// Config defines runtime inputs for API tests.
type Config struct {
	BaseURL         string
	EmailSuffix     string
	DefaultPassword string
}

// LoadConfig reads environment variables with sensible defaults for local docker env.
func LoadConfig() Config {
	return Config{
		BaseURL:         getenv("BASE_URL", "http://localhost:8080"),
		EmailSuffix:     getenv("SMOKE_EMAIL_SUFFIX", "example.com"),
		DefaultPassword: getenv("SMOKE_PASSWORD", "smoke-password-1"),
	}
}

// getenv fetches an environment variable with fallback to default value.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
