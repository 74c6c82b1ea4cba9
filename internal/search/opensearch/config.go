package opensearch

import (
	"fmt"
	"time"
)

// Config holds OpenSearch connection settings.
type Config struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	UseTLS    bool   `json:"use_tls"`
	IndexName string `json:"index_name"`
	// Dimension is the width of the kNN vector field in the index mapping.
	Dimension int           `json:"dimension"`
	Timeout   time.Duration `json:"timeout"`
}

// DefaultConfig returns default OpenSearch configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:      "localhost",
		Port:      9200,
		IndexName: "documents",
		Dimension: 384,
		Timeout:   30 * time.Second,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port")
	}
	if c.IndexName == "" {
		return fmt.Errorf("index name is required")
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("dimension must be positive")
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

// GetHTTPURL returns the base URL for the OpenSearch HTTP API.
func (c *Config) GetHTTPURL() string {
	scheme := "http"
	if c.UseTLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}
