package slither

import (
	"fmt"
	"strings"

	"github.com/mongodb/grip"
)

// APIConfig holds the settings of the HTTP service.
type APIConfig struct {
	Host   string `yaml:"host" json:"host"`
	Port   int    `yaml:"port" json:"port"`
	Prefix string `yaml:"prefix" json:"prefix"`
	// RateLimit is the sustained number of requests per second the
	// service accepts; zero disables throttling.
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`
	Burst     int     `yaml:"burst" json:"burst"`
	// DisableMetrics turns off the prometheus endpoint and request
	// instrumentation.
	DisableMetrics bool `yaml:"disable_metrics" json:"disable_metrics"`
	// TrustProxyHeaders makes the service honor X-Forwarded-* headers.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers" json:"trust_proxy_headers"`
}

func (c *APIConfig) SectionId() string { return "api" }

func (c *APIConfig) ValidateAndDefault() error {
	catcher := grip.NewBasicCatcher()
	if c.Port == 0 {
		c.Port = DefaultAPIPort
	}
	if c.Prefix != "" && !strings.HasPrefix(c.Prefix, "/") {
		c.Prefix = "/" + c.Prefix
	}
	c.Prefix = strings.TrimSuffix(c.Prefix, "/")
	if c.RateLimit > 0 && c.Burst == 0 {
		c.Burst = int(c.RateLimit)
		if c.Burst < 1 {
			c.Burst = 1
		}
	}

	catcher.ErrorfWhen(c.Port < 0 || c.Port > 65535, "port %d is out of range", c.Port)
	catcher.NewWhen(c.RateLimit < 0, "rate limit cannot be negative")
	catcher.NewWhen(c.Burst < 0, "burst cannot be negative")
	return catcher.Resolve()
}

// Address returns the listen address of the service.
func (c *APIConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
