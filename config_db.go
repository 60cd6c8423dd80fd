package slither

import (
	"time"

	"github.com/mongodb/grip"
)

// DBSettings locates the MongoDB deployment that stores resource
// collections.
type DBSettings struct {
	Url            string        `yaml:"url" json:"url"`
	DB             string        `yaml:"db" json:"db"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	// ConnectAttempts bounds the startup ping loop.
	ConnectAttempts int `yaml:"connect_attempts" json:"connect_attempts"`
}

func (c *DBSettings) SectionId() string { return "database" }

func (c *DBSettings) ValidateAndDefault() error {
	catcher := grip.NewBasicCatcher()
	if c.Url == "" {
		c.Url = DefaultDatabaseURL
	}
	if c.DB == "" {
		c.DB = DefaultDatabaseName
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultDatabaseConnectTimeout
	}
	if c.ConnectAttempts == 0 {
		c.ConnectAttempts = 5
	}
	catcher.NewWhen(c.ConnectTimeout < 0, "connect timeout cannot be negative")
	catcher.NewWhen(c.ConnectAttempts < 0, "connect attempts cannot be negative")
	return catcher.Resolve()
}
