package slither

import (
	"time"

	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
)

const (
	AuthKindNone    = "none"
	AuthKindSigning = "signing"
	AuthKindJWT     = "jwt"
)

// AuthConfig selects how callers authenticate against every resource.
type AuthConfig struct {
	Kind    string            `yaml:"kind" json:"kind"`
	Signing SigningAuthConfig `yaml:"signing" json:"signing"`
	JWT     JWTAuthConfig     `yaml:"jwt" json:"jwt"`
}

// SigningAuthConfig configures HMAC request signing.
type SigningAuthConfig struct {
	Window     time.Duration `yaml:"window" json:"window"`
	SiteHeader string        `yaml:"site_header" json:"site_header"`
	DateHeader string        `yaml:"date_header" json:"date_header"`
}

// JWTAuthConfig configures bearer token authentication.
type JWTAuthConfig struct {
	Secret string `yaml:"secret" json:"-"`
	Issuer string `yaml:"issuer" json:"issuer"`
}

func (c *AuthConfig) SectionId() string { return "auth" }

func (c *AuthConfig) ValidateAndDefault() error {
	catcher := grip.NewBasicCatcher()
	if c.Kind == "" {
		c.Kind = AuthKindNone
	}
	catcher.ErrorfWhen(!utility.StringSliceContains([]string{AuthKindNone, AuthKindSigning, AuthKindJWT}, c.Kind),
		"unknown authentication kind '%s'", c.Kind)

	if c.Signing.Window == 0 {
		c.Signing.Window = DefaultSignedRequestWindow
	}
	if c.Signing.SiteHeader == "" {
		c.Signing.SiteHeader = DefaultSiteHeader
	}
	if c.Signing.DateHeader == "" {
		c.Signing.DateHeader = DefaultDateHeader
	}
	catcher.NewWhen(c.Signing.Window < 0, "signing window cannot be negative")
	catcher.NewWhen(c.Kind == AuthKindJWT && c.JWT.Secret == "", "jwt authentication requires a secret")

	return catcher.Resolve()
}
