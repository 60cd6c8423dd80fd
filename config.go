package slither

import (
	"os"
	"strings"

	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// ConfigSection defines a sub-document of the service settings that
// can validate itself and fill in its own defaults.
type ConfigSection interface {
	SectionId() string
	ValidateAndDefault() error
}

// Settings contains all configuration settings for running the
// service. Settings are read once at startup and not modified after
// validation.
type Settings struct {
	Database  DBSettings       `yaml:"database" json:"database"`
	Api       APIConfig        `yaml:"api" json:"api"`
	Auth      AuthConfig       `yaml:"auth" json:"auth"`
	Tracer    TracerConfig     `yaml:"tracer" json:"tracer"`
	LogLevel  string           `yaml:"log_level" json:"log_level"`
	Resources []ResourceConfig `yaml:"resources" json:"resources"`
}

// NewSettings builds an in-memory representation of the given
// settings file.
func NewSettings(filename string) (*Settings, error) {
	configData, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading settings file '%s'", filename)
	}

	return ParseSettings(configData)
}

// ParseSettings decodes YAML settings, applies overrides from the
// environment and validates the result.
func ParseSettings(data []byte) (*Settings, error) {
	settings := &Settings{}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, errors.Wrap(err, "parsing settings")
	}

	settings.applyEnvironment()

	if err := settings.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating settings")
	}

	return settings, nil
}

func (s *Settings) applyEnvironment() {
	s.Database.Url = getEnvOr(MongoURLEnvVar, s.Database.Url)
	s.Auth.JWT.Secret = getEnvOr(JWTSecretEnvVar, s.Auth.JWT.Secret)
}

func (s *Settings) sections() []ConfigSection {
	out := []ConfigSection{&s.Database, &s.Api, &s.Auth, &s.Tracer}
	for i := range s.Resources {
		out = append(out, &s.Resources[i])
	}
	return out
}

// Validate checks the settings and fills in defaults for unset fields.
func (s *Settings) Validate() error {
	catcher := grip.NewBasicCatcher()

	if s.LogLevel == "" {
		s.LogLevel = "info"
	}

	for _, section := range s.sections() {
		catcher.Wrapf(section.ValidateAndDefault(), "section '%s'", section.SectionId())
	}

	seen := map[string]bool{}
	urls := map[string]string{}
	for _, r := range s.Resources {
		key := strings.ToLower(r.Name)
		catcher.ErrorfWhen(seen[key], "resource '%s' is defined more than once", r.Name)
		seen[key] = true

		url := ResourceURL(r.Name, r.URL)
		if other, ok := urls[url]; ok {
			catcher.Errorf("resources '%s' and '%s' are both served at '%s'", other, r.Name, url)
			continue
		}
		urls[url] = r.Name
	}

	return catcher.Resolve()
}
