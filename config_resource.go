package slither

import (
	"strings"
	"time"

	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
)

const (
	AuthorizationNone       = "none"
	AuthorizationReadOnly   = "read_only"
	AuthorizationPermission = "permission"
)

// ResourceConfig declares one REST resource backed by a collection.
type ResourceConfig struct {
	Name string `yaml:"name" json:"name"`
	// URL is the route template of the collection; it defaults to the
	// pluralized name and may contain path placeholders.
	URL         string `yaml:"url" json:"url"`
	Collection  string `yaml:"collection" json:"collection"`
	LookupField string `yaml:"lookup_field" json:"lookup_field"`
	RootKey     string `yaml:"root_key" json:"root_key"`
	// EnforcePayloadRoot defaults to true when unset.
	EnforcePayloadRoot *bool    `yaml:"enforce_payload_root" json:"enforce_payload_root"`
	Methods            []string `yaml:"methods" json:"methods"`
	// AlwaysReturn lists the verbs that answer with the stored record.
	AlwaysReturn  []string          `yaml:"always_return" json:"always_return"`
	Fields        []string          `yaml:"fields" json:"fields"`
	ExcludeFields []string          `yaml:"exclude_fields" json:"exclude_fields"`
	Limit         int               `yaml:"limit" json:"limit"`
	MaxLimit      int               `yaml:"max_limit" json:"max_limit"`
	CORS          CORSConfig        `yaml:"cors" json:"cors"`
	Authorization string            `yaml:"authorization" json:"authorization"`
	ScopeField    string            `yaml:"scope_field" json:"scope_field"`
	Required      []string          `yaml:"required" json:"required"`
	FieldTypes    map[string]string `yaml:"field_types" json:"field_types"`
}

// CORSConfig controls cross origin negotiation for one resource. A nil
// Origins list accepts every origin that is not blocked, and a nil
// Headers list echoes whatever headers the client asks for.
type CORSConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Methods []string      `yaml:"methods" json:"methods"`
	MaxAge  time.Duration `yaml:"max_age" json:"max_age"`
	Origins []string      `yaml:"origins" json:"origins"`
	Blocked []string      `yaml:"blocked" json:"blocked"`
	Headers []string      `yaml:"headers" json:"headers"`
}

// Pluralize turns a name into a collection route segment: a trailing y
// becomes ies, anything else gains an s.
func Pluralize(name string) string {
	if strings.TrimSpace(name) == "" {
		return name
	}
	if strings.HasSuffix(name, "y") {
		return strings.TrimSuffix(name, "y") + "ies"
	}
	return name + "s"
}

// ResourceURL returns the route template a resource is served at,
// defaulting to its pluralized name.
func ResourceURL(name, url string) string {
	if url == "" {
		url = Pluralize(strings.ToLower(name))
	}
	return "/" + strings.Trim(url, "/")
}

func (c *ResourceConfig) SectionId() string { return "resource " + c.Name }

func (c *ResourceConfig) ValidateAndDefault() error {
	catcher := grip.NewBasicCatcher()
	catcher.NewWhen(c.Name == "", "resource name must be specified")
	if c.Authorization == "" {
		c.Authorization = AuthorizationNone
	}
	catcher.ErrorfWhen(!utility.StringSliceContains([]string{AuthorizationNone, AuthorizationReadOnly, AuthorizationPermission}, c.Authorization),
		"unknown authorization '%s'", c.Authorization)

	for idx := range c.Methods {
		c.Methods[idx] = strings.ToUpper(c.Methods[idx])
	}
	for idx := range c.AlwaysReturn {
		c.AlwaysReturn[idx] = strings.ToUpper(c.AlwaysReturn[idx])
	}
	catcher.NewWhen(c.Limit < 0, "limit cannot be negative")
	catcher.NewWhen(c.MaxLimit < 0, "max limit cannot be negative")
	catcher.NewWhen(c.CORS.MaxAge < 0, "cors max age cannot be negative")
	catcher.NewWhen(len(c.Fields) > 0 && len(c.ExcludeFields) > 0, "cannot both include and exclude default fields")

	return catcher.Resolve()
}
