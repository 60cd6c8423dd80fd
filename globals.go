package slither

import (
	"os"
	"time"
)

const (
	ProgramName = "slither"
	PackageName = "github.com/evergreen-ci/slither"

	// HTTP verbs understood by the resource handlers.
	MethodGet     = "GET"
	MethodHead    = "HEAD"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodPatch   = "PATCH" // RFC 5789
	MethodDelete  = "DELETE"
	MethodOptions = "OPTIONS"

	DefaultServiceConfigurationFileName = "/etc/slither.yml"
	DefaultDatabaseURL                  = "mongodb://localhost:27017"
	DefaultDatabaseName                 = "slither"
	DefaultDatabaseConnectTimeout       = 10 * time.Second
	DefaultAPIPort                      = 8080

	// DefaultLookupField is the field used to address a single record by
	// value when a resource does not name one.
	DefaultLookupField = "name"

	DefaultCORSMaxAge = 6 * time.Hour
	CacheMaxAge       = 30 * time.Second

	// ObjectIDPattern matches the hex form of a storage identifier.
	ObjectIDPattern = "[a-f0-9]{24}"

	DefaultSignedRequestWindow = 15 * time.Minute
	DefaultSiteHeader          = "Fs-Site"
	DefaultDateHeader          = "Fs-Date"

	SitesCollection = "sites"
	UsersCollection = "users"

	// Environment variables that take precedence over the settings file.
	MongoURLEnvVar  = "SLITHER_MONGODB_URL"
	JWTSecretEnvVar = "SLITHER_JWT_SECRET"
)

// BuildRevision is set at link time.
var BuildRevision = ""

// DefaultMethods is the verb set a resource accepts when it does not
// declare its own.
func DefaultMethods() []string {
	return []string{MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete}
}

// IsWriteMethod reports whether requests with the given verb carry a
// record payload.
func IsWriteMethod(method string) bool {
	switch method {
	case MethodPost, MethodPut, MethodPatch:
		return true
	default:
		return false
	}
}

func getEnvOr(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}
