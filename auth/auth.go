package auth

import (
	"context"
	"net/http"

	"github.com/evergreen-ci/slither"
	"github.com/evergreen-ci/slither/rest/model"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Authenticator establishes who is making a request. Failures are
// reported as Unauthenticated API errors; any other error is treated
// as an internal failure.
type Authenticator interface {
	Authenticate(context.Context, *http.Request) (*User, error)
}

// AuthorizationRequest describes the action being authorized.
type AuthorizationRequest struct {
	Method     string
	Collection string
	User       *User
	// Instance is the preloaded record for instance requests and nil for
	// collection requests.
	Instance model.Record
}

// Authorizer decides whether a caller may act on a resource and
// supplies the query fragment that scopes what the caller can see.
type Authorizer interface {
	IsAuthorized(context.Context, AuthorizationRequest) error
	AccessLimits(context.Context, AuthorizationRequest) (bson.M, error)
}

// NoAuthentication lets every request through anonymously.
type NoAuthentication struct{}

func (NoAuthentication) Authenticate(context.Context, *http.Request) (*User, error) { return nil, nil }

// NoAuthorization allows every request and does not limit access.
type NoAuthorization struct{}

func (NoAuthorization) IsAuthorized(context.Context, AuthorizationRequest) error { return nil }

func (NoAuthorization) AccessLimits(context.Context, AuthorizationRequest) (bson.M, error) {
	return bson.M{}, nil
}

// NewAuthenticator builds the authenticator selected by the settings.
func NewAuthenticator(conf slither.AuthConfig, store CredentialStore) (Authenticator, error) {
	switch conf.Kind {
	case slither.AuthKindNone, "":
		return NoAuthentication{}, nil
	case slither.AuthKindSigning:
		if store == nil {
			return nil, errors.New("request signing requires a credential store")
		}
		return NewRequestSigningAuthentication(store, conf.Signing), nil
	case slither.AuthKindJWT:
		return NewJWTAuthentication(conf.JWT)
	default:
		return nil, errors.Errorf("unknown authentication kind '%s'", conf.Kind)
	}
}

// NewAuthorizer builds the authorizer named in a resource definition.
func NewAuthorizer(conf slither.ResourceConfig) (Authorizer, error) {
	switch conf.Authorization {
	case slither.AuthorizationNone, "":
		return NoAuthorization{}, nil
	case slither.AuthorizationReadOnly:
		return ReadOnlyAuthorization{}, nil
	case slither.AuthorizationPermission:
		return PermissionAuthorization{ScopeField: conf.ScopeField}, nil
	default:
		return nil, errors.Errorf("unknown authorization '%s'", conf.Authorization)
	}
}
