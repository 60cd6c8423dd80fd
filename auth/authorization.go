package auth

import (
	"context"
	"fmt"

	"github.com/evergreen-ci/slither"
	"github.com/evergreen-ci/slither/rest"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"go.mongodb.org/mongo-driver/bson"
)

// ReadOnlyAuthorization only allows reads.
type ReadOnlyAuthorization struct{}

func (ReadOnlyAuthorization) IsAuthorized(ctx context.Context, req AuthorizationRequest) error {
	if req.Method == slither.MethodGet {
		return nil
	}
	return rest.Errorf(rest.Unauthorized, "Resource is read only")
}

func (ReadOnlyAuthorization) AccessLimits(context.Context, AuthorizationRequest) (bson.M, error) {
	return bson.M{}, nil
}

// PermissionAuthorization grants access through group permissions named
// after the action and the model, such as "view_widget" or
// "delete_company". Superusers and site managers are always allowed.
//
// When ScopeField is set, everyone but superusers is limited to the
// records whose scope field holds their site.
type PermissionAuthorization struct {
	ScopeField string
}

var permissionActions = map[string]string{
	slither.MethodGet:    "view",
	slither.MethodHead:   "view",
	slither.MethodPost:   "add",
	slither.MethodPut:    "change",
	slither.MethodPatch:  "change",
	slither.MethodDelete: "delete",
}

// Permission returns the name of the permission required for the verb
// on the collection.
func Permission(method, collection string) string {
	return fmt.Sprintf("%s_%s", permissionActions[method], Singular(collection))
}

func (a PermissionAuthorization) IsAuthorized(ctx context.Context, req AuthorizationRequest) error {
	if req.User == nil {
		return rest.Errorf(rest.Unauthorized, "Access denied")
	}
	if req.User.IsSuperuser || req.User.IsSiteManager {
		return nil
	}
	if _, ok := permissionActions[req.Method]; !ok {
		return rest.Errorf(rest.Unauthorized, "Access denied")
	}

	perm := Permission(req.Method, req.Collection)
	if req.User.HasPermission(perm) {
		return nil
	}

	grip.Info(message.Fields{
		"message":    "missing permission",
		"user":       req.User.String(),
		"permission": perm,
		"collection": req.Collection,
	})
	return rest.Errorf(rest.Unauthorized, "Permission '%s' required", perm)
}

func (a PermissionAuthorization) AccessLimits(ctx context.Context, req AuthorizationRequest) (bson.M, error) {
	if a.ScopeField == "" || (req.User != nil && req.User.IsSuperuser) {
		return bson.M{}, nil
	}
	if req.User == nil {
		return nil, rest.Errorf(rest.Unauthorized, "Access denied")
	}
	if req.User.Site == nil {
		return nil, rest.Errorf(rest.Unauthorized, "No site for user")
	}
	return bson.M{a.ScopeField: req.User.Site}, nil
}
