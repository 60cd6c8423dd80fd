package auth

import (
	"context"
	"fmt"
	"strings"
)

// Site is a tenant that users belong to.
type Site struct {
	Id   any    `bson:"_id" json:"id"`
	Name string `bson:"name" json:"name"`
	Key  string `bson:"key" json:"key"`
}

// Group grants its members a set of permissions.
type Group struct {
	Name        string   `bson:"name" json:"name"`
	Permissions []string `bson:"permissions" json:"permissions"`
}

// Credentials are the request signing keys of a user.
type Credentials struct {
	AccessKey string `bson:"access_key" json:"access_key"`
	SecretKey string `bson:"secret_key" json:"-"`
}

// User is an authenticated caller.
type User struct {
	Id            any         `bson:"_id" json:"id"`
	Username      string      `bson:"username" json:"username"`
	Site          any         `bson:"site" json:"site"`
	IsSuperuser   bool        `bson:"is_superuser" json:"is_superuser"`
	IsSiteManager bool        `bson:"is_site_manager" json:"is_site_manager"`
	Groups        []Group     `bson:"groups" json:"groups"`
	Auth          Credentials `bson:"auth" json:"-"`
}

// HasPermission reports whether any of the user's groups grants the
// permission.
func (u *User) HasPermission(permission string) bool {
	if u == nil {
		return false
	}
	for _, g := range u.Groups {
		for _, p := range g.Permissions {
			if p == permission {
				return true
			}
		}
	}
	return false
}

func (u *User) String() string {
	if u == nil {
		return "<anonymous>"
	}
	if u.Username != "" {
		return u.Username
	}
	return fmt.Sprint(u.Id)
}

type userKey int

const requestUserKey userKey = 0

// AttachUser returns a context carrying the authenticated user.
func AttachUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, requestUserKey, u)
}

// GetUser returns the user attached to the context, or nil.
func GetUser(ctx context.Context) *User {
	u, _ := ctx.Value(requestUserKey).(*User)
	return u
}

// Singular derives the model name used in permission names from a
// collection name.
func Singular(collection string) string {
	switch {
	case strings.HasSuffix(collection, "ies"):
		return strings.TrimSuffix(collection, "ies") + "y"
	case strings.HasSuffix(collection, "s"):
		return strings.TrimSuffix(collection, "s")
	default:
		return collection
	}
}
