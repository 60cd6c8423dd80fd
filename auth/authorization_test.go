package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/evergreen-ci/slither"
	"github.com/evergreen-ci/slither/rest"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPermissionAuthorization(t *testing.T) {
	ctx := context.Background()
	site := primitive.NewObjectID()

	Convey("With a permission authorizer scoped by site", t, func() {
		authz := PermissionAuthorization{ScopeField: "site"}
		viewer := &User{
			Username: "viewer",
			Site:     site,
			Groups:   []Group{{Name: "viewers", Permissions: []string{"view_company"}}},
		}

		Convey("anonymous callers are denied", func() {
			err := authz.IsAuthorized(ctx, AuthorizationRequest{Method: http.MethodGet, Collection: "companies"})
			So(err, ShouldNotBeNil)
			So(rest.AsAPIError(err).StatusCode, ShouldEqual, http.StatusForbidden)

			_, err = authz.AccessLimits(ctx, AuthorizationRequest{Method: http.MethodGet})
			So(err, ShouldNotBeNil)
		})

		Convey("a granted permission allows the action", func() {
			err := authz.IsAuthorized(ctx, AuthorizationRequest{Method: http.MethodGet, Collection: "companies", User: viewer})
			So(err, ShouldBeNil)
		})

		Convey("a missing permission names the permission", func() {
			err := authz.IsAuthorized(ctx, AuthorizationRequest{Method: http.MethodDelete, Collection: "companies", User: viewer})
			So(err, ShouldNotBeNil)
			So(rest.AsAPIError(err).Body, ShouldEqual, "Permission 'delete_company' required")
		})

		Convey("site managers are allowed everything but stay scoped", func() {
			manager := &User{Username: "boss", Site: site, IsSiteManager: true}
			err := authz.IsAuthorized(ctx, AuthorizationRequest{Method: http.MethodDelete, Collection: "companies", User: manager})
			So(err, ShouldBeNil)

			limits, err := authz.AccessLimits(ctx, AuthorizationRequest{Method: http.MethodGet, User: manager})
			So(err, ShouldBeNil)
			So(limits, ShouldResemble, bson.M{"site": site})
		})

		Convey("superusers are neither checked nor scoped", func() {
			root := &User{Username: "root", IsSuperuser: true}
			err := authz.IsAuthorized(ctx, AuthorizationRequest{Method: http.MethodPut, Collection: "companies", User: root})
			So(err, ShouldBeNil)

			limits, err := authz.AccessLimits(ctx, AuthorizationRequest{Method: http.MethodGet, User: root})
			So(err, ShouldBeNil)
			So(limits, ShouldBeEmpty)
		})

		Convey("users without a site cannot be scoped", func() {
			_, err := authz.AccessLimits(ctx, AuthorizationRequest{Method: http.MethodGet, User: &User{Username: "drifter"}})
			So(err, ShouldNotBeNil)
			So(rest.AsAPIError(err).Body, ShouldEqual, "No site for user")
		})
	})
}

func TestPermissionNames(t *testing.T) {
	assert.Equal(t, "view_widget", Permission(http.MethodGet, "widgets"))
	assert.Equal(t, "add_company", Permission(http.MethodPost, "companies"))
	assert.Equal(t, "change_company", Permission(http.MethodPatch, "companies"))
	assert.Equal(t, "change_company", Permission(http.MethodPut, "companies"))
	assert.Equal(t, "delete_sheep", Permission(http.MethodDelete, "sheep"))
}

func TestReadOnlyAuthorization(t *testing.T) {
	ctx := context.Background()
	authz := ReadOnlyAuthorization{}
	assert.NoError(t, authz.IsAuthorized(ctx, AuthorizationRequest{Method: http.MethodGet}))
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		err := authz.IsAuthorized(ctx, AuthorizationRequest{Method: method})
		require.Error(t, err)
		assert.Equal(t, http.StatusForbidden, rest.AsAPIError(err).StatusCode)
	}
}

func TestFactories(t *testing.T) {
	a, err := NewAuthenticator(slither.AuthConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, NoAuthentication{}, a)

	_, err = NewAuthenticator(slither.AuthConfig{Kind: slither.AuthKindSigning}, nil)
	assert.Error(t, err)

	a, err = NewAuthenticator(slither.AuthConfig{Kind: slither.AuthKindSigning}, &MockCredentialStore{})
	require.NoError(t, err)
	assert.IsType(t, &RequestSigningAuthentication{}, a)

	a, err = NewAuthenticator(slither.AuthConfig{Kind: slither.AuthKindJWT, JWT: slither.JWTAuthConfig{Secret: "x"}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &JWTAuthentication{}, a)

	_, err = NewAuthenticator(slither.AuthConfig{Kind: "kerberos"}, nil)
	assert.Error(t, err)

	z, err := NewAuthorizer(slither.ResourceConfig{})
	require.NoError(t, err)
	assert.IsType(t, NoAuthorization{}, z)

	z, err = NewAuthorizer(slither.ResourceConfig{Authorization: slither.AuthorizationPermission, ScopeField: "site"})
	require.NoError(t, err)
	assert.Equal(t, PermissionAuthorization{ScopeField: "site"}, z)

	_, err = NewAuthorizer(slither.ResourceConfig{Authorization: "bogus"})
	assert.Error(t, err)
}

func TestUserContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetUser(ctx))
	u := &User{Username: "wile"}
	assert.Equal(t, u, GetUser(AttachUser(ctx, u)))
	assert.Equal(t, "<anonymous>", (*User)(nil).String())
	assert.Equal(t, "wile", u.String())
	assert.Equal(t, "company", Singular("companies"))
}
