package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/evergreen-ci/slither"
	"github.com/evergreen-ci/slither/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SigningSuite struct {
	store *MockCredentialStore
	auth  *RequestSigningAuthentication
	site  Site
	user  User
	now   time.Time
	ctx   context.Context
	suite.Suite
}

func TestSigningSuite(t *testing.T) {
	suite.Run(t, new(SigningSuite))
}

func (s *SigningSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)
	s.site = Site{Id: primitive.NewObjectID(), Name: "acme", Key: "acme-key"}
	s.user = User{
		Id:       primitive.NewObjectID(),
		Username: "wile",
		Site:     s.site.Id,
		Auth:     Credentials{AccessKey: "AK1", SecretKey: "s3cr3t"},
	}
	s.store = &MockCredentialStore{Sites: []Site{s.site}, Users: []User{s.user}}
	s.auth = NewRequestSigningAuthentication(s.store, slither.SigningAuthConfig{})
	s.auth.now = func() time.Time { return s.now }
}

func (s *SigningSuite) signedRequest(method string) *http.Request {
	r := httptest.NewRequest(method, "http://api.example.com/widgets", nil)
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	SignRequest(r, s.site.Key, s.user.Auth, s.now)
	return r
}

func (s *SigningSuite) assertRejected(r *http.Request, msg string) {
	u, err := s.auth.Authenticate(s.ctx, r)
	s.Nil(u)
	s.Require().Error(err)
	apiErr := rest.AsAPIError(err)
	s.Equal(http.StatusUnauthorized, apiErr.StatusCode)
	s.Equal(msg, apiErr.Body)
}

func (s *SigningSuite) TestDefaults() {
	s.Equal(slither.DefaultSignedRequestWindow, s.auth.Window)
	s.Equal(slither.DefaultSiteHeader, s.auth.SiteHeader)
	s.Equal(slither.DefaultDateHeader, s.auth.DateHeader)
}

func (s *SigningSuite) TestValidSignature() {
	u, err := s.auth.Authenticate(s.ctx, s.signedRequest(http.MethodGet))
	s.Require().NoError(err)
	s.Require().NotNil(u)
	s.Equal("wile", u.Username)
}

func (s *SigningSuite) TestOptionsSkipsAuthentication() {
	r := httptest.NewRequest(http.MethodOptions, "/widgets", nil)
	u, err := s.auth.Authenticate(s.ctx, r)
	s.NoError(err)
	s.Nil(u)
}

func (s *SigningSuite) TestMissingSite() {
	r := s.signedRequest(http.MethodGet)
	r.Header.Del(slither.DefaultSiteHeader)
	s.assertRejected(r, "No site specified")
}

func (s *SigningSuite) TestUnknownSite() {
	r := s.signedRequest(http.MethodGet)
	r.Header.Set(slither.DefaultSiteHeader, "nope")
	s.assertRejected(r, "Invalid site")
}

func (s *SigningSuite) TestMissingAuthorization() {
	r := s.signedRequest(http.MethodGet)
	r.Header.Del("Authorization")
	s.assertRejected(r, "No authorization header")
}

func (s *SigningSuite) TestMalformedAuthorization() {
	r := s.signedRequest(http.MethodGet)
	r.Header.Set("Authorization", "Basic abc")
	s.assertRejected(r, "Malformed authorization header")

	r.Header.Set("Authorization", "FS nocolon")
	s.assertRejected(r, "Malformed authorization header")
}

func (s *SigningSuite) TestMissingDate() {
	r := s.signedRequest(http.MethodGet)
	r.Header.Del(slither.DefaultDateHeader)
	s.assertRejected(r, "Missing date in header")
}

func (s *SigningSuite) TestDateOutsideWindow() {
	s.auth.now = func() time.Time { return s.now.Add(16 * time.Minute) }
	s.assertRejected(s.signedRequest(http.MethodGet), "Date is outside auth window period")

	s.auth.now = func() time.Time { return s.now.Add(-16 * time.Minute) }
	s.assertRejected(s.signedRequest(http.MethodGet), "Date is outside auth window period")
}

func (s *SigningSuite) TestDateInsideWindow() {
	s.auth.now = func() time.Time { return s.now.Add(14 * time.Minute) }
	u, err := s.auth.Authenticate(s.ctx, s.signedRequest(http.MethodGet))
	s.NoError(err)
	s.NotNil(u)
}

func (s *SigningSuite) TestUnknownAccessKey() {
	r := httptest.NewRequest(http.MethodGet, "http://api.example.com/widgets", nil)
	SignRequest(r, s.site.Key, Credentials{AccessKey: "other", SecretKey: "s3cr3t"}, s.now)
	s.assertRejected(r, "Access denied")
}

func (s *SigningSuite) TestUserFromOtherSite() {
	other := Site{Id: primitive.NewObjectID(), Name: "other", Key: "other-key"}
	s.store.Sites = append(s.store.Sites, other)
	r := httptest.NewRequest(http.MethodGet, "http://api.example.com/widgets", nil)
	SignRequest(r, other.Key, s.user.Auth, s.now)
	s.assertRejected(r, "Access denied")
}

func (s *SigningSuite) TestWrongSecret() {
	r := httptest.NewRequest(http.MethodGet, "http://api.example.com/widgets", nil)
	SignRequest(r, s.site.Key, Credentials{AccessKey: "AK1", SecretKey: "wrong"}, s.now)
	s.assertRejected(r, "Invalid Signature")
}

func (s *SigningSuite) TestTamperedPath() {
	r := s.signedRequest(http.MethodGet)
	r.URL.Path = "/gadgets"
	s.assertRejected(r, "Invalid Signature")
}

func TestStringToSign(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "http://api.example.com/widgets/abc", nil)
	r.Header.Set("Content-Type", "Application/JSON; charset=utf-8")
	r.Header.Set("Content-MD5", "ABCDEF")
	r.Header.Set(slither.DefaultDateHeader, "Mon, 04 Mar 2024 12:00:00 GMT")

	assert.Equal(t, "post\napplication/json\nabcdef\nmon, 04 mar 2024 12:00:00 gmt\n/api/widgets/abc",
		StringToSign(r, slither.DefaultDateHeader))

	r.Host = "localhost:8080"
	assert.Equal(t, "post\napplication/json\nabcdef\nmon, 04 mar 2024 12:00:00 gmt\n/localhost:8080/widgets/abc",
		StringToSign(r, slither.DefaultDateHeader))
}

func TestSign(t *testing.T) {
	// HMAC-SHA1 of the empty string under the key "key"
	assert.Equal(t, "9Cuw7rAY671Fl65yE3EexgdghD8=", Sign("key", ""))
	assert.NotEqual(t, Sign("key", "a"), Sign("key", "b"))
}

func TestParseDate(t *testing.T) {
	expected := time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)
	for _, value := range []string{
		"Mon, 04 Mar 2024 12:00:00 GMT",
		"2024-03-04T12:00:00Z",
		"2024-03-04T14:00:00+02:00",
	} {
		parsed, err := parseDate(value)
		require.NoError(t, err, value)
		assert.True(t, expected.Equal(parsed), value)
	}

	_, err := parseDate("yesterday")
	assert.Error(t, err)
}
