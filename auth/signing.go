package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/evergreen-ci/slither"
	"github.com/evergreen-ci/slither/rest"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

const signaturePrefix = "FS "

// RequestSigningAuthentication authenticates requests signed with a
// user's secret key. A request names its site in the site header, its
// date in the date header and carries "FS <access key>:<signature>" in
// the Authorization header. The signature is the base64 encoded
// HMAC-SHA1 of the string built by StringToSign.
type RequestSigningAuthentication struct {
	Store      CredentialStore
	Window     time.Duration
	SiteHeader string
	DateHeader string

	now func() time.Time
}

// NewRequestSigningAuthentication constructs a signing authenticator.
func NewRequestSigningAuthentication(store CredentialStore, conf slither.SigningAuthConfig) *RequestSigningAuthentication {
	a := &RequestSigningAuthentication{
		Store:      store,
		Window:     conf.Window,
		SiteHeader: conf.SiteHeader,
		DateHeader: conf.DateHeader,
		now:        time.Now,
	}
	if a.Window <= 0 {
		a.Window = slither.DefaultSignedRequestWindow
	}
	if a.SiteHeader == "" {
		a.SiteHeader = slither.DefaultSiteHeader
	}
	if a.DateHeader == "" {
		a.DateHeader = slither.DefaultDateHeader
	}
	return a
}

func unauthenticated(msg string) error {
	return rest.NewError(rest.Unauthenticated, msg)
}

func (a *RequestSigningAuthentication) Authenticate(ctx context.Context, r *http.Request) (*User, error) {
	if r.Method == slither.MethodOptions {
		return nil, nil
	}

	siteKey := r.Header.Get(a.SiteHeader)
	if siteKey == "" {
		return nil, unauthenticated("No site specified")
	}
	site, err := a.Store.FindSite(ctx, siteKey)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if site == nil {
		return nil, unauthenticated("Invalid site")
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, unauthenticated("No authorization header")
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return nil, unauthenticated("Malformed authorization header")
	}
	accessKey, signature, ok := strings.Cut(strings.TrimPrefix(header, signaturePrefix), ":")
	if !ok || accessKey == "" || signature == "" {
		return nil, unauthenticated("Malformed authorization header")
	}

	date := r.Header.Get(a.DateHeader)
	if date == "" {
		return nil, unauthenticated("Missing date in header")
	}
	sent, err := parseDate(date)
	if err != nil {
		return nil, unauthenticated("Malformed date in header")
	}
	now := a.now()
	if sent.Add(a.Window).Before(now) || sent.Add(-a.Window).After(now) {
		grip.Info(message.Fields{
			"message": "signed request outside of window",
			"site":    site.Name,
			"sent":    sent,
			"window":  a.Window.String(),
		})
		return nil, unauthenticated("Date is outside auth window period")
	}

	u, err := a.Store.FindUser(ctx, site.Id, accessKey)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if u == nil {
		return nil, unauthenticated("Access denied")
	}

	expected := Sign(u.Auth.SecretKey, StringToSign(r, a.DateHeader))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, unauthenticated("Invalid Signature")
	}

	return u, nil
}

// StringToSign builds the canonical representation of a request that
// clients sign.
func StringToSign(r *http.Request, dateHeader string) string {
	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}

	host := r.Host
	if idx := strings.Index(host, "."); idx >= 0 {
		host = host[:idx]
	}

	return strings.Join([]string{
		strings.ToLower(r.Method),
		contentType,
		strings.ToLower(r.Header.Get("Content-Md5")),
		strings.ToLower(r.Header.Get(dateHeader)),
		fmt.Sprintf("/%s%s", host, r.URL.Path),
	}, "\n")
}

// Sign returns the signature of the string under the secret key.
func Sign(secret, stringToSign string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	_, _ = mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SignRequest dates and signs a request on behalf of a user.
func SignRequest(r *http.Request, siteKey string, creds Credentials, at time.Time) {
	r.Header.Set(slither.DefaultSiteHeader, siteKey)
	r.Header.Set(slither.DefaultDateHeader, at.UTC().Format(http.TimeFormat))
	r.Header.Set("Authorization", fmt.Sprintf("%s%s:%s", signaturePrefix, creds.AccessKey,
		Sign(creds.SecretKey, StringToSign(r, slither.DefaultDateHeader))))
}

func parseDate(value string) (time.Time, error) {
	if t, err := http.ParseTime(value); err == nil {
		return t, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.RFC1123Z} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized date '%s'", value)
}
