package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/evergreen-ci/slither"
	"github.com/evergreen-ci/slither/db"
	"github.com/golang-jwt/jwt"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	bearerPrefix   = "Bearer "
	tokenGroupName = "token"
)

// Claims are the claims of a bearer token. The subject names the user.
type Claims struct {
	jwt.StandardClaims
	Site        string   `json:"site,omitempty"`
	Superuser   bool     `json:"superuser,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// JWTAuthentication authenticates callers presenting an HMAC signed
// bearer token.
type JWTAuthentication struct {
	Secret []byte
	Issuer string
}

func NewJWTAuthentication(conf slither.JWTAuthConfig) (*JWTAuthentication, error) {
	if conf.Secret == "" {
		return nil, errors.New("jwt authentication requires a secret")
	}
	return &JWTAuthentication{Secret: []byte(conf.Secret), Issuer: conf.Issuer}, nil
}

func (a *JWTAuthentication) Authenticate(ctx context.Context, r *http.Request) (*User, error) {
	if r.Method == slither.MethodOptions {
		return nil, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, unauthenticated("No authorization header")
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return nil, unauthenticated("Malformed authorization header")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(strings.TrimPrefix(header, bearerPrefix), claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method '%s'", t.Header["alg"])
		}
		return a.Secret, nil
	})
	if err != nil {
		grip.Debug(message.WrapError(err, message.Fields{
			"message": "rejected bearer token",
		}))
		return nil, unauthenticated("Invalid token")
	}
	if a.Issuer != "" && !claims.VerifyIssuer(a.Issuer, true) {
		return nil, unauthenticated("Invalid token issuer")
	}
	if claims.Subject == "" {
		return nil, unauthenticated("Token has no subject")
	}

	u := &User{
		Id:          claims.Subject,
		Username:    claims.Subject,
		IsSuperuser: claims.Superuser,
	}
	if claims.Site != "" {
		u.Site = claims.Site
		if db.IsObjectIDHex(claims.Site) {
			if oid, err := primitive.ObjectIDFromHex(claims.Site); err == nil {
				u.Site = oid
			}
		}
	}
	if len(claims.Permissions) > 0 {
		u.Groups = []Group{{Name: tokenGroupName, Permissions: claims.Permissions}}
	}

	return u, nil
}

// IssueToken signs a token for the claims.
func (a *JWTAuthentication) IssueToken(claims Claims) (string, error) {
	if claims.Issuer == "" {
		claims.Issuer = a.Issuer
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
	return token, errors.Wrap(err, "signing token")
}
