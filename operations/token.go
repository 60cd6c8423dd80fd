package operations

import (
	"fmt"
	"time"

	"github.com/evergreen-ci/slither"
	"github.com/evergreen-ci/slither/auth"
	"github.com/golang-jwt/jwt"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// Token issues bearer tokens accepted by a service configured for jwt
// authentication.
func Token() cli.Command {
	return cli.Command{
		Name:  "token",
		Usage: "issue a bearer token signed with the configured secret",
		Flags: serviceConfigFlags(
			cli.StringFlag{
				Name:  subjectFlagName,
				Usage: "the user the token identifies",
			},
			cli.StringFlag{
				Name:  siteFlagName,
				Usage: "the site the user belongs to",
			},
			cli.StringSliceFlag{
				Name:  permissionsFlagName,
				Usage: "a permission to grant; may be specified more than once",
			},
			cli.BoolFlag{
				Name:  superuserFlagName,
				Usage: "grant unrestricted access",
			},
			cli.DurationFlag{
				Name:  ttlFlagName,
				Usage: "how long the token stays valid",
				Value: 24 * time.Hour,
			},
		),
		Before: mergeBeforeFuncs(requireFileExists(confFlagName), requireStringFlag(subjectFlagName)),
		Action: func(c *cli.Context) error {
			settings, err := slither.NewSettings(c.String(confFlagName))
			if err != nil {
				return errors.Wrap(err, "reading settings")
			}

			token, err := issueToken(settings.Auth.JWT, auth.Claims{
				StandardClaims: jwt.StandardClaims{Subject: c.String(subjectFlagName)},
				Site:           c.String(siteFlagName),
				Superuser:      c.Bool(superuserFlagName),
				Permissions:    c.StringSlice(permissionsFlagName),
			}, c.Duration(ttlFlagName), time.Now())
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(c.App.Writer, token)
			return err
		},
	}
}

func issueToken(conf slither.JWTAuthConfig, claims auth.Claims, ttl time.Duration, now time.Time) (string, error) {
	authn, err := auth.NewJWTAuthentication(conf)
	if err != nil {
		return "", errors.WithStack(err)
	}

	claims.IssuedAt = now.Unix()
	if ttl > 0 {
		claims.ExpiresAt = now.Add(ttl).Unix()
	}

	return authn.IssueToken(claims)
}
