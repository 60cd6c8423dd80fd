package operations

import (
	"strings"

	"github.com/evergreen-ci/slither"
	"github.com/urfave/cli"
)

const (
	confFlagName        = "conf"
	subjectFlagName     = "subject"
	siteFlagName        = "site"
	permissionsFlagName = "permission"
	superuserFlagName   = "superuser"
	ttlFlagName         = "ttl"
)

func joinFlagNames(ids ...string) string { return strings.Join(ids, ", ") }

func serviceConfigFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringFlag{
		Name:  joinFlagNames(confFlagName, "config", "c"),
		Usage: "path to the service configuration file",
		Value: slither.DefaultServiceConfigurationFileName,
	})
}
