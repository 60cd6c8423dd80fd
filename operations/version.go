package operations

import (
	"fmt"

	"github.com/evergreen-ci/slither"
	"github.com/urfave/cli"
)

func Version() cli.Command {
	return cli.Command{
		Name:  "version",
		Usage: "prints the revision of the current binary",
		Action: func(c *cli.Context) error {
			revision := slither.BuildRevision
			if revision == "" {
				revision = "development"
			}
			_, err := fmt.Fprintf(c.App.Writer, "%s %s\n", slither.ProgramName, revision)
			return err
		},
	}
}
