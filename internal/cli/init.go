package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	perrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/integrations/pypi"
	"github.com/matzehuels/pylock/pkg/pipfile"
)

// initOpts holds the command-line flags for the init command.
type initOpts struct {
	indexURLs    []string // indexes to declare as [[source]] tables, in order
	trustedHosts []string // hosts whose sources skip TLS verification
	python       string   // requires.python_version
}

// sources validates the flags and builds the Pipfile sources. Without
// --index-url the public PyPI source is used.
func (o *initOpts) sources() ([]pypi.Source, error) {
	for _, h := range o.trustedHosts {
		if err := perrors.ValidateHost(h); err != nil {
			return nil, err
		}
	}
	if len(o.indexURLs) == 0 {
		return []pypi.Source{pypi.DefaultSource}, nil
	}
	out := make([]pypi.Source, 0, len(o.indexURLs))
	for _, u := range o.indexURLs {
		if err := perrors.ValidateIndexURL(u); err != nil {
			return nil, err
		}
		out = append(out, pypi.SourceFromURL(u, o.trustedHosts...))
	}
	return out, nil
}

// initCommand creates a new Pipfile.
func (c *CLI) initCommand() *cobra.Command {
	var opts initOpts

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a Pipfile in the project directory",
		Long: `Create a Pipfile in the project directory.

Examples:
  pylock init
  pylock init --python 3.11
  pylock init --index-url https://pypi.example.com/simple --trusted-host pypi.example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := opts.sources()
			if err != nil {
				return err
			}
			path := filepath.Join(c.project, pipfile.FileName)
			if _, err := pipfile.Create(path, opts.python, sources...); err != nil {
				return err
			}
			printSuccess("Created %s", pipfile.FileName)
			printFile(path)
			for _, s := range sources {
				printDetail("Source %s: %s", s.Name, s.URL)
			}
			printNewline()
			printNextStep("Add a package", appName+" add requests")
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&opts.indexURLs, "index-url", "i", nil, "package index URL (repeatable)")
	cmd.Flags().StringArrayVar(&opts.trustedHosts, "trusted-host", nil, "host to reach without TLS verification (repeatable)")
	cmd.Flags().StringVar(&opts.python, "python", "", "required Python version, e.g. 3.11")

	return cmd
}
