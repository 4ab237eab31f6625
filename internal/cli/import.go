package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pylock/pkg/pipfile"
)

// importCommand copies the requirements and indexes of a requirements.txt
// file into the Pipfile.
func (c *CLI) importCommand() *cobra.Command {
	var dev bool

	cmd := &cobra.Command{
		Use:   "import [requirements.txt]",
		Short: "Import a requirements.txt file into the Pipfile",
		Long: `Import a requirements.txt file into the Pipfile.

Requirement lines, editables and nested -r files are added to the Pipfile;
--index-url and --extra-index-url lines become sources. Options without a
Pipfile equivalent are reported and skipped. Run "pylock lock" afterwards.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(c.project, "requirements.txt")
			if len(args) > 0 {
				path = args[0]
			}
			proj, err := c.loadProject()
			if err != nil {
				return err
			}
			im, err := pipfile.ImportRequirements(path)
			if err != nil {
				return err
			}
			sources := proj.pipfile.Import(im, dev)
			if err := proj.pipfile.Save(proj.pipfilePath()); err != nil {
				return err
			}

			printSuccess("Imported %d requirements from %s", len(im.Requirements), path)
			printFile(proj.pipfilePath())
			if sources > 0 {
				printDetail("Added %d sources", sources)
			}
			for _, line := range im.Skipped {
				printWarning("Skipped %s", line)
			}
			printNewline()
			printNextStep("Update the lock", appName+" lock")
			return nil
		},
	}

	cmd.Flags().BoolVar(&dev, "dev", false, "import into [dev-packages]")

	return cmd
}
