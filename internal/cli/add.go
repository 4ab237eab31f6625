package cli

import (
	"github.com/spf13/cobra"

	perrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/lock"
)

// addCommand adds requirements to the Pipfile and relocks, keeping the
// versions already locked wherever possible.
func (c *CLI) addCommand() *cobra.Command {
	var (
		editables []string
		dev       bool
		refresh   bool
	)

	cmd := &cobra.Command{
		Use:   "add [requirement]...",
		Short: "Add packages to the Pipfile and update the lock",
		Long: `Add packages to the Pipfile and update the lock.

Packages that are already locked keep their versions unless the new
requirements rule them out.

Examples:
  pylock add requests "django>=4,<5"
  pylock add --dev pytest
  pylock add -e ./libs/mylib`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lines := append([]string{}, args...)
			for _, e := range editables {
				lines = append(lines, "-e "+e)
			}
			if len(lines) == 0 {
				return perrors.New(perrors.ErrCodeInvalidInput, "must supply either a requirement or --editable")
			}

			proj, err := c.loadProject()
			if err != nil {
				return err
			}
			for _, line := range lines {
				if _, err := proj.pipfile.AddLine(line, dev); err != nil {
					return err
				}
			}
			res, err := c.resolveProject(cmd.Context(), proj, lock.PinReuse, nil, refresh)
			if err != nil {
				return err
			}
			if err := proj.save(true); err != nil {
				return err
			}
			printLocked(proj, res)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&editables, "editable", "e", nil, "editable requirement to add (repeatable)")
	cmd.Flags().BoolVar(&dev, "dev", false, "add packages to [dev-packages]")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the index response cache")

	return cmd
}

// removeCommand drops packages from the Pipfile and relocks.
func (c *CLI) removeCommand() *cobra.Command {
	var (
		devOnly     bool
		defaultOnly bool
		refresh     bool
	)

	cmd := &cobra.Command{
		Use:               "remove <package>...",
		Short:             "Remove packages from the Pipfile and update the lock",
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: c.completePipfilePackages,
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := c.loadProject()
			if err != nil {
				return err
			}
			removed := proj.pipfile.Remove(args, !devOnly, !defaultOnly)
			if len(removed) == 0 {
				printWarning("No matching packages in %s", proj.pipfilePath())
			}
			res, err := c.resolveProject(cmd.Context(), proj, lock.PinReuse, nil, refresh)
			if err != nil {
				return err
			}
			if err := proj.save(len(removed) > 0); err != nil {
				return err
			}
			for _, name := range removed {
				printDetail("Removed %s", name)
			}
			printLocked(proj, res)
			return nil
		},
	}

	cmd.Flags().BoolVar(&devOnly, "dev", false, "only remove from [dev-packages]")
	cmd.Flags().BoolVar(&defaultOnly, "default", false, "only remove from [packages]")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the index response cache")
	cmd.MarkFlagsMutuallyExclusive("dev", "default")

	return cmd
}
