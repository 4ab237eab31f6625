package cli

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pylock/pkg/requirement"
)

var completionShells = []string{"bash", "zsh", "fish", "powershell"}

// completionCommand prints a shell completion script. Besides commands and
// flags the scripts complete package names: "remove" and "upgrade" offer
// the Pipfile's packages, "why" the locked ones.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion <shell>",
		Short: "Print a shell completion script",
		Long: `Print a completion script for bash, zsh, fish or powershell.

Package names are completed from the Pipfile and Pipfile.lock of the
project directory.

Examples:
  source <(pylock completion bash)
  pylock completion zsh > "${fpath[1]}/_pylock"
  pylock completion fish > ~/.config/fish/completions/pylock.fish
  pylock completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             completionShells,
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, out := cmd.Root(), cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(out, true)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			default:
				return root.GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}

// completePipfilePackages completes the packages named in the Pipfile that
// are not already on the command line.
func (c *CLI) completePipfilePackages(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	proj, err := c.loadProject()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	for _, dev := range []bool{false, true} {
		names = append(names, requirement.Keys(proj.pipfile.Section(dev))...)
	}
	return unusedNames(names, args), cobra.ShellCompDirectiveNoFileComp
}

// completeLockedPackages completes the single package argument of "why".
func (c *CLI) completeLockedPackages(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	proj, err := c.loadProject()
	if err != nil || proj.lockfile == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	for _, dev := range []bool{false, true} {
		names = append(names, requirement.Keys(proj.lockfile.Section(dev))...)
	}
	return unusedNames(names, nil), cobra.ShellCompDirectiveNoFileComp
}

// unusedNames sorts names, drops duplicates and drops the ones in used.
func unusedNames(names, used []string) []string {
	slices.Sort(names)
	names = slices.Compact(names)
	return slices.DeleteFunc(names, func(n string) bool { return slices.Contains(used, n) })
}
