package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pylock/pkg/dag"
	perrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/lockfile"
	"github.com/matzehuels/pylock/pkg/trace"
)

// whyEntry explains how one graph node got into the lock.
type whyEntry struct {
	ID       string
	Version  string
	Markers  string
	Sections []string
	Paths    []trace.Path
}

// explain collects the entries of every node of the named package.
func explain(lg *lockGraph, lf *lockfile.Lockfile, name string) ([]whyEntry, error) {
	ids := lg.nodesOf(name)
	if len(ids) == 0 {
		return nil, perrors.New(perrors.ErrCodeNotFound, "%s is not locked", name)
	}
	traces := trace.Trace(lg.graph)
	out := make([]whyEntry, 0, len(ids))
	for _, id := range ids {
		e := whyEntry{ID: id, Version: lg.info[id].Version, Markers: lg.info[id].Markers, Paths: traces[id]}
		for _, s := range []struct {
			name string
			dev  bool
		}{{"default", false}, {"develop", true}} {
			if lockedIn(lf, id, s.dev) {
				e.Sections = append(e.Sections, s.name)
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func lockedIn(lf *lockfile.Lockfile, id string, dev bool) bool {
	name, _, _ := strings.Cut(id, "[")
	_, ok := lf.Section(dev)[name]
	return ok
}

// whyCommand shows the dependency paths that pull a package into the lock.
func (c *CLI) whyCommand() *cobra.Command {
	var interactive, resolve bool

	cmd := &cobra.Command{
		Use:   "why [package]",
		Short: "Show why a package is locked",
		Long: `Show why a package is locked: every path from a Pipfile requirement
to the package.

The graph is read from the dependency cache when it covers the whole lock;
otherwise the project is resolved again with the locked versions.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: c.completeLockedPackages,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !interactive && len(args) == 0 {
				return perrors.New(perrors.ErrCodeInvalidInput, "name a package or use --interactive")
			}
			proj, err := c.loadProject()
			if err != nil {
				return err
			}
			lg, err := c.loadLockGraph(cmd.Context(), proj, resolve)
			if err != nil {
				return err
			}

			name := ""
			if len(args) > 0 {
				name = args[0]
			} else {
				result, err := tea.NewProgram(newPackageListModel(lg)).Run()
				if err != nil {
					return fmt.Errorf("package picker: %w", err)
				}
				m := result.(packageListModel)
				if m.Selected == "" {
					return nil
				}
				name = m.Selected
			}

			entries, err := explain(lg, proj.lockfile, name)
			if err != nil {
				return err
			}
			printWhy(entries)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "pick the package from a list")
	cmd.Flags().BoolVar(&resolve, "resolve", false, "resolve again instead of reading the dependency cache")

	return cmd
}

func printWhy(entries []whyEntry) {
	for i, e := range entries {
		if i > 0 {
			printNewline()
		}
		printPackage(e.ID, e.Version, e.Markers)
		if len(e.Sections) > 0 {
			printKeyValue("Section", strings.Join(e.Sections, ", "))
		}
		for _, p := range e.Paths {
			line := p.String()
			if p.Parent() != dag.Root {
				line += " -> " + e.ID
			}
			printDetail("%s", line)
		}
	}
}
