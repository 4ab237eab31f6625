package cli

import (
	"github.com/spf13/cobra"

	perrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/lock"
	"github.com/matzehuels/pylock/pkg/lockfile"
)

const (
	strategyEager        = "eager"
	strategyOnlyIfNeeded = "only-if-needed"
)

// lockCommand resolves the Pipfile from scratch, or with --keep-outdated
// starting from the versions already locked.
func (c *CLI) lockCommand() *cobra.Command {
	var keepOutdated, refresh bool

	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Resolve the Pipfile and write Pipfile.lock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := c.loadProject()
			if err != nil {
				return err
			}
			mode := lock.Basic
			if keepOutdated {
				mode = lock.PinReuse
			}
			res, err := c.resolveProject(cmd.Context(), proj, mode, nil, refresh)
			if err != nil {
				return err
			}
			if err := proj.save(false); err != nil {
				return err
			}
			printLocked(proj, res)
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepOutdated, "keep-outdated", false, "keep locked versions that still satisfy the Pipfile")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the index response cache")

	return cmd
}

// upgradeCommand drops packages from the lock and relocks them.
func (c *CLI) upgradeCommand() *cobra.Command {
	var (
		strategy string
		refresh  bool
	)

	cmd := &cobra.Command{
		Use:   "upgrade <package>...",
		Short: "Upgrade locked packages",
		Long: `Upgrade locked packages.

With --strategy only-if-needed (the default) the named packages are
re-resolved and their dependencies keep their locked versions when they
still fit. With --strategy eager their dependencies are upgraded too.`,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: c.completePipfilePackages,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := lock.PinReuse
			switch strategy {
			case strategyOnlyIfNeeded:
			case strategyEager:
				mode = lock.EagerUpgrade
			default:
				return perrors.New(perrors.ErrCodeInvalidInput, "invalid strategy %q (want %s or %s)", strategy, strategyEager, strategyOnlyIfNeeded)
			}

			proj, err := c.loadProject()
			if err != nil {
				return err
			}
			for _, name := range args {
				if !proj.pipfile.Contains(name) {
					return perrors.New(perrors.ErrCodeInvalidInput, "%q not found in Pipfile", name)
				}
			}
			if proj.lockfile != nil {
				proj.lockfile.Remove(args...)
			}
			res, err := c.resolveProject(cmd.Context(), proj, mode, args, refresh)
			if err != nil {
				return err
			}
			if err := proj.save(false); err != nil {
				return err
			}
			printLocked(proj, res)
			return nil
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", strategyOnlyIfNeeded, "how dependencies are upgraded: eager or only-if-needed")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the index response cache")
	_ = cmd.RegisterFlagCompletionFunc("strategy", cobra.FixedCompletions(
		[]string{strategyEager, strategyOnlyIfNeeded}, cobra.ShellCompDirectiveNoFileComp))

	return cmd
}

// checkCommand reports whether Pipfile.lock matches the Pipfile.
func (c *CLI) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that Pipfile.lock is up to date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := c.loadProject()
			if err != nil {
				return err
			}
			lf, err := proj.requireLock()
			if err != nil {
				return err
			}
			if !lf.IsUpToDate(proj.pipfile) {
				return perrors.New(perrors.ErrCodeLockfile, "%s is out of date, run \"%s lock\"", lockfile.FileName, appName).
					WithDetails("Pipfile hash:  sha256:"+proj.pipfile.Hash(), "locked hash:   sha256:"+lf.Meta.Hash["sha256"])
			}
			printSuccess("%s is up to date", lockfile.FileName)
			printDetail("sha256:%s", proj.pipfile.Hash())
			return nil
		},
	}
}

// printLocked summarizes a finished lock.
func printLocked(proj *project, res *lock.Result) {
	printSuccess("Locked %d packages", res.Stats.Packages)
	printFile(proj.lockPath())
	printLockStats(len(proj.lockfile.Default), len(proj.lockfile.Develop), res.Stats)
}
