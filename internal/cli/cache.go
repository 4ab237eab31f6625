package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pylock/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the index, hash and dependency caches",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheTargets returns the cache locations below dir selected by the
// flags; none selected means all of them.
func cacheTargets(dir string, http, hashes, deps bool) []string {
	all := !http && !hashes && !deps
	var out []string
	if all || http {
		out = append(out, filepath.Join(dir, "http"))
	}
	if all || hashes {
		out = append(out, filepath.Join(dir, cache.HashCacheDir))
	}
	if all || deps {
		matches, _ := filepath.Glob(cache.DependencyCacheFile(dir, "*"))
		out = append(out, matches...)
	}
	return out
}

// clearPath removes the files at or below path and returns how many were
// removed. Emptied directories are removed too.
func clearPath(path string) (int, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		if err := os.Remove(path); err != nil {
			return 0, err
		}
		return 1, nil
	}

	count := 0
	err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors, continue walking
		}
		if !info.IsDir() {
			if err := os.Remove(p); err == nil {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return count, err
	}
	return count, os.RemoveAll(path)
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	var http, hashes, deps bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cached index responses, hashes and dependencies",
		Long: `Clear cached index responses, hashes and dependencies.

Without flags every local cache is cleared. Index responses kept in a
shared Redis or MongoDB backend expire on their own and are not touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}

			if _, err := os.Stat(dir); os.IsNotExist(err) {
				printInfo("Cache is empty")
				return nil
			}

			count := 0
			for _, target := range cacheTargets(dir, http, hashes, deps) {
				n, err := clearPath(target)
				count += n
				if err != nil {
					return fmt.Errorf("clear %s: %w", target, err)
				}
			}

			printSuccess("Cleared %d cached entries", count)
			printDetail("Directory: %s", dir)
			return nil
		},
	}

	cmd.Flags().BoolVar(&http, "http", false, "clear index responses")
	cmd.Flags().BoolVar(&hashes, "hashes", false, "clear artifact hashes")
	cmd.Flags().BoolVar(&deps, "dependencies", false, "clear dependency caches")

	return cmd
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
}
