package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pylock/pkg/buildinfo"
	promhooks "github.com/matzehuels/pylock/pkg/observability/prometheus"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "pylock"

	envCacheDir      = "PYLOCK_CACHE_DIR"
	envNoDepcache    = "PYLOCK_NO_DEPCACHE"
	envPythonVersion = "PYLOCK_PYTHON_VERSION"
	envCacheBackend  = "PYLOCK_CACHE_BACKEND"
	envRedisURL      = "PYLOCK_REDIS_URL"
	envMongoURI      = "PYLOCK_MONGO_URI"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	project     string
	metricsFile string
	registry    *prometheus.Registry
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "pylock resolves Pipfile dependencies into a lock file",
		Long: `pylock resolves the packages declared in a Pipfile against Python package
indexes and writes Pipfile.lock: exact versions, artifact hashes and the
environment markers under which each package is needed.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			if c.metricsFile != "" && c.registry == nil {
				c.registry = prometheus.NewRegistry()
				promhooks.Register(c.registry)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.registry == nil {
				return nil
			}
			return promhooks.WriteFile(c.metricsFile, c.registry)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.project, "project", "C", ".", "directory containing the Pipfile")
	root.PersistentFlags().StringVar(&c.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the command")

	root.AddCommand(c.initCommand())
	root.AddCommand(c.addCommand())
	root.AddCommand(c.removeCommand())
	root.AddCommand(c.upgradeCommand())
	root.AddCommand(c.lockCommand())
	root.AddCommand(c.checkCommand())
	root.AddCommand(c.whyCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.importCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())
	root.AddCommand(c.versionCommand())

	return root
}

// versionCommand prints the build information.
func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := io.WriteString(cmd.OutOrStdout(), appName+" "+buildinfo.String()+"\n")
			return err
		},
	}
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory: $PYLOCK_CACHE_DIR, or the XDG
// standard location (~/.cache/pylock/).
func cacheDir() (string, error) {
	if dir := os.Getenv(envCacheDir); dir != "" {
		return dir, nil
	}
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// envBool reports whether the environment variable is set to a true value.
func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
