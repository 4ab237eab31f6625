package cli

import (
	"bytes"
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pylock/pkg/dag"
	perrors "github.com/matzehuels/pylock/pkg/errors"
	pio "github.com/matzehuels/pylock/pkg/io"
)

const (
	formatDOT  = "dot"
	formatSVG  = "svg"
	formatPNG  = "png"
	formatJSON = "json"
)

// graphOpts holds the command-line flags for the graph command.
type graphOpts struct {
	format  string // output format: dot, svg, png or json
	output  string // output file path (stdout if empty)
	from    string // graph JSON file to render instead of the project lock
	resolve bool   // resolve again instead of reading the dependency cache
}

// graphCommand renders the dependency graph of the lock.
func (c *CLI) graphCommand() *cobra.Command {
	opts := graphOpts{format: formatDOT}

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the locked dependency graph",
		Long: `Render the locked dependency graph as Graphviz DOT, SVG, PNG or JSON.

JSON output can be rendered again later with --from.

Examples:
  pylock graph | dot -Tpdf > deps.pdf
  pylock graph --format svg -o deps.svg
  pylock graph --format json -o deps.json
  pylock graph --from deps.json --format png -o deps.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lg, err := c.graphSource(cmd.Context(), opts)
			if err != nil {
				return err
			}
			data, err := renderGraph(cmd.Context(), lg, opts.format)
			if err != nil {
				return err
			}
			if opts.output == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := pio.WriteFileAtomic(opts.output, data); err != nil {
				return fmt.Errorf("write %s: %w", opts.output, err)
			}
			printSuccess("Wrote %s graph (%d packages)", opts.format, lg.graph.NodeCount())
			printFile(opts.output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: dot, svg, png or json")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().StringVar(&opts.from, "from", "", "render a graph JSON file instead of the project lock")
	cmd.Flags().BoolVar(&opts.resolve, "resolve", false, "resolve again instead of reading the dependency cache")
	_ = cmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions(
		[]string{formatDOT, formatSVG, formatPNG, formatJSON}, cobra.ShellCompDirectiveNoFileComp))

	return cmd
}

// graphSource loads the graph from --from or from the project lock.
func (c *CLI) graphSource(ctx context.Context, opts graphOpts) (*lockGraph, error) {
	if opts.from != "" {
		g, info, err := pio.ImportJSON(opts.from)
		if err != nil {
			return nil, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "read graph")
		}
		lg := &lockGraph{graph: g, info: info, tops: map[string]bool{}}
		for _, id := range g.Children(dag.Root) {
			lg.tops[id] = true
		}
		return lg, nil
	}
	proj, err := c.loadProject()
	if err != nil {
		return nil, err
	}
	return c.loadLockGraph(ctx, proj, opts.resolve)
}

// renderGraph encodes lg in format. Nodes are labeled with their locked
// version and top-level requirements are highlighted.
func renderGraph(ctx context.Context, lg *lockGraph, format string) ([]byte, error) {
	if format == formatJSON {
		var buf bytes.Buffer
		if err := pio.WriteJSON(lg.graph, lg.info, &buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	labels := make(map[string]string, len(lg.info))
	for id, info := range lg.info {
		if info.Version != "" {
			labels[id] = id + "\n" + info.Version
		}
	}
	dot := dag.ToDOT(lg.graph, dag.DOTOptions{Labels: labels, Highlight: lg.tops})

	switch format {
	case formatDOT:
		return []byte(dot), nil
	case formatSVG:
		return dag.RenderSVG(ctx, dot)
	case formatPNG:
		return dag.RenderPNG(ctx, dot)
	}
	return nil, perrors.New(perrors.ErrCodeInvalidInput, "unknown graph format %q (want dot, svg, png or json)", format)
}
