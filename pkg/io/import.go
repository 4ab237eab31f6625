package io

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/pylock/pkg/dag"
)

// ErrDuplicateNode is returned when a graph file lists a node twice.
var ErrDuplicateNode = errors.New("duplicate node")

// ReadJSON decodes a graph written by [WriteJSON]. Edges may reference
// nodes missing from the node list; those are added without info.
func ReadJSON(r io.Reader) (*dag.DAG, map[string]NodeInfo, error) {
	var data graph
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, nil, fmt.Errorf("decode: %w", err)
	}

	g := dag.New()
	info := make(map[string]NodeInfo, len(data.Nodes))
	for _, n := range data.Nodes {
		if n.ID == dag.Root {
			continue
		}
		if g.Has(n.ID) {
			return nil, nil, fmt.Errorf("node %s: %w", n.ID, ErrDuplicateNode)
		}
		g.AddNode(n.ID)
		if n.NodeInfo != (NodeInfo{}) {
			info[n.ID] = n.NodeInfo
		}
	}
	for _, e := range data.Edges {
		g.AddEdge(e.From, e.To)
	}
	return g, info, nil
}

// ImportJSON reads a graph file at path.
func ImportJSON(path string) (*dag.DAG, map[string]NodeInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}
