package io

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/matzehuels/pylock/pkg/dag"
)

// NodeInfo is the per-package data carried alongside a graph.
type NodeInfo struct {
	Version string `json:"version,omitempty"`
	Markers string `json:"markers,omitempty"`
}

type graph struct {
	Nodes []node `json:"nodes"`
	Edges []edge `json:"edges"`
}

type node struct {
	ID string `json:"id"`
	NodeInfo
}

type edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// WriteJSON encodes g and the info of its nodes to w. Nodes missing from
// info are written with their id only.
func WriteJSON(g *dag.DAG, info map[string]NodeInfo, w io.Writer) error {
	out := graph{Nodes: []node{}, Edges: []edge{}}
	for _, id := range g.Nodes() {
		out.Nodes = append(out.Nodes, node{ID: id, NodeInfo: info[id]})
	}
	for _, e := range g.Edges() {
		out.Edges = append(out.Edges, edge{From: e.From, To: e.To})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes g to a JSON file at path.
func ExportJSON(g *dag.DAG, info map[string]NodeInfo, path string) error {
	var buf bytes.Buffer
	if err := WriteJSON(g, info, &buf); err != nil {
		return err
	}
	if err := WriteFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
