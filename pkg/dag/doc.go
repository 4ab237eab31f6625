// Package dag provides the dependency graph produced by resolution.
//
// # Overview
//
// Nodes are resolver identifiers (canonical name plus extras). The
// sentinel [Root] stands for the user's requirements: every top-level
// requirement is a child of Root. Edges point from a dependant to each of
// its dependencies, and a node may have any number of parents.
//
// Resolution normally yields an acyclic graph, but real package indexes
// contain cycles, so every walker in this module tracks a visited set and
// [DAG.Validate] reports them instead of assuming their absence.
//
// # Basic Usage
//
//	g := dag.New()
//	g.AddEdge(dag.Root, "requests")
//	g.AddEdge("requests", "idna")
//	g.Children(dag.Root) // ["requests"]
//	g.Parents("idna")    // ["requests"]
//
// # Rendering
//
// [ToDOT] renders the graph in Graphviz DOT format; [RenderSVG] and
// [RenderPNG] lay it out in-process with go-graphviz.
package dag
