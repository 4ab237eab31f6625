// Package io provides file helpers shared by the project file formats and
// JSON import and export for resolved dependency graphs.
//
// # Atomic Writes
//
// [WriteFileAtomic] writes to a temporary file in the target directory and
// renames it into place, so readers never observe a partial Pipfile,
// lock file or cache entry:
//
//	err := io.WriteFileAtomic("Pipfile.lock", data)
//
// # Graph JSON
//
// A resolved graph can be exported for external tools and re-rendered
// later without resolving again:
//
//	{
//	  "nodes": [
//	    {"id": "requests", "version": "2.19.1"},
//	    {"id": "idna", "version": "2.7", "markers": "os_name == 'nt'"}
//	  ],
//	  "edges": [
//	    {"from": "", "to": "requests"},
//	    {"from": "requests", "to": "idna"}
//	  ]
//	}
//
// The empty id is the graph root. Use [WriteJSON] / [ExportJSON] to write
// and [ReadJSON] / [ImportJSON] to read. Nodes and edges are written in
// sorted order, so exports of the same graph are byte-identical.
package io
