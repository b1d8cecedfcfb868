package schema

import "sync/atomic"

// Handle publishes an immutable catalog (and its join graph) to all request
// workers. Reads are lock-free; an admin rebuild swaps the whole snapshot and
// in-flight requests keep the value they already loaded.
type Handle struct {
	ptr atomic.Pointer[snapshot]
}

type snapshot struct {
	catalog *Catalog
	graph   *JoinGraph
}

// NewHandle publishes the initial catalog.
func NewHandle(cat *Catalog) *Handle {
	h := &Handle{}
	h.Swap(cat)
	return h
}

// Catalog returns the current snapshot's catalog.
func (h *Handle) Catalog() *Catalog {
	return h.ptr.Load().catalog
}

// Graph returns the join graph built for the current catalog.
func (h *Handle) Graph() *JoinGraph {
	return h.ptr.Load().graph
}

// Snapshot returns the catalog and its join graph from a single load, so a
// concurrent Swap cannot hand the caller a catalog and graph from different
// generations.
func (h *Handle) Snapshot() (*Catalog, *JoinGraph) {
	s := h.ptr.Load()
	return s.catalog, s.graph
}

// Swap atomically replaces the published catalog and its join graph.
func (h *Handle) Swap(cat *Catalog) {
	h.ptr.Store(&snapshot{catalog: cat, graph: NewJoinGraph(cat)})
}
