// Package graph implements the module graph: the encounters map and typed
// edge list that tie a container's modules together into a DAG (spec §4.H
// ModuleGraph). It owns cycle-preventing edge insertion, soft-deleted edge
// bookkeeping, the fixed-width serialization format a Writer rewrites
// wholesale at every close, and the encounter-tree traversal a Reader walks
// to answer "what does this encounter contain" for humans.
package graph

import (
	"fmt"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/primitives"
)

// EdgeKind identifies how two modules in an encounter relate to each other
// (spec §4.H, glossary "BELONGS_TO / VARIANT_OF / ANNOTATES").
type EdgeKind uint8

const (
	BelongsTo EdgeKind = 0x0 // BelongsTo links consecutive modules in an encounter's linear chain.
	VariantOf EdgeKind = 0x1 // VariantOf fans an alternate-version module in to its source.
	Annotates EdgeKind = 0x2 // Annotates fans an annotation module in to the module it comments on.
)

func (k EdgeKind) String() string {
	switch k {
	case BelongsTo:
		return "BELONGS_TO"
	case VariantOf:
		return "VARIANT_OF"
	case Annotates:
		return "ANNOTATES"
	default:
		return "UNKNOWN"
	}
}

// Edge is one directed, typed link between two modules (spec §4.H edges
// list). Deleted edges are kept rather than removed so a reload observes
// the same no-op state a live Graph already converged on.
type Edge struct {
	Source  primitives.UUID
	Target  primitives.UUID
	Kind    EdgeKind
	Deleted bool
}

// Encounter groups modules connected by a linear BELONGS_TO chain starting
// at Root. Last is the most recently added module, i.e. the chain's current
// tail, and is where the next addModuleToEncounter call extends from.
type Encounter struct {
	ID   primitives.UUID
	Root primitives.UUID
	Last primitives.UUID
}

// Graph is the in-memory module graph for one container session (spec
// §4.H). It is always rewritten in full at Writer close; there is no
// incremental append format.
type Graph struct {
	encounters map[primitives.UUID]*Encounter
	order      []primitives.UUID // encounter insertion order, for deterministic Encode
	edges      []Edge

	forward map[primitives.UUID][]int // module id -> indices into edges, as source
	reverse map[primitives.UUID][]int // module id -> indices into edges, as target
}

// New creates an empty module graph.
func New() *Graph {
	return &Graph{
		encounters: make(map[primitives.UUID]*Encounter),
		forward:    make(map[primitives.UUID][]int),
		reverse:    make(map[primitives.UUID][]int),
	}
}

// CreateEncounter allocates a new, empty encounter and returns its id (spec
// §4.H "createEncounter() → UUID").
func (g *Graph) CreateEncounter() primitives.UUID {
	id := primitives.NewUUID()
	g.encounters[id] = &Encounter{ID: id}
	g.order = append(g.order, id)
	return id
}

// AddModuleToEncounter attaches mid to the encounter eid (spec §4.H
// "addModuleToEncounter"). The first module added becomes both Root and
// Last; every subsequent module appends a BELONGS_TO edge from the current
// Last and becomes the new Last.
func (g *Graph) AddModuleToEncounter(eid, mid primitives.UUID) error {
	enc, ok := g.encounters[eid]
	if !ok {
		return fmt.Errorf("%w: %s", errs.ErrEncounterNotFound, eid)
	}

	if enc.Root.IsNil() {
		enc.Root = mid
		enc.Last = mid
		return nil
	}

	if err := g.addEdge(enc.Last, mid, BelongsTo); err != nil {
		return err
	}
	enc.Last = mid
	return nil
}

// AddModuleLink inserts a typed edge between two already-known modules
// (spec §4.H "addModuleLink"), rejecting it if doing so would create a
// cycle.
func (g *Graph) AddModuleLink(source, target primitives.UUID, kind EdgeKind) error {
	return g.addEdge(source, target, kind)
}

// addEdge validates acyclicity before appending (spec §4.H: "validate that
// inserting the edge does not create a cycle (DFS from target looking for
// source), then append").
func (g *Graph) addEdge(source, target primitives.UUID, kind EdgeKind) error {
	if g.reaches(target, source) {
		return fmt.Errorf("%w: %s -> %s (%s)", errs.ErrCycleRejected, source, target, kind)
	}

	idx := len(g.edges)
	g.edges = append(g.edges, Edge{Source: source, Target: target, Kind: kind})
	g.forward[source] = append(g.forward[source], idx)
	g.reverse[target] = append(g.reverse[target], idx)
	return nil
}

// reaches reports whether a live (non-deleted) path exists from start to
// goal, via depth-first search over outgoing edges.
func (g *Graph) reaches(start, goal primitives.UUID) bool {
	if start == goal {
		return true
	}
	visited := make(map[primitives.UUID]bool)
	stack := []primitives.UUID{start}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if cur == goal {
			return true
		}
		for _, idx := range g.forward[cur] {
			e := g.edges[idx]
			if e.Deleted {
				continue
			}
			if !visited[e.Target] {
				stack = append(stack, e.Target)
			}
		}
	}
	return false
}

// RemoveModuleLink erases the edge source->target of the given kind from
// the edge list and rebuilds the adjacency maps (spec §4.H
// "removeModuleLink: erase from edge list and adjacency maps"). Unlike
// RemoveModuleFromEncounter this is a hard delete, not a soft-deleted
// tombstone: removeModuleLink is the rollback path for a rejected write
// (the edge was never meant to be part of any persisted history), whereas
// RemoveModuleFromEncounter records a user-visible removal that a reload
// must still observe. No-op if the edge is not present.
func (g *Graph) RemoveModuleLink(source, target primitives.UUID, kind EdgeKind) {
	for i, e := range g.edges {
		if e.Source == source && e.Target == target && e.Kind == kind {
			g.edges = append(g.edges[:i], g.edges[i+1:]...)
			g.rebuildAdjacency()
			return
		}
	}
}

// rebuildAdjacency recomputes forward/reverse from g.edges after a hard
// removal shifts every later edge's index.
func (g *Graph) rebuildAdjacency() {
	g.forward = make(map[primitives.UUID][]int)
	g.reverse = make(map[primitives.UUID][]int)
	for i, e := range g.edges {
		g.forward[e.Source] = append(g.forward[e.Source], i)
		g.reverse[e.Target] = append(g.reverse[e.Target], i)
	}
}

// RemoveModuleFromEncounter marks every edge incident to mid as deleted
// (spec §4.H "removeModuleFromEncounter"). Edges are not scoped to an
// encounter, so this includes any link of mid's recorded under another
// encounter or made by AddModuleLink. If mid was the encounter's root,
// the encounter is cleared entirely; otherwise Last falls back to Root.
func (g *Graph) RemoveModuleFromEncounter(eid, mid primitives.UUID) error {
	enc, ok := g.encounters[eid]
	if !ok {
		return fmt.Errorf("%w: %s", errs.ErrEncounterNotFound, eid)
	}

	for i := range g.edges {
		e := &g.edges[i]
		if e.Source == mid || e.Target == mid {
			e.Deleted = true
		}
	}

	if enc.Root == mid {
		enc.Root = primitives.Nil
		enc.Last = primitives.Nil
	} else {
		enc.Last = enc.Root
	}
	return nil
}

// Encounter returns the current state of eid, if known.
func (g *Graph) Encounter(eid primitives.UUID) (Encounter, bool) {
	enc, ok := g.encounters[eid]
	if !ok {
		return Encounter{}, false
	}
	return *enc, true
}

// Edges returns every edge, including soft-deleted ones, in insertion order.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// EncounterTree is the human/Reader-facing traversal result for one
// encounter (spec §4.H "Encounter tree export"): the linear BELONGS_TO
// chain from root to last, with each module's fan-in annotations and
// variants attached.
type EncounterTree struct {
	Modules []ModuleNode
}

// ModuleNode is one module's position in an EncounterTree: its id plus the
// modules that annotate or variant it.
type ModuleNode struct {
	ModuleID    primitives.UUID
	AnnotatedBy []primitives.UUID
	Variants    []primitives.UUID
}

// ExportEncounterTree walks eid's root-to-last BELONGS_TO chain, collecting
// each visited module's ANNOTATES and VARIANT_OF fan-in (spec §4.H
// "Encounter tree export"). Traversal is cycle-guarded by a visited set
// even though insertion already rejects cycles, since this is the one path
// a corrupted or hand-edited file could still walk off the rails on.
func (g *Graph) ExportEncounterTree(eid primitives.UUID) (EncounterTree, error) {
	enc, ok := g.encounters[eid]
	if !ok {
		return EncounterTree{}, fmt.Errorf("%w: %s", errs.ErrEncounterNotFound, eid)
	}
	if enc.Root.IsNil() {
		return EncounterTree{}, nil
	}

	var tree EncounterTree
	visited := make(map[primitives.UUID]bool)
	cur := enc.Root
	for {
		if visited[cur] {
			break
		}
		visited[cur] = true
		tree.Modules = append(tree.Modules, ModuleNode{
			ModuleID:    cur,
			AnnotatedBy: g.fanIn(cur, Annotates),
			Variants:    g.fanIn(cur, VariantOf),
		})

		if cur == enc.Last {
			break
		}

		next, ok := g.belongsToNext(cur)
		if !ok {
			break
		}
		cur = next
	}

	return tree, nil
}

// fanIn returns every live source module with a kind edge pointing at mid.
func (g *Graph) fanIn(mid primitives.UUID, kind EdgeKind) []primitives.UUID {
	var out []primitives.UUID
	for _, idx := range g.reverse[mid] {
		e := g.edges[idx]
		if e.Deleted || e.Kind != kind {
			continue
		}
		out = append(out, e.Source)
	}
	return out
}

// belongsToNext returns the module a live BELONGS_TO edge leads to from
// mid, if any.
func (g *Graph) belongsToNext(mid primitives.UUID) (primitives.UUID, bool) {
	for _, idx := range g.forward[mid] {
		e := g.edges[idx]
		if !e.Deleted && e.Kind == BelongsTo {
			return e.Target, true
		}
	}
	return primitives.Nil, false
}

// CheckAcyclic re-runs cycle detection over every live edge (spec §4.H "on
// read... cycle detection runs again on load (catches corruption or manual
// edits)"). It is separate from the DFS addEdge already performs on insert
// so a Decode caller can fail a corrupted file without ever calling
// AddModuleLink.
func (g *Graph) CheckAcyclic() error {
	visiting := make(map[primitives.UUID]bool)
	visited := make(map[primitives.UUID]bool)

	var nodes []primitives.UUID
	seen := make(map[primitives.UUID]bool)
	for _, e := range g.edges {
		if !seen[e.Source] {
			seen[e.Source] = true
			nodes = append(nodes, e.Source)
		}
		if !seen[e.Target] {
			seen[e.Target] = true
			nodes = append(nodes, e.Target)
		}
	}

	var visit func(n primitives.UUID) error
	visit = func(n primitives.UUID) error {
		if visiting[n] {
			return fmt.Errorf("%w: at %s", errs.ErrCycleDetected, n)
		}
		if visited[n] {
			return nil
		}
		visiting[n] = true
		for _, idx := range g.forward[n] {
			e := g.edges[idx]
			if e.Deleted {
				continue
			}
			if err := visit(e.Target); err != nil {
				return err
			}
		}
		visiting[n] = false
		visited[n] = true
		return nil
	}

	for _, n := range nodes {
		if err := visit(n); err != nil {
			return err
		}
	}
	return nil
}
