package graph

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/iohelper"
	"github.com/RobLovegrove/umdf-go/primitives"
)

func newTestStream(t *testing.T) *iohelper.Stream {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "graph")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return iohelper.NewStream(f)
}

func TestAddModuleToEncounter_FirstModuleIsRootAndLast(t *testing.T) {
	g := New()
	eid := g.CreateEncounter()
	a := primitives.NewUUID()

	require.NoError(t, g.AddModuleToEncounter(eid, a))

	enc, ok := g.Encounter(eid)
	require.True(t, ok)
	require.Equal(t, a, enc.Root)
	require.Equal(t, a, enc.Last)
}

func TestAddModuleToEncounter_SubsequentModulesChainBelongsTo(t *testing.T) {
	g := New()
	eid := g.CreateEncounter()
	a, b, c := primitives.NewUUID(), primitives.NewUUID(), primitives.NewUUID()

	require.NoError(t, g.AddModuleToEncounter(eid, a))
	require.NoError(t, g.AddModuleToEncounter(eid, b))
	require.NoError(t, g.AddModuleToEncounter(eid, c))

	enc, ok := g.Encounter(eid)
	require.True(t, ok)
	require.Equal(t, a, enc.Root)
	require.Equal(t, c, enc.Last)

	require.Len(t, g.Edges(), 2)
	require.Equal(t, Edge{Source: a, Target: b, Kind: BelongsTo}, g.Edges()[0])
	require.Equal(t, Edge{Source: b, Target: c, Kind: BelongsTo}, g.Edges()[1])
}

func TestAddModuleToEncounter_UnknownEncounterErrors(t *testing.T) {
	g := New()
	err := g.AddModuleToEncounter(primitives.NewUUID(), primitives.NewUUID())
	require.ErrorIs(t, err, errs.ErrEncounterNotFound)
}

func TestAddModuleLink_RejectsCycle(t *testing.T) {
	g := New()
	a, b, c := primitives.NewUUID(), primitives.NewUUID(), primitives.NewUUID()

	require.NoError(t, g.AddModuleLink(a, b, VariantOf))
	require.NoError(t, g.AddModuleLink(b, c, VariantOf))

	err := g.AddModuleLink(c, a, VariantOf)
	require.ErrorIs(t, err, errs.ErrCycleRejected)
	require.Len(t, g.Edges(), 2, "the two valid edges must remain after a rejected insertion")
}

func TestAddModuleLink_RejectsSelfLoop(t *testing.T) {
	g := New()
	a := primitives.NewUUID()
	err := g.AddModuleLink(a, a, Annotates)
	require.ErrorIs(t, err, errs.ErrCycleRejected)
}

func TestRemoveModuleFromEncounter_RootClearsEncounter(t *testing.T) {
	g := New()
	eid := g.CreateEncounter()
	a, b := primitives.NewUUID(), primitives.NewUUID()
	require.NoError(t, g.AddModuleToEncounter(eid, a))
	require.NoError(t, g.AddModuleToEncounter(eid, b))

	require.NoError(t, g.RemoveModuleFromEncounter(eid, a))

	enc, ok := g.Encounter(eid)
	require.True(t, ok)
	require.True(t, enc.Root.IsNil())
	require.True(t, enc.Last.IsNil())
}

func TestRemoveModuleFromEncounter_NonRootFallsBackToRoot(t *testing.T) {
	g := New()
	eid := g.CreateEncounter()
	a, b := primitives.NewUUID(), primitives.NewUUID()
	require.NoError(t, g.AddModuleToEncounter(eid, a))
	require.NoError(t, g.AddModuleToEncounter(eid, b))

	require.NoError(t, g.RemoveModuleFromEncounter(eid, b))

	enc, ok := g.Encounter(eid)
	require.True(t, ok)
	require.Equal(t, a, enc.Root)
	require.Equal(t, a, enc.Last)
}

func TestRemoveModuleLink_HardDeletesEdgeAndRebuildsAdjacency(t *testing.T) {
	g := New()
	a, b := primitives.NewUUID(), primitives.NewUUID()
	require.NoError(t, g.AddModuleLink(a, b, VariantOf))
	require.Len(t, g.Edges(), 1)

	g.RemoveModuleLink(a, b, VariantOf)

	require.Empty(t, g.Edges())
	require.Empty(t, g.fanIn(b, VariantOf))
}

func TestRemoveModuleLink_UnblocksPreviouslyCyclicEdge(t *testing.T) {
	g := New()
	a, b, c := primitives.NewUUID(), primitives.NewUUID(), primitives.NewUUID()
	require.NoError(t, g.AddModuleLink(a, b, VariantOf))
	require.NoError(t, g.AddModuleLink(b, c, VariantOf))

	// c -> a would close a cycle while a->b survives.
	require.ErrorIs(t, g.AddModuleLink(c, a, VariantOf), errs.ErrCycleRejected)

	// Roll back a->b (as a failed write would), then c->a no longer cycles.
	g.RemoveModuleLink(a, b, VariantOf)
	require.NoError(t, g.AddModuleLink(c, a, VariantOf))
}

func TestRemoveModuleLink_NoOpWhenEdgeNotPresent(t *testing.T) {
	g := New()
	a, b := primitives.NewUUID(), primitives.NewUUID()

	require.NotPanics(t, func() { g.RemoveModuleLink(a, b, BelongsTo) })
	require.Empty(t, g.Edges())
}

func TestExportEncounterTree_CollectsFanIn(t *testing.T) {
	g := New()
	eid := g.CreateEncounter()
	a, b, c := primitives.NewUUID(), primitives.NewUUID(), primitives.NewUUID()
	require.NoError(t, g.AddModuleToEncounter(eid, a))
	require.NoError(t, g.AddModuleToEncounter(eid, b))

	note := primitives.NewUUID()
	variant := primitives.NewUUID()
	require.NoError(t, g.AddModuleLink(note, a, Annotates))
	require.NoError(t, g.AddModuleLink(variant, b, VariantOf))
	_ = c

	tree, err := g.ExportEncounterTree(eid)
	require.NoError(t, err)
	require.Len(t, tree.Modules, 2)
	require.Equal(t, a, tree.Modules[0].ModuleID)
	require.Equal(t, []primitives.UUID{note}, tree.Modules[0].AnnotatedBy)
	require.Equal(t, b, tree.Modules[1].ModuleID)
	require.Equal(t, []primitives.UUID{variant}, tree.Modules[1].Variants)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	g := New()
	eid := g.CreateEncounter()
	a, b := primitives.NewUUID(), primitives.NewUUID()
	require.NoError(t, g.AddModuleToEncounter(eid, a))
	require.NoError(t, g.AddModuleToEncounter(eid, b))

	note := primitives.NewUUID()
	require.NoError(t, g.AddModuleLink(note, a, Annotates))
	require.NoError(t, g.RemoveModuleFromEncounter(eid, b)) // leaves a soft-deleted edge on disk

	stream := newTestStream(t)
	offset, size, err := g.Encode(stream)
	require.NoError(t, err)
	require.Equal(t, int64(0), offset)

	loaded, err := Decode(stream, offset, size)
	require.NoError(t, err)

	require.Equal(t, g.Edges(), loaded.Edges())
	loadedEnc, ok := loaded.Encounter(eid)
	require.True(t, ok)
	require.Equal(t, a, loadedEnc.Root)
}

func TestDecode_RejectsBadHeader(t *testing.T) {
	stream := newTestStream(t)
	// tag 0xFF (not HeaderSize) with a zero-length value: malformed without
	// tricking ReadTLV into allocating on an attacker-controlled length.
	_, err := stream.Write([]byte{0xFF, 0, 0, 0, 0})
	require.NoError(t, err)

	_, err = Decode(stream, 0, 5)
	require.Error(t, err)
}

func TestCheckAcyclic_DetectsManuallyInsertedCycle(t *testing.T) {
	g := New()
	a, b, c := primitives.NewUUID(), primitives.NewUUID(), primitives.NewUUID()

	g.edges = append(g.edges,
		Edge{Source: a, Target: b, Kind: VariantOf},
		Edge{Source: b, Target: c, Kind: VariantOf},
		Edge{Source: c, Target: a, Kind: VariantOf},
	)
	g.forward[a] = []int{0}
	g.forward[b] = []int{1}
	g.forward[c] = []int{2}

	err := g.CheckAcyclic()
	require.ErrorIs(t, err, errs.ErrCycleDetected)
}
