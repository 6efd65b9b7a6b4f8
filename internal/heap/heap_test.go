package heap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisplang/wisp/internal/heap"
	"github.com/wisplang/wisp/internal/value"
)

// node is a minimal heap.Object that can hold one outgoing reference,
// enough to exercise Trace-driven reachability.
type node struct {
	next value.Value
}

func (n *node) Kind() heap.Kind      { return heap.KindList }
func (n *node) Trace(t *heap.Tracer) { t.Mark(n.next) }
func (n *node) Size() int            { return 32 }

type rootSet struct{ roots []value.Value }

func (r rootSet) Trace(t *heap.Tracer) {
	for _, v := range r.roots {
		t.Mark(v)
	}
}

func newHeap(t *testing.T) *heap.Heap {
	t.Helper()
	h, err := heap.New(1<<20, 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestManageAndLookupRoundTrip(t *testing.T) {
	h := newHeap(t)
	v, err := h.Manage(heap.KindList, &node{})
	require.NoError(t, err)

	obj, ok := h.Lookup(v)
	require.True(t, ok)
	require.Equal(t, &node{}, obj)

	kind, ok := h.KindOf(v)
	require.True(t, ok)
	require.Equal(t, heap.KindList, kind)
}

func TestLookupOfNonObjectValueFails(t *testing.T) {
	h := newHeap(t)
	_, ok := h.Lookup(value.Number(1))
	require.False(t, ok)
}

func TestForceCollectSweepsUnreachableObjects(t *testing.T) {
	h := newHeap(t)

	reachable, err := h.Manage(heap.KindList, &node{})
	require.NoError(t, err)
	garbage, err := h.Manage(heap.KindList, &node{})
	require.NoError(t, err)

	h.ForceCollect([]heap.Root{rootSet{roots: []value.Value{reachable}}})

	_, ok := h.Lookup(reachable)
	require.True(t, ok, "rooted object must survive a collection")
	_, ok = h.Lookup(garbage)
	require.False(t, ok, "unrooted object must be swept")
}

func TestForceCollectTracesTransitively(t *testing.T) {
	h := newHeap(t)

	tail, err := h.Manage(heap.KindList, &node{})
	require.NoError(t, err)
	headObj := &node{next: tail}
	head, err := h.Manage(heap.KindList, headObj)
	require.NoError(t, err)

	h.ForceCollect([]heap.Root{rootSet{roots: []value.Value{head}}})

	_, ok := h.Lookup(head)
	require.True(t, ok)
	_, ok = h.Lookup(tail)
	require.True(t, ok, "object reachable only via another object's Trace must survive")
}

func TestCollectNoOpBelowThreshold(t *testing.T) {
	h, err := heap.New(1<<20, 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	garbage, err := h.Manage(heap.KindList, &node{})
	require.NoError(t, err)

	h.Collect(nil)

	_, ok := h.Lookup(garbage)
	require.True(t, ok, "below-threshold Collect must not sweep anything")
}

func TestSameObjectHeaderComparesKindsOfLiveObjects(t *testing.T) {
	h := newHeap(t)
	a, err := h.Manage(heap.KindList, &node{})
	require.NoError(t, err)
	b, err := h.Manage(heap.KindList, &node{})
	require.NoError(t, err)

	require.True(t, h.SameObjectHeader(a, b))
	require.False(t, h.SameObjectHeader(a, value.Number(1)))
}
