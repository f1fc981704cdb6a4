package element

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/infinicraft/internal/opstate"
)

type recordingJournal struct {
	written []Element
	deleted []string
	err     error
}

func (j *recordingJournal) WriteElement(_ context.Context, e Element) error {
	j.written = append(j.written, e)
	return j.err
}

func (j *recordingJournal) DeleteElements(_ context.Context, ids []string) error {
	j.deleted = append(j.deleted, ids...)
	return j.err
}

func newTestCatalog(t *testing.T, opts ...CatalogOption) (*Catalog, *opstate.Gate) {
	t.Helper()
	gate := opstate.New(0)
	return NewCatalog(gate, opts...), gate
}

func addN(t *testing.T, c *Catalog, n int) []Element {
	t.Helper()
	var added []Element
	for i := 0; i < n; i++ {
		e := Element{ID: c.NextID(), Name: fmt.Sprintf("Thing%d", i), Emoji: "✨"}
		require.NoError(t, c.Add(context.Background(), e))
		added = append(added, e)
	}
	return added
}

func TestNewCatalog_HoldsSeeds(t *testing.T) {
	c, _ := newTestCatalog(t)

	want := []Element{
		{ID: "1", Name: "Water", Emoji: "💧"},
		{ID: "2", Name: "Earth", Emoji: "🪨"},
		{ID: "3", Name: "Fire", Emoji: "🔥"},
		{ID: "4", Name: "Air", Emoji: "🍃"},
	}
	if diff := cmp.Diff(want, c.GetAll()); diff != "" {
		t.Errorf("seed catalog mismatch (-want +got):\n%s", diff)
	}
}

func TestCatalog_AddPreservesInsertionOrder(t *testing.T) {
	c, _ := newTestCatalog(t)
	added := addN(t, c, 3)

	all := c.GetAll()
	require.Len(t, all, 7)
	assert.Equal(t, added, all[4:])
	assert.Equal(t, "5", added[0].ID)
	assert.Equal(t, "7", added[2].ID)
}

func TestCatalog_AddRejectsDuplicates(t *testing.T) {
	c, _ := newTestCatalog(t)

	err := c.Add(context.Background(), Element{ID: c.NextID(), Name: "Fire", Emoji: "🔥"})
	assert.ErrorIs(t, err, ErrDuplicate)

	err = c.Add(context.Background(), Element{ID: "2", Name: "Mud", Emoji: "🟫"})
	assert.ErrorIs(t, err, ErrDuplicate)

	assert.Equal(t, 4, c.Len())
}

func TestCatalog_NamesAreCaseSensitive(t *testing.T) {
	c, _ := newTestCatalog(t)
	require.NoError(t, c.Add(context.Background(), Element{ID: c.NextID(), Name: "fire", Emoji: "🔥"}))

	names := c.Names()
	assert.Contains(t, names, "Fire")
	assert.Contains(t, names, "fire")
}

func TestCatalog_GetAndFindByName(t *testing.T) {
	c, _ := newTestCatalog(t)

	e, ok := c.Get("3")
	require.True(t, ok)
	assert.Equal(t, "Fire", e.Name)

	e, ok = c.FindByName("Air")
	require.True(t, ok)
	assert.Equal(t, "4", e.ID)

	_, ok = c.Get("99")
	assert.False(t, ok)
}

func TestCatalog_RemoveManyKeepsSeeds(t *testing.T) {
	c, _ := newTestCatalog(t)
	added := addN(t, c, 3)

	out, err := c.RemoveMany(context.Background(), []string{"1", "3", added[1].ID})
	require.NoError(t, err)

	want := append(Seeds(), added[0], added[2])
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("RemoveMany result mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, out, c.GetAll())
}

func TestCatalog_RemoveAllLeavesExactlySeeds(t *testing.T) {
	for _, n := range []int{0, 1, 12} {
		t.Run(fmt.Sprintf("%d_extra", n), func(t *testing.T) {
			c, _ := newTestCatalog(t)
			addN(t, c, n)

			out, err := c.RemoveAll(context.Background())
			require.NoError(t, err)
			if diff := cmp.Diff(Seeds(), out); diff != "" {
				t.Errorf("RemoveAll mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCatalog_RemoveManySortsNumerically(t *testing.T) {
	c, _ := newTestCatalog(t)
	addN(t, c, 8) // ids 5..12

	out, err := c.RemoveMany(context.Background(), []string{"6"})
	require.NoError(t, err)

	var ids []string
	for _, e := range out {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "7", "8", "9", "10", "11", "12"}, ids)
}

func TestCatalog_RemoveManyRestoresMissingSeeds(t *testing.T) {
	c, _ := newTestCatalog(t)
	c.elements = c.elements[2:] // simulate a catalog that lost Water and Earth

	out, err := c.RemoveMany(context.Background(), nil)
	require.NoError(t, err)
	if diff := cmp.Diff(Seeds(), out); diff != "" {
		t.Errorf("seeds not restored (-want +got):\n%s", diff)
	}
}

func TestCatalog_RemoveManyRefusedWhileBusy(t *testing.T) {
	c, gate := newTestCatalog(t)
	added := addN(t, c, 2)

	require.True(t, gate.TryBegin())
	out, err := c.RemoveMany(context.Background(), []string{added[0].ID})
	assert.ErrorIs(t, err, opstate.ErrBusy)
	assert.Len(t, out, 6)
	assert.Equal(t, 6, c.Len())
	assert.Equal(t, opstate.Updating, gate.State())
	gate.Abort()
}

func TestCatalog_RemoveManyReleasesGate(t *testing.T) {
	c, gate := newTestCatalog(t)
	_, err := c.RemoveAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, opstate.Idle, gate.State())
}

func TestCatalog_RemoveManyCallbacksRunWhileHeld(t *testing.T) {
	c, gate := newTestCatalog(t)
	added := addN(t, c, 2)

	var seen []Element
	var state opstate.State
	out, err := c.RemoveMany(context.Background(), []string{added[0].ID}, func(remaining []Element) {
		state = gate.State()
		seen = remaining
	})
	require.NoError(t, err)
	assert.Equal(t, opstate.Updating, state)
	assert.Equal(t, out, seen)
	assert.Len(t, seen, 5)
	assert.Equal(t, opstate.Idle, gate.State())
}

func TestCatalog_IdsNeverReused(t *testing.T) {
	c, _ := newTestCatalog(t)
	first := addN(t, c, 2)
	_, err := c.RemoveAll(context.Background())
	require.NoError(t, err)

	next := c.NextID()
	assert.Equal(t, "7", next)
	assert.NotEqual(t, first[0].ID, next)
}

func TestCatalog_Journal(t *testing.T) {
	j := &recordingJournal{}
	c, _ := newTestCatalog(t, WithJournal(j))
	added := addN(t, c, 2)

	_, err := c.RemoveMany(context.Background(), []string{"1", added[0].ID})
	require.NoError(t, err)

	assert.Equal(t, added, j.written)
	assert.Equal(t, []string{added[0].ID}, j.deleted, "seeds never reach the journal")
}

func TestCatalog_JournalErrorDoesNotFailMutation(t *testing.T) {
	j := &recordingJournal{err: errors.New("disk full")}
	c, _ := newTestCatalog(t, WithJournal(j))

	require.NoError(t, c.Add(context.Background(), Element{ID: c.NextID(), Name: "Steam", Emoji: "🌫\uFE0F"}))
	assert.Equal(t, 5, c.Len())
}

func TestCatalog_WithElementsAndSequenceStart(t *testing.T) {
	persisted := []Element{
		{ID: "3", Name: "Fire", Emoji: "🔥"},
		{ID: "9", Name: "Steam", Emoji: "🌫\uFE0F"},
		{ID: "11", Name: "Mud", Emoji: "🟫"},
	}
	c, _ := newTestCatalog(t, WithElements(persisted), WithSequenceStart(20))

	assert.Equal(t, 6, c.Len())
	assert.Equal(t, "21", c.NextID())
}

func TestCatalog_WithElementsAdvancesSequence(t *testing.T) {
	c, _ := newTestCatalog(t, WithElements([]Element{{ID: "9", Name: "Steam", Emoji: "🌫\uFE0F"}}))
	assert.Equal(t, "10", c.NextID())
}

func TestCompareIDs(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2", "10", -1},
		{"10", "2", 1},
		{"7", "7", 0},
		{"5", "abc", -1},
		{"abc", "5", 1},
		{"abc", "abd", -1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, compareIDs(tt.a, tt.b))
		})
	}
}
