package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/infinicraft/internal/config"
	"github.com/roach88/infinicraft/internal/element"
	"github.com/roach88/infinicraft/internal/engine"
	"github.com/roach88/infinicraft/internal/events"
	"github.com/roach88/infinicraft/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const steamJSON = "{\"name\":\"Steam\",\"emoji\":\"\U0001F32B\uFE0F\"}"

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Engine.CompletedGrace = 0
	return cfg
}

func newTestApp(t *testing.T, cfg config.Config, client *testutil.ScriptedClient) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, WithClient(client), WithInstanceIDs(testutil.NewSequentialIDs("")))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })
	return a
}

func TestNew_InMemory(t *testing.T) {
	a := newTestApp(t, testConfig(t), testutil.Always(testutil.Text(steamJSON)))

	assert.Equal(t, element.Seeds(), a.Catalog.GetAll())
	assert.Equal(t, 0, a.Ledger.Len())
	entries, err := a.RecipeEntries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMergeNames(t *testing.T) {
	client := testutil.NewScriptedClient(testutil.Text(steamJSON))
	a := newTestApp(t, testConfig(t), client)
	ctx := context.Background()

	got, err := a.MergeNames(ctx, "Fire", "Water")
	require.NoError(t, err)
	assert.Equal(t, "Steam", got.Name)
	assert.Equal(t, "5", got.ID)
	assert.Equal(t, 1, a.Ledger.Len())

	entries, err := a.RecipeEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Fire + Water", entries[0].Key.String())

	_, err = a.MergeNames(ctx, "Fire", "Plasma")
	assert.ErrorIs(t, err, ErrUnknownElement)
}

func TestNew_PublishesStateChanges(t *testing.T) {
	a := newTestApp(t, testConfig(t), testutil.Always(testutil.Text(steamJSON)))

	var mu sync.Mutex
	var states []string
	a.Bus.Subscribe(events.TopicStateChanged, func(e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, e.State)
	})

	_, err := a.MergeNames(context.Background(), "Fire", "Water")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"updating", "completed", "idle"}, states)
}

func TestNew_DropEventsMerge(t *testing.T) {
	a := newTestApp(t, testConfig(t), testutil.Always(testutil.Text(steamJSON)))

	fire, _ := a.Catalog.FindByName("Fire")
	water, _ := a.Catalog.FindByName("Water")
	src, _ := a.Ledger.Get(a.Ledger.Place(fire, 0, 0))
	tgt, _ := a.Ledger.Get(a.Ledger.Place(water, 100, 100))

	a.Bus.Publish(events.ElementDroppedOn(src, tgt))
	a.Engine.Wait()

	list := a.Ledger.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Steam", list[0].Element.Name)
}

func TestNew_PersistsAcrossRestarts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database = filepath.Join(t.TempDir(), "craft.db")
	ctx := context.Background()

	first, err := New(ctx, cfg, WithClient(testutil.NewScriptedClient(
		testutil.Text(steamJSON),
		testutil.Text(`{"name":"Mud","emoji":"🟫"}`),
	)))
	require.NoError(t, err)
	steam, err := first.MergeNames(ctx, "Fire", "Water")
	require.NoError(t, err)
	mud, err := first.MergeNames(ctx, "Earth", "Water")
	require.NoError(t, err)
	_, err = first.Engine.RemoveElements(ctx, []string{mud.ID})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	client := testutil.NewScriptedClient(testutil.Text(`{"name":"Lava","emoji":"🌋"}`))
	second := newTestApp(t, cfg, client)

	got, ok := second.Catalog.Get(steam.ID)
	require.True(t, ok)
	assert.Equal(t, steam, got)
	_, ok = second.Catalog.Get(mud.ID)
	assert.False(t, ok, "removed elements stay removed")

	// Mud's recipe survived; merging its pair restores it without a call.
	again, err := second.MergeNames(ctx, "Water", "Earth")
	require.NoError(t, err)
	assert.Equal(t, mud, again)
	assert.Equal(t, 0, client.Calls())

	lava, err := second.MergeNames(ctx, "Fire", "Earth")
	require.NoError(t, err)
	assert.Equal(t, "7", lava.ID, "ids resume above every id ever issued")
}

func TestNew_BusyMergeIsRejected(t *testing.T) {
	blocking := testutil.NewBlockingClient(testutil.Always(testutil.Text(steamJSON)))
	a, err := New(context.Background(), testConfig(t), WithClient(blocking))
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	done := make(chan error, 1)
	go func() {
		_, err := a.MergeNames(context.Background(), "Fire", "Water")
		done <- err
	}()
	<-blocking.Entered()

	_, err = a.MergeNames(context.Background(), "Earth", "Air")
	assert.True(t, engine.IsBusy(err))

	blocking.Release()
	require.NoError(t, <-done)
}
