package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/infinicraft/internal/app"
	"github.com/roach88/infinicraft/internal/config"
	"github.com/roach88/infinicraft/internal/element"
	"github.com/roach88/infinicraft/internal/events"
	"github.com/roach88/infinicraft/internal/generator"
	"github.com/roach88/infinicraft/internal/recipe"
	"github.com/roach88/infinicraft/internal/testutil"
)

const steamJSON = "{\"name\":\"Steam\",\"emoji\":\"\U0001F32B\uFE0F\"}"

func newTestServer(t *testing.T, client generator.Client) (*app.App, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	cfg.Engine.CompletedGrace = 0
	a, err := app.New(context.Background(), cfg,
		app.WithClient(client),
		app.WithInstanceIDs(testutil.NewSequentialIDs("")),
	)
	require.NoError(t, err)

	srv := httptest.NewServer(New(a, nil).Handler())
	t.Cleanup(func() {
		srv.Close()
		require.NoError(t, a.Close())
	})
	return a, srv
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func place(t *testing.T, srv *httptest.Server, elementID string, x, y float64) element.Instance {
	t.Helper()
	var inst element.Instance
	code := doJSON(t, http.MethodPost, srv.URL+"/api/canvas", map[string]any{"element_id": elementID, "x": x, "y": y}, &inst)
	require.Equal(t, http.StatusCreated, code)
	return inst
}

func TestHealthAndState(t *testing.T) {
	_, srv := newTestServer(t, testutil.Always(testutil.Text(steamJSON)))

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var state map[string]string
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/state", nil, &state))
	assert.Equal(t, "idle", state["state"])
}

func TestMergeFlow(t *testing.T) {
	_, srv := newTestServer(t, testutil.NewScriptedClient(testutil.Text(steamJSON)))

	fire := place(t, srv, "3", 100, 100)
	water := place(t, srv, "1", 300, 200)
	assert.Equal(t, "Fire", fire.Element.Name)

	var result element.Element
	code := doJSON(t, http.MethodPost, srv.URL+"/api/merge", mergeRequest{SourceID: fire.ID, TargetID: water.ID}, &result)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "5", result.ID)
	assert.Equal(t, "Steam", result.Name)

	var canvas []element.Instance
	doJSON(t, http.MethodGet, srv.URL+"/api/canvas", nil, &canvas)
	require.Len(t, canvas, 1)
	assert.Equal(t, 200.0, canvas[0].X)
	assert.Equal(t, 150.0, canvas[0].Y)

	var elements []element.Element
	doJSON(t, http.MethodGet, srv.URL+"/api/elements", nil, &elements)
	assert.Len(t, elements, 5)

	var recipes []recipe.Entry
	doJSON(t, http.MethodGet, srv.URL+"/api/recipes", nil, &recipes)
	require.Len(t, recipes, 1)
	assert.Equal(t, "Steam", recipes[0].Result.Name)
}

func TestMergeErrors(t *testing.T) {
	_, srv := newTestServer(t, testutil.Always(testutil.Text("no json")))
	fire := place(t, srv, "3", 0, 0)
	water := place(t, srv, "1", 0, 0)

	tests := []struct {
		name     string
		req      mergeRequest
		wantCode int
		wantErr  string
	}{
		{"invalid pair", mergeRequest{SourceID: fire.ID, TargetID: fire.ID}, http.StatusBadRequest, "INVALID_PAIR"},
		{"not found", mergeRequest{SourceID: fire.ID, TargetID: "ghost"}, http.StatusNotFound, "NOT_FOUND"},
		{"exhausted", mergeRequest{SourceID: fire.ID, TargetID: water.ID}, http.StatusUnprocessableEntity, "GENERATION_EXHAUSTED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp errorResponse
			assert.Equal(t, tt.wantCode, doJSON(t, http.MethodPost, srv.URL+"/api/merge", tt.req, &resp))
			assert.Equal(t, tt.wantErr, resp.Code)
		})
	}
}

func TestMergeBusy(t *testing.T) {
	blocking := testutil.NewBlockingClient(testutil.Always(testutil.Text(steamJSON)))
	_, srv := newTestServer(t, blocking)
	fire := place(t, srv, "3", 0, 0)
	water := place(t, srv, "1", 0, 0)
	earth := place(t, srv, "2", 0, 0)
	air := place(t, srv, "4", 0, 0)

	done := make(chan int, 1)
	go func() {
		done <- doJSON(t, http.MethodPost, srv.URL+"/api/merge", mergeRequest{SourceID: fire.ID, TargetID: water.ID}, nil)
	}()
	<-blocking.Entered()

	var resp errorResponse
	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, srv.URL+"/api/merge", mergeRequest{SourceID: earth.ID, TargetID: air.ID}, &resp))
	assert.Equal(t, "BUSY", resp.Code)
	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, srv.URL+"/api/elements/reset", nil, &resp))

	blocking.Release()
	assert.Equal(t, http.StatusOK, <-done)
}

func TestCanvasEndpoints(t *testing.T) {
	_, srv := newTestServer(t, testutil.Always(testutil.Text(steamJSON)))

	var random element.Instance
	code := doJSON(t, http.MethodPost, srv.URL+"/api/canvas", map[string]any{"element_id": "4"}, &random)
	require.Equal(t, http.StatusCreated, code)
	assert.GreaterOrEqual(t, random.X, 0.0)
	assert.Less(t, random.X, 750.0)
	assert.Less(t, random.Y, 550.0)

	var moved element.Instance
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodPatch, srv.URL+"/api/canvas/"+random.ID, moveRequest{X: 5, Y: 6}, &moved))
	assert.Equal(t, 5.0, moved.X)

	var resp errorResponse
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodPost, srv.URL+"/api/canvas", map[string]any{"element_id": "99"}, &resp))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodPatch, srv.URL+"/api/canvas/ghost", moveRequest{}, &resp))
	assert.Equal(t, http.StatusNoContent, doJSON(t, http.MethodDelete, srv.URL+"/api/canvas/"+random.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodDelete, srv.URL+"/api/canvas/"+random.ID, nil, &resp))

	place(t, srv, "1", 0, 0)
	assert.Equal(t, http.StatusNoContent, doJSON(t, http.MethodPost, srv.URL+"/api/canvas/clear", nil, nil))
	var canvas []element.Instance
	doJSON(t, http.MethodGet, srv.URL+"/api/canvas", nil, &canvas)
	assert.Empty(t, canvas)
}

func TestRemoveAndReset(t *testing.T) {
	a, srv := newTestServer(t, testutil.NewScriptedClient(testutil.Text(steamJSON)))
	fire := place(t, srv, "3", 0, 0)
	water := place(t, srv, "1", 0, 0)
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, srv.URL+"/api/merge", mergeRequest{SourceID: fire.ID, TargetID: water.ID}, nil))

	var remaining []element.Element
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, srv.URL+"/api/elements/remove", removeElementsRequest{IDs: []string{"5", "1"}}, &remaining))
	assert.Equal(t, element.Seeds(), remaining)
	assert.Equal(t, 0, a.Ledger.Len())

	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, srv.URL+"/api/elements/reset", nil, &remaining))
	assert.Equal(t, element.Seeds(), remaining)

	var resp errorResponse
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, srv.URL+"/api/elements/remove", "not an object", &resp))
}

func TestWebSocket_DropMergesAndStreamsEvents(t *testing.T) {
	a, srv := newTestServer(t, testutil.Always(testutil.Text(steamJSON)))
	fire := place(t, srv, "3", 0, 0)
	water := place(t, srv, "1", 40, 0)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return a.Broadcaster.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: msgMark, InstanceID: water.ID, Marked: true}))
	require.NoError(t, conn.WriteJSON(clientMessage{Type: msgDrop, SourceID: fire.ID, TargetID: water.ID}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var sawMarked bool
	for {
		var ev events.Event
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Topic == events.TopicCanvasUpdated {
			for _, inst := range ev.Instances {
				if inst.ID == water.ID && inst.Flags.IsMarkedForMerge {
					sawMarked = true
				}
			}
		}
		if ev.Topic == events.TopicElementMerged {
			require.NotNil(t, ev.Instance)
			assert.Equal(t, "Steam", ev.Instance.Element.Name)
			assert.Equal(t, 20.0, ev.Instance.X)
			break
		}
	}
	assert.True(t, sawMarked)
	a.Engine.Wait()
}
