package events

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/infinicraft/internal/element"
)

var steam = element.Instance{ID: "i-1", Element: element.Element{ID: "5", Name: "Steam"}, X: 10, Y: 20}

func TestBus_TopicRouting(t *testing.T) {
	bus := NewBus()
	var merged, all []Topic
	bus.Subscribe(TopicElementMerged, func(e Event) { merged = append(merged, e.Topic) })
	bus.SubscribeAll(func(e Event) { all = append(all, e.Topic) })

	bus.Publish(ElementsRefreshed())
	bus.Publish(ElementMerged(steam))

	assert.Equal(t, []Topic{TopicElementMerged}, merged)
	assert.Equal(t, []Topic{TopicElementsRefreshed, TopicElementMerged}, all)
}

func TestBus_SubscriptionOrder(t *testing.T) {
	bus := NewBus()
	var order []int
	for i := 0; i < 3; i++ {
		bus.SubscribeAll(func(Event) { order = append(order, i) })
	}
	bus.Publish(ElementsRefreshed())
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	unsub := bus.Subscribe(TopicCanvasUpdated, func(Event) { calls++ })
	bus.Publish(CanvasUpdated(nil))
	unsub()
	unsub()
	bus.Publish(CanvasUpdated(nil))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.Len())
}

func TestBus_PanickingHandlerDoesNotStopDelivery(t *testing.T) {
	bus := NewBus()
	delivered := false
	bus.SubscribeAll(func(Event) { panic("boom") })
	bus.SubscribeAll(func(Event) { delivered = true })
	assert.NotPanics(t, func() { bus.Publish(ElementsRefreshed()) })
	assert.True(t, delivered)
}

func TestBus_HandlerMayPublish(t *testing.T) {
	bus := NewBus()
	var got []Topic
	bus.Subscribe(TopicElementDroppedOn, func(e Event) {
		bus.Publish(ElementMerged(*e.Source))
	})
	bus.Subscribe(TopicElementMerged, func(e Event) { got = append(got, e.Topic) })
	bus.Publish(ElementDroppedOn(steam, steam))
	assert.Equal(t, []Topic{TopicElementMerged}, got)
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	n := 0
	bus.SubscribeAll(func(Event) {
		mu.Lock()
		n++
		mu.Unlock()
	})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(ElementsRefreshed())
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, n)
}

func TestEvent_JSON(t *testing.T) {
	data, err := json.Marshal(MergeFailed(steam, steam, errors.New("exhausted")))
	require.NoError(t, err)
	s := string(data)
	assert.True(t, strings.HasPrefix(s, `{"type":"merge-failed"`), s)
	assert.Contains(t, s, `"error":"exhausted"`)
	assert.NotContains(t, s, `"feedback"`)

	data, err = json.Marshal(FeedbackEvent(Feedback{Kind: FeedbackSuccess, X: 1.5, Y: 2}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"feedback","feedback":{"kind":"success","x":1.5,"y":2}}`, string(data))
}

func TestWebSocketBroadcaster_StreamsEvents(t *testing.T) {
	b := NewWebSocketBroadcaster(nil)
	defer b.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.Upgrade(w, r)
		if err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				b.Unregister(conn)
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return b.Clients() == 1 }, time.Second, 10*time.Millisecond)

	bus := NewBus()
	bus.SubscribeAll(b.Handle)
	bus.Publish(ElementMerged(steam))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, TopicElementMerged, got.Topic)
	require.NotNil(t, got.Instance)
	assert.Equal(t, "Steam", got.Instance.Element.Name)
}

func TestWebSocketBroadcaster_CloseIsIdempotent(t *testing.T) {
	b := NewWebSocketBroadcaster(nil)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.NotPanics(t, func() { b.Handle(ElementsRefreshed()) })
}
