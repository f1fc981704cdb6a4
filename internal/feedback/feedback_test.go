package feedback

import (
	"math/rand/v2"
	"testing"

	"github.com/gopxl/beep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/infinicraft/internal/events"
)

type counting struct {
	successes []float64
	failures  int
}

func (c *counting) OnMergeSuccess(x, y float64) { c.successes = append(c.successes, x, y) }
func (c *counting) OnMergeFailure()             { c.failures++ }

func TestMulti(t *testing.T) {
	a, b := &counting{}, &counting{}
	m := Multi{a, Nop{}, b}
	m.OnMergeSuccess(1, 2)
	m.OnMergeFailure()
	assert.Equal(t, []float64{1, 2}, a.successes)
	assert.Equal(t, 1, b.failures)
}

func TestVisual_PublishesFeedback(t *testing.T) {
	bus := events.NewBus()
	var got []events.Event
	bus.Subscribe(events.TopicFeedback, func(e events.Event) { got = append(got, e) })

	v := NewVisual(bus)
	v.OnMergeSuccess(200, 300)
	v.OnMergeFailure()

	require.Len(t, got, 2)
	assert.Equal(t, events.Feedback{Kind: events.FeedbackSuccess, X: 200, Y: 300}, *got[0].Feedback)
	assert.Equal(t, events.FeedbackFailure, got[1].Feedback.Kind)
}

func TestAudio_NoopUntilInitialized(t *testing.T) {
	a := NewAudio()
	assert.NotPanics(t, func() {
		a.OnMergeSuccess(0, 0)
		a.OnMergeFailure()
		a.Close()
	})
}

func TestAudio_PlaysThroughSink(t *testing.T) {
	a := NewAudio()
	var played []beep.Streamer
	a.sink = func(s beep.Streamer) { played = append(played, s) }

	a.OnMergeSuccess(0, 0)
	a.OnMergeFailure()
	require.Len(t, played, 2)

	// Sounds are finite.
	buf := make([][2]float64, 512)
	total := 0
	for {
		n, ok := played[1].Stream(buf)
		total += n
		if !ok {
			break
		}
		require.Less(t, total, int(sampleRate), "buzz should end well within a second")
	}
	assert.Positive(t, total)
}

func TestAudio_PitchJitterRange(t *testing.T) {
	a := NewAudio()
	a.rnd = rand.New(rand.NewPCG(7, 7))
	for i := 0; i < 1000; i++ {
		p := a.pitchLocked()
		assert.GreaterOrEqual(t, p, minPitch)
		assert.Less(t, p, maxPitch)
	}
}

func TestBuzzGenerator_FadesIn(t *testing.T) {
	g := NewBuzzGenerator(sampleRate, 120)
	buf := make([][2]float64, 10)
	n, ok := g.Stream(buf)
	assert.Equal(t, 10, n)
	assert.True(t, ok)
	assert.Equal(t, 0.0, buf[0][0])
	assert.Equal(t, buf[5][0], buf[5][1])
	assert.NoError(t, g.Err())
}
