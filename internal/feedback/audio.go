package feedback

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

const (
	sampleRate = beep.SampleRate(44100)

	// Pitch jitter range applied to every sound.
	minPitch = 0.95
	maxPitch = 1.15

	resampleQuality = 4
)

// Audio plays a short chime on success and a buzz on failure.
//
// Until Initialize succeeds every call is a no-op, so a headless server or a
// machine without a sound device runs unchanged.
type Audio struct {
	mu    sync.Mutex
	mixer *beep.Mixer
	sink  func(beep.Streamer)
	rnd   *rand.Rand
}

// NewAudio creates an uninitialized audio hook.
func NewAudio() *Audio {
	return &Audio{
		mixer: &beep.Mixer{},
		rnd:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Initialize opens the speaker. Calling it twice is harmless.
func (a *Audio) Initialize() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sink != nil {
		return nil
	}
	if err := speaker.Init(sampleRate, sampleRate.N(100*time.Millisecond)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	speaker.Play(a.mixer)
	a.sink = func(s beep.Streamer) {
		speaker.Lock()
		a.mixer.Add(s)
		speaker.Unlock()
	}
	return nil
}

// Close silences pending sounds.
func (a *Audio) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sink == nil {
		return
	}
	speaker.Lock()
	a.mixer.Clear()
	speaker.Unlock()
	a.sink = nil
}

// OnMergeSuccess implements Hooks.
func (a *Audio) OnMergeSuccess(float64, float64) {
	a.play(chime)
}

// OnMergeFailure implements Hooks.
func (a *Audio) OnMergeFailure() {
	a.play(buzz)
}

func (a *Audio) play(sound func() beep.Streamer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sink == nil {
		return
	}
	a.sink(beep.ResampleRatio(resampleQuality, a.pitchLocked(), sound()))
}

// pitchLocked returns a ratio in [minPitch, maxPitch).
func (a *Audio) pitchLocked() float64 {
	return minPitch + a.rnd.Float64()*(maxPitch-minPitch)
}

// chime is two rising sine notes.
func chime() beep.Streamer {
	return beep.Seq(
		quiet(beep.Take(sampleRate.N(90*time.Millisecond), tone(660))),
		quiet(beep.Take(sampleRate.N(140*time.Millisecond), tone(990))),
	)
}

// buzz is a short low tone with harmonics.
func buzz() beep.Streamer {
	return quiet(beep.Take(sampleRate.N(150*time.Millisecond), NewBuzzGenerator(sampleRate, 120)))
}

func tone(freq float64) beep.Streamer {
	s, err := generators.SineTone(sampleRate, freq)
	if err != nil {
		// Only fails for frequencies above Nyquist.
		return beep.Silence(-1)
	}
	return s
}

func quiet(s beep.Streamer) beep.Streamer {
	return &effects.Gain{Streamer: s, Gain: -0.8}
}

// BuzzGenerator generates a low-pitch buzz.
type BuzzGenerator struct {
	sr   beep.SampleRate
	freq float64
	pos  int
}

// NewBuzzGenerator creates a buzz generator at freq Hz.
func NewBuzzGenerator(sr beep.SampleRate, freq float64) *BuzzGenerator {
	return &BuzzGenerator{sr: sr, freq: freq}
}

// Stream implements beep.Streamer.
func (g *BuzzGenerator) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		t := float64(g.pos) / float64(g.sr)
		sample := 0.3*math.Sin(2*math.Pi*g.freq*t) +
			0.15*math.Sin(2*math.Pi*g.freq*2*t) +
			0.075*math.Sin(2*math.Pi*g.freq*3*t)

		// 20ms fade-in avoids a click.
		envelope := math.Min(t/0.02, 1.0)
		sample *= envelope

		samples[i][0] = sample
		samples[i][1] = sample
		g.pos++
	}
	return len(samples), true
}

// Err implements beep.Streamer.
func (g *BuzzGenerator) Err() error {
	return nil
}
