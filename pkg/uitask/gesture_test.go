package uitask

import (
	"testing"
	"time"

	"github.com/atomphone/firmware/pkg/hal"
	"github.com/stretchr/testify/require"
)

func TestGestureShortPress(t *testing.T) {
	g := NewGestureClassifier(hal.Released)
	t0 := time.Now()

	gestures := g.Poll(hal.Pressed, t0)
	require.Equal(t, []Gesture{Edge{Pressed: true}}, gestures)

	gestures = g.Poll(hal.Released, t0.Add(200*time.Millisecond))
	require.Equal(t, []Gesture{Edge{Pressed: false}, Short{}}, gestures)
}

func TestGestureCancelOnLongHold(t *testing.T) {
	g := NewGestureClassifier(hal.Released)
	t0 := time.Now()

	g.Poll(hal.Pressed, t0)
	gestures := g.Poll(hal.Released, t0.Add(700*time.Millisecond))
	require.Equal(t, []Gesture{Edge{Pressed: false}}, gestures)
}

func TestGestureDoubleTap(t *testing.T) {
	g := NewGestureClassifier(hal.Released)
	t0 := time.Now()

	g.Poll(hal.Pressed, t0)
	gestures := g.Poll(hal.Released, t0.Add(100*time.Millisecond))
	require.Equal(t, []Gesture{Edge{Pressed: false}, Short{}}, gestures)

	t1 := t0.Add(200 * time.Millisecond)
	g.Poll(hal.Pressed, t1)
	gestures = g.Poll(hal.Released, t1.Add(100*time.Millisecond))
	require.Equal(t, []Gesture{Edge{Pressed: false}, Short{}, DoubleTap{}}, gestures)
}

func TestGestureNoDoubleTapBeyondWindow(t *testing.T) {
	g := NewGestureClassifier(hal.Released)
	t0 := time.Now()

	g.Poll(hal.Pressed, t0)
	g.Poll(hal.Released, t0.Add(100*time.Millisecond))

	t1 := t0.Add(600 * time.Millisecond)
	g.Poll(hal.Pressed, t1)
	gestures := g.Poll(hal.Released, t1.Add(100*time.Millisecond))
	require.Equal(t, []Gesture{Edge{Pressed: false}, Short{}}, gestures)
}

func TestGestureNoOpWhenStateUnchanged(t *testing.T) {
	g := NewGestureClassifier(hal.Released)
	require.Nil(t, g.Poll(hal.Released, time.Now()))
}
