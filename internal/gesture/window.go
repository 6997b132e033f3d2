package gesture

import "github.com/ayusman/mudra/internal/detector"

// Window is a fixed-capacity FIFO of the most recent normalized frames.
type Window struct {
	frames []detector.NormalizedFrame
	size   int
}

// NewWindow creates a window holding at most size frames.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{
		frames: make([]detector.NormalizedFrame, 0, size),
		size:   size,
	}
}

// Push appends a frame, discarding the oldest one when the window is full.
func (w *Window) Push(f detector.NormalizedFrame) {
	if len(w.frames) == w.size {
		copy(w.frames, w.frames[1:])
		w.frames = w.frames[:w.size-1]
	}
	w.frames = append(w.frames, f)
}

// Len returns the number of frames held.
func (w *Window) Len() int {
	return len(w.frames)
}

// Size returns the window capacity.
func (w *Window) Size() int {
	return w.size
}

// Full reports whether the window holds Size frames.
func (w *Window) Full() bool {
	return len(w.frames) == w.size
}

// Frames returns the held frames, oldest first. The slice is only valid until the next Push.
func (w *Window) Frames() []detector.NormalizedFrame {
	return w.frames
}

// Quality returns the fraction of held frames with both shoulders and at least one hand.
func (w *Window) Quality() float64 {
	if len(w.frames) == 0 {
		return 0
	}
	good := 0
	for i := range w.frames {
		if w.frames[i].GoodQuality() {
			good++
		}
	}
	return float64(good) / float64(len(w.frames))
}

// Reset discards every frame.
func (w *Window) Reset() {
	w.frames = w.frames[:0]
}
