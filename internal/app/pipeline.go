package app

import (
	"context"
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/transport"
)

// runPipeline is the frame loop. It ticks at the configured rate while someone is in
// view, and drops to IdleFPS after IdleTimeout without a usable frame. While idle the
// tracker is not run; frame differencing wakes the pipeline up again.
func (a *App) runPipeline(ctx context.Context, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	activeInterval := time.Second / time.Duration(a.config.FPS)
	ticker := time.NewTicker(activeInterval)
	defer ticker.Stop()

	lastSeen := time.Now()
	idle := false
	setIdle := func(v bool) {
		idle = v
		a.mu.Lock()
		a.idle = v
		a.mu.Unlock()
	}

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			frame, err := a.camera.ReadFrame()
			if err != nil {
				log.Printf("Error reading frame: %v", err)
				continue
			}

			if idle {
				moved, _ := a.motion.Detect(frame)
				if !moved {
					frame.Close()
					continue
				}
				setIdle(false)
				lastSeen = now
				a.camera.SetFPS(a.config.FPS)
				ticker.Reset(activeInterval)
				log.Println("Motion detected, resuming tracking")
			}

			out, ok := a.processFrame(frame, now)
			frame.Close()
			if !ok {
				continue
			}

			if !out.Dropped {
				lastSeen = now
			} else if now.Sub(lastSeen) > IdleTimeout {
				setIdle(true)
				a.ResetSession(false)
				a.motion.Reset()
				a.camera.SetFPS(IdleFPS)
				ticker.Reset(time.Second / IdleFPS)
				log.Println("Nobody in view, switched to idle mode")
			}
		}
	}
}

// processFrame tracks one camera frame and runs it through the session. ok is false
// when the tracker failed.
func (a *App) processFrame(frame *gocv.Mat, now time.Time) (gesture.Outcome, bool) {
	landmarks, err := a.Detector().Detect(frame)
	if err != nil {
		log.Printf("Error tracking landmarks: %v", err)
		return gesture.Outcome{}, false
	}

	a.sessionMu.Lock()
	out := a.session.Process(landmarks, now)
	a.sessionMu.Unlock()

	a.mu.Lock()
	a.frames++
	if out.Dropped {
		a.dropped++
	}
	result := out.Result
	a.last = &result
	a.mu.Unlock()

	if out.Emit != nil {
		a.recognize(*out.Emit)
	}
	return out, true
}

// recognize forwards an emitted sign to the event sinks and the registered callbacks.
func (a *App) recognize(r gesture.Recognition) {
	log.Printf("Sign recognized: %s (score: %.3f)", r.Name, r.Score)

	a.mu.Lock()
	a.lastSign = &SignStatus{ConceptID: r.ConceptID, Name: r.Name, Score: r.Score, Time: r.Time}
	callbacks := append([]func(gesture.Recognition){}, a.callbacks...)
	library := a.config.LibraryName
	a.mu.Unlock()

	a.emitter.Emit(transport.NewEvent(r, library))
	for _, fn := range callbacks {
		fn(r)
	}
}
