package app

import (
	"strings"
	"time"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
)

// ReplayResult is the outcome of running one recorded signature through a fresh session.
type ReplayResult struct {
	Expected   string                    `json:"expected"`
	Frames     int                       `json:"frames"`
	Dropped    int                       `json:"dropped"`
	Emitted    []string                  `json:"emitted"`
	Best       gesture.RecognitionResult `json:"best"`
	Recognized bool                      `json:"recognized"`
}

// Replay feeds the frames of sig through a new session over lib at the recording's
// frame rate. Best is the strongest result seen after the window filled, verified
// results first. Recognized is set when the expected sign was emitted.
func Replay(sig *detector.Signature, lib *gesture.Library, cfg gesture.Config) (ReplayResult, error) {
	session, err := gesture.NewSession(lib, cfg)
	if err != nil {
		return ReplayResult{}, err
	}

	fps := sig.FPS
	if fps <= 0 {
		fps = 30
	}
	step := time.Duration(float64(time.Second) / fps)

	res := ReplayResult{Expected: sig.Sign, Frames: len(sig.Frames)}
	now := time.Unix(0, 0)
	for i := range sig.Frames {
		out := session.Process(&sig.Frames[i], now)
		now = now.Add(step)

		if out.Dropped {
			res.Dropped++
			continue
		}
		if out.Result.Status != gesture.StatusInsufficientData && better(out.Result, res.Best) {
			res.Best = out.Result
		}
		if out.Emit != nil {
			res.Emitted = append(res.Emitted, out.Emit.Name)
			if strings.EqualFold(out.Emit.Name, sig.Sign) {
				res.Recognized = true
			}
		}
	}
	return res, nil
}

func better(a, b gesture.RecognitionResult) bool {
	av, bv := a.Status == gesture.StatusVerified, b.Status == gesture.StatusVerified
	if av != bv {
		return av
	}
	return a.Score > b.Score
}
