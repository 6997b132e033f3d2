// Package testdata provides recorded-signature and camera fixtures shared by tests.
package testdata

import (
	"encoding/json"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/detector"
)

// JitterAmount is the per-frame landmark noise of generated recordings.
const JitterAmount = 0.004

// Vocabulary maps each fixture sign to its base pose.
var Vocabulary = map[string]func() detector.LandmarkFrame{
	"HELLO":     detector.HelloFrame,
	"THANK_YOU": detector.ThankYouFrame,
	"YES":       detector.YesFrame,
}

// Frames returns n jittered frames of a vocabulary sign. Different seeds give
// different recordings of the same sign.
func Frames(sign string, seed, n int) ([]detector.LandmarkFrame, error) {
	base, ok := Vocabulary[sign]
	if !ok {
		return nil, fmt.Errorf("unknown fixture sign %q", sign)
	}
	frames := make([]detector.LandmarkFrame, n)
	for i := range frames {
		frames[i] = detector.Jitter(base(), seed*100+i, JitterAmount)
		frames[i].Timestamp = int64(i) * 33
	}
	return frames, nil
}

// SignatureJSON returns a recorded signature of a vocabulary sign in the on-disk format.
func SignatureJSON(sign, language string, seed, n int) ([]byte, error) {
	frames, err := Frames(sign, seed, n)
	if err != nil {
		return nil, err
	}
	sig := &detector.Signature{Sign: sign, Language: language, FPS: 30, Frames: frames}
	return json.Marshal(sig)
}

// LoadSequence returns n blank camera frames for a mock camera. The caller closes them.
func LoadSequence(n int) []*gocv.Mat {
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
		frames[i] = &m
	}
	return frames
}
