package detector

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrInvalidSignature is returned when recorded signature data cannot be decoded.
var ErrInvalidSignature = errors.New("invalid signature")

// Signature is a recorded example of one sign: the tracker output for every frame
// of a reference video, as written by the extraction tooling.
type Signature struct {
	Sign     string
	Language string
	Frames   []LandmarkFrame
	FPS      float64
}

type signatureJSON struct {
	Sign     string         `json:"sign"`
	Language string         `json:"language"`
	PoseData []frameJSON    `json:"pose_data"`
	Metadata *signatureMeta `json:"metadata,omitempty"`
}

type signatureMeta struct {
	FPS         float64 `json:"fps"`
	TotalFrames int     `json:"total_frames"`
}

// frameJSON stores each point as an [x, y, z] triple. Missing points are zero triples
// and missing groups may be empty arrays.
type frameJSON struct {
	Pose      [][]float64 `json:"pose"`
	LeftHand  [][]float64 `json:"left_hand"`
	RightHand [][]float64 `json:"right_hand"`
	Face      [][]float64 `json:"face"`
}

// ParseSignature decodes a recorded signature.
func ParseSignature(data []byte) (*Signature, error) {
	var raw signatureJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	sig := &Signature{
		Sign:     raw.Sign,
		Language: raw.Language,
		Frames:   make([]LandmarkFrame, len(raw.PoseData)),
	}
	if raw.Metadata != nil {
		sig.FPS = raw.Metadata.FPS
	}

	for i, f := range raw.PoseData {
		if err := decodeTriples(sig.Frames[i].Pose[:], f.Pose); err != nil {
			return nil, fmt.Errorf("%w: frame %d pose: %v", ErrInvalidSignature, i, err)
		}
		if err := decodeTriples(sig.Frames[i].LeftHand[:], f.LeftHand); err != nil {
			return nil, fmt.Errorf("%w: frame %d left_hand: %v", ErrInvalidSignature, i, err)
		}
		if err := decodeTriples(sig.Frames[i].RightHand[:], f.RightHand); err != nil {
			return nil, fmt.Errorf("%w: frame %d right_hand: %v", ErrInvalidSignature, i, err)
		}
		if err := decodeTriples(sig.Frames[i].Face[:], f.Face); err != nil {
			return nil, fmt.Errorf("%w: frame %d face: %v", ErrInvalidSignature, i, err)
		}
		if sig.FPS > 0 {
			sig.Frames[i].Timestamp = int64(float64(i) * 1000 / sig.FPS)
		}
	}

	return sig, nil
}

// LoadSignature reads and decodes a recorded signature file.
func LoadSignature(path string) (*Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSignature(data)
}

// MarshalJSON encodes the signature in the recorded pose_data layout.
func (s *Signature) MarshalJSON() ([]byte, error) {
	raw := signatureJSON{
		Sign:     s.Sign,
		Language: s.Language,
		PoseData: make([]frameJSON, len(s.Frames)),
		Metadata: &signatureMeta{FPS: s.FPS, TotalFrames: len(s.Frames)},
	}
	for i := range s.Frames {
		f := &s.Frames[i]
		raw.PoseData[i] = frameJSON{
			Pose:      encodeTriples(f.Pose[:]),
			LeftHand:  encodeTriples(f.LeftHand[:]),
			RightHand: encodeTriples(f.RightHand[:]),
			Face:      encodeTriples(f.Face[:]),
		}
	}
	return json.Marshal(raw)
}

func decodeTriples(dst []Landmark, src [][]float64) error {
	if len(src) > len(dst) {
		return fmt.Errorf("%d points, expected at most %d", len(src), len(dst))
	}
	for i, p := range src {
		if len(p) < 3 {
			return fmt.Errorf("point %d has %d coordinates", i, len(p))
		}
		// Recordings carry no visibility; the zero triple is the only missing marker.
		dst[i] = NewLandmark(p[0], p[1], p[2], 1, 0)
	}
	return nil
}

func encodeTriples(points []Landmark) [][]float64 {
	if !anyValid(points) {
		return [][]float64{}
	}
	out := make([][]float64, len(points))
	for i, p := range points {
		out[i] = []float64{p.X, p.Y, p.Z}
	}
	return out
}
