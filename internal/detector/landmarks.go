// Package detector provides landmark types, normalization, and tracker adapters for sign recognition.
package detector

import (
	"errors"
	"math"
)

// Group sizes following the MediaPipe Holistic subset used for signing.
const (
	PosePoints  = 6
	HandPoints  = 21
	FacePoints  = 4
	TotalPoints = PosePoints + 2*HandPoints + FacePoints
)

// Pose point indices. The pose group keeps only the upper body.
const (
	LeftShoulder  = 0
	RightShoulder = 1
	LeftElbow     = 2
	RightElbow    = 3
	LeftWrist     = 4
	RightWrist    = 5
)

// MinShoulderWidth is the smallest shoulder width, in tracker units, that can be normalized.
const MinShoulderWidth = 0.01

var (
	// ErrShouldersMissing is returned when either shoulder point is invalid.
	ErrShouldersMissing = errors.New("shoulder landmarks missing")
	// ErrDegenerateFrame is returned when the shoulders are too close together to normalize.
	ErrDegenerateFrame = errors.New("degenerate pose: shoulder width below minimum")
)

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Landmark is a tracked point plus an explicit validity flag.
// Invalid landmarks always carry zero coordinates.
type Landmark struct {
	Point3D
	Valid bool `json:"valid"`
}

// NewLandmark builds a landmark from raw tracker output. A point coincident with the
// zero vector or with visibility below minVisibility is marked missing.
func NewLandmark(x, y, z, visibility, minVisibility float64) Landmark {
	if x == 0 && y == 0 && z == 0 {
		return Landmark{}
	}
	if visibility < minVisibility {
		return Landmark{}
	}
	return Landmark{Point3D: Point3D{X: x, Y: y, Z: z}, Valid: true}
}

// Groups holds the four landmark groups of one frame in their fixed embedding order.
type Groups struct {
	Pose      [PosePoints]Landmark `json:"pose"`
	LeftHand  [HandPoints]Landmark `json:"left_hand"`
	RightHand [HandPoints]Landmark `json:"right_hand"`
	Face      [FacePoints]Landmark `json:"face"`
}

// Points returns all landmarks in pose, left hand, right hand, face order.
func (g *Groups) Points() [TotalPoints]Landmark {
	var out [TotalPoints]Landmark
	n := copy(out[:], g.Pose[:])
	n += copy(out[n:], g.LeftHand[:])
	n += copy(out[n:], g.RightHand[:])
	copy(out[n:], g.Face[:])
	return out
}

// ShouldersValid reports whether both shoulder points are valid.
func (g *Groups) ShouldersValid() bool {
	return g.Pose[LeftShoulder].Valid && g.Pose[RightShoulder].Valid
}

// HasHand reports whether at least one hand has any valid point.
func (g *Groups) HasHand() bool {
	return anyValid(g.LeftHand[:]) || anyValid(g.RightHand[:])
}

// ValidCount returns the number of valid landmarks across all groups.
func (g *Groups) ValidCount() int {
	n := 0
	for _, p := range g.Points() {
		if p.Valid {
			n++
		}
	}
	return n
}

// GoodQuality reports whether the frame has both shoulders and at least one hand.
func (g *Groups) GoodQuality() bool {
	return g.ShouldersValid() && g.HasHand()
}

func anyValid(points []Landmark) bool {
	for _, p := range points {
		if p.Valid {
			return true
		}
	}
	return false
}

// LandmarkFrame is one sampled instant from the tracker.
type LandmarkFrame struct {
	Groups
	Timestamp int64 `json:"timestamp"` // milliseconds
}

// NormalizedFrame is a LandmarkFrame re-expressed in a body-centric frame: shoulder
// midpoint at the origin and shoulder width equal to one unit in the x,y plane.
type NormalizedFrame struct {
	Groups
	ShoulderWidth float64 `json:"shoulder_width"`
	Timestamp     int64   `json:"timestamp"`
}

// Normalize translates valid points so the shoulder midpoint is the origin and scales
// x and y by the shoulder width. Z is passed through unchanged because trackers report
// it as relative depth, not a calibrated coordinate.
func (f *LandmarkFrame) Normalize() (*NormalizedFrame, error) {
	if f == nil || !f.ShouldersValid() {
		return nil, ErrShouldersMissing
	}

	left := f.Pose[LeftShoulder]
	right := f.Pose[RightShoulder]

	cx := (left.X + right.X) / 2
	cy := (left.Y + right.Y) / 2
	width := math.Hypot(left.X-right.X, left.Y-right.Y)
	if width < MinShoulderWidth {
		return nil, ErrDegenerateFrame
	}

	n := &NormalizedFrame{
		Groups:        f.Groups,
		ShoulderWidth: width,
		Timestamp:     f.Timestamp,
	}
	scale := func(points []Landmark) {
		for i := range points {
			if !points[i].Valid {
				points[i] = Landmark{}
				continue
			}
			points[i].X = (points[i].X - cx) / width
			points[i].Y = (points[i].Y - cy) / width
		}
	}
	scale(n.Pose[:])
	scale(n.LeftHand[:])
	scale(n.RightHand[:])
	scale(n.Face[:])

	return n, nil
}
