package detector

import (
	"math"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It replays a scripted sequence of frames, repeating the last one once exhausted.
type MockDetector struct {
	frames []LandmarkFrame
	next   int
	err    error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFrames sets the frames that will be returned by successive Detect calls.
func (m *MockDetector) SetFrames(frames ...LandmarkFrame) {
	m.frames = frames
	m.next = 0
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.err = err
}

// Detect returns the next scripted frame or the configured error.
func (m *MockDetector) Detect(frame *gocv.Mat) (*LandmarkFrame, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.frames) == 0 {
		return &LandmarkFrame{}, nil
	}
	i := m.next
	if i >= len(m.frames) {
		i = len(m.frames) - 1
	} else {
		m.next++
	}
	f := m.frames[i]
	return &f, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

func valid(x, y, z float64) Landmark {
	return Landmark{Point3D: Point3D{X: x, Y: y, Z: z}, Valid: true}
}

// upperBody places shoulders, a resting left arm, and the eyebrows in image coordinates.
func upperBody(rightElbow, rightWrist Point3D) Groups {
	var g Groups
	g.Pose[LeftShoulder] = valid(0.60, 0.45, -0.10)
	g.Pose[RightShoulder] = valid(0.40, 0.45, -0.12)
	g.Pose[LeftElbow] = valid(0.65, 0.62, -0.05)
	g.Pose[RightElbow] = valid(rightElbow.X, rightElbow.Y, rightElbow.Z)
	g.Pose[LeftWrist] = valid(0.66, 0.78, -0.02)
	g.Pose[RightWrist] = valid(rightWrist.X, rightWrist.Y, rightWrist.Z)

	g.Face[0] = valid(0.46, 0.25, -0.20)
	g.Face[1] = valid(0.48, 0.24, -0.21)
	g.Face[2] = valid(0.52, 0.24, -0.21)
	g.Face[3] = valid(0.54, 0.25, -0.20)
	return g
}

// handAt lays out 21 hand points: the wrist, then four joints per finger from thumb
// to pinky. angle points the hand (radians, image y up), spread fans the fingers, and
// curl in [0,1] bends them back towards the palm.
func handAt(wrist Point3D, angle, spread, curl float64) [HandPoints]Landmark {
	var h [HandPoints]Landmark
	h[0] = valid(wrist.X, wrist.Y, wrist.Z)
	for f := 0; f < 5; f++ {
		a := angle + (float64(f)-2)*spread
		for j := 0; j < 4; j++ {
			reach := 0.025 * float64(j+1) * (1 - curl*float64(j)/4)
			bend := curl * float64(j) * 0.6
			h[1+f*4+j] = valid(
				wrist.X+reach*math.Cos(a+bend),
				wrist.Y-reach*math.Sin(a+bend),
				wrist.Z-0.01*float64(j+1),
			)
		}
	}
	return h
}

// HelloFrame returns a frame of the HELLO salute: open right hand raised beside the forehead.
func HelloFrame() LandmarkFrame {
	wrist := Point3D{X: 0.37, Y: 0.28, Z: -0.15}
	g := upperBody(Point3D{X: 0.32, Y: 0.42, Z: -0.10}, wrist)
	g.RightHand = handAt(wrist, math.Pi/2, 0.22, 0)
	return LandmarkFrame{Groups: g}
}

// ThankYouFrame returns a frame of THANK YOU: flat right hand leaving the chin, fingers
// pointing forward and down.
func ThankYouFrame() LandmarkFrame {
	wrist := Point3D{X: 0.50, Y: 0.34, Z: -0.25}
	g := upperBody(Point3D{X: 0.38, Y: 0.58, Z: -0.15}, wrist)
	g.RightHand = handAt(wrist, -math.Pi/4, 0.05, 0.1)
	return LandmarkFrame{Groups: g}
}

// YesFrame returns a frame of YES: right fist in front of the chest with the left hand open below.
func YesFrame() LandmarkFrame {
	wrist := Point3D{X: 0.45, Y: 0.55, Z: -0.20}
	g := upperBody(Point3D{X: 0.36, Y: 0.66, Z: -0.12}, wrist)
	g.RightHand = handAt(wrist, math.Pi/2, 0.08, 1.0)
	g.LeftHand = handAt(Point3D{X: 0.66, Y: 0.78, Z: -0.02}, -math.Pi/2, 0.2, 0)
	return LandmarkFrame{Groups: g}
}

// RestFrame returns a frame with both arms down and no hands tracked.
func RestFrame() LandmarkFrame {
	return LandmarkFrame{Groups: upperBody(Point3D{X: 0.35, Y: 0.62, Z: -0.05}, Point3D{X: 0.34, Y: 0.78, Z: -0.02})}
}

// Jitter returns a copy of f with every valid point displaced by a small deterministic
// offset derived from seed. amount is the maximum displacement per axis.
func Jitter(f LandmarkFrame, seed int, amount float64) LandmarkFrame {
	out := f
	shift := func(points []Landmark, base int) {
		for i := range points {
			if !points[i].Valid {
				continue
			}
			k := float64(seed*131 + base + i)
			points[i].X += amount * math.Sin(k*1.7)
			points[i].Y += amount * math.Cos(k*2.3)
		}
	}
	shift(out.Pose[:], 0)
	shift(out.LeftHand[:], PosePoints)
	shift(out.RightHand[:], PosePoints+HandPoints)
	shift(out.Face[:], PosePoints+2*HandPoints)
	return out
}
