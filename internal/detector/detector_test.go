package detector

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

const epsilon = 1e-9

func transform(f LandmarkFrame, k, tx, ty float64) LandmarkFrame {
	out := f
	apply := func(points []Landmark) {
		for i := range points {
			if !points[i].Valid {
				continue
			}
			points[i].X = k*points[i].X + tx
			points[i].Y = k*points[i].Y + ty
		}
	}
	apply(out.Pose[:])
	apply(out.LeftHand[:])
	apply(out.RightHand[:])
	apply(out.Face[:])
	return out
}

func TestLandmarkFrame_Normalize(t *testing.T) {
	t.Run("shoulder midpoint at origin and unit width", func(t *testing.T) {
		f := HelloFrame()
		n, err := f.Normalize()
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}

		l := n.Pose[LeftShoulder]
		r := n.Pose[RightShoulder]
		if math.Abs((l.X+r.X)/2) > epsilon || math.Abs((l.Y+r.Y)/2) > epsilon {
			t.Errorf("expected midpoint at origin, got (%f, %f)", (l.X+r.X)/2, (l.Y+r.Y)/2)
		}
		if w := math.Hypot(l.X-r.X, l.Y-r.Y); math.Abs(w-1) > epsilon {
			t.Errorf("expected shoulder width 1, got %f", w)
		}
		if math.Abs(n.ShoulderWidth-0.2) > epsilon {
			t.Errorf("expected raw shoulder width 0.2, got %f", n.ShoulderWidth)
		}
	})

	t.Run("invariant to scale and translation", func(t *testing.T) {
		f := HelloFrame()
		want, err := f.Normalize()
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}

		cases := []struct{ k, tx, ty float64 }{
			{2.5, 0.1, -0.2},
			{0.3, 5, 5},
			{1, -0.4, 0.9},
		}
		for _, c := range cases {
			moved := transform(f, c.k, c.tx, c.ty)
			got, err := moved.Normalize()
			if err != nil {
				t.Fatalf("Normalize(k=%v) failed: %v", c.k, err)
			}
			wp := want.Points()
			gp := got.Points()
			for i := range wp {
				if wp[i].Valid != gp[i].Valid {
					t.Fatalf("point %d validity changed", i)
				}
				if math.Abs(wp[i].X-gp[i].X) > 1e-9 || math.Abs(wp[i].Y-gp[i].Y) > 1e-9 || wp[i].Z != gp[i].Z {
					t.Errorf("k=%v point %d: expected %+v, got %+v", c.k, i, wp[i].Point3D, gp[i].Point3D)
				}
			}
		}
	})

	t.Run("z passes through", func(t *testing.T) {
		f := HelloFrame()
		n, _ := f.Normalize()
		if n.RightHand[3].Z != f.RightHand[3].Z {
			t.Errorf("expected z %f unchanged, got %f", f.RightHand[3].Z, n.RightHand[3].Z)
		}
	})

	t.Run("invalid points stay zero", func(t *testing.T) {
		f := HelloFrame()
		n, _ := f.Normalize()
		for i, p := range n.LeftHand {
			if p.Valid || p.X != 0 || p.Y != 0 || p.Z != 0 {
				t.Errorf("left hand point %d: expected zero invalid point, got %+v", i, p)
			}
		}
	})

	t.Run("missing shoulder rejected", func(t *testing.T) {
		f := HelloFrame()
		f.Pose[RightShoulder] = Landmark{}
		if _, err := f.Normalize(); !errors.Is(err, ErrShouldersMissing) {
			t.Errorf("expected ErrShouldersMissing, got %v", err)
		}
	})

	t.Run("nil frame rejected", func(t *testing.T) {
		var f *LandmarkFrame
		if _, err := f.Normalize(); !errors.Is(err, ErrShouldersMissing) {
			t.Errorf("expected ErrShouldersMissing, got %v", err)
		}
	})

	t.Run("degenerate width rejected", func(t *testing.T) {
		f := HelloFrame()
		f.Pose[RightShoulder] = valid(f.Pose[LeftShoulder].X-0.005, f.Pose[LeftShoulder].Y, 0.1)
		if _, err := f.Normalize(); !errors.Is(err, ErrDegenerateFrame) {
			t.Errorf("expected ErrDegenerateFrame, got %v", err)
		}
	})
}

func TestNewLandmark(t *testing.T) {
	tests := []struct {
		name       string
		x, y, z    float64
		visibility float64
		wantValid  bool
	}{
		{"visible point", 0.4, 0.5, -0.1, 0.9, true},
		{"zero vector", 0, 0, 0, 1, false},
		{"below visibility", 0.4, 0.5, -0.1, 0.3, false},
		{"at visibility threshold", 0.4, 0.5, -0.1, 0.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLandmark(tt.x, tt.y, tt.z, tt.visibility, 0.5)
			if l.Valid != tt.wantValid {
				t.Errorf("expected valid=%v, got %v", tt.wantValid, l.Valid)
			}
			if !l.Valid && (l.X != 0 || l.Y != 0 || l.Z != 0) {
				t.Errorf("expected invalid landmark to be zeroed, got %+v", l.Point3D)
			}
		})
	}
}

func TestGroups_Quality(t *testing.T) {
	hello := HelloFrame()
	if !hello.GoodQuality() {
		t.Error("expected hello frame to be good quality")
	}
	rest := RestFrame()
	if rest.GoodQuality() {
		t.Error("expected rest frame without hands to fail quality")
	}
	if !rest.ShouldersValid() {
		t.Error("expected rest frame shoulders to be valid")
	}
	if got := hello.ValidCount(); got != PosePoints+HandPoints+FacePoints {
		t.Errorf("expected %d valid points, got %d", PosePoints+HandPoints+FacePoints, got)
	}
}

func TestSignature_RoundTrip(t *testing.T) {
	sig := &Signature{
		Sign:     "HELLO",
		Language: "asl",
		FPS:      30,
		Frames:   []LandmarkFrame{HelloFrame(), RestFrame()},
	}

	data, err := json.Marshal(sig)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	got, err := ParseSignature(data)
	if err != nil {
		t.Fatalf("ParseSignature failed: %v", err)
	}

	if got.Sign != "HELLO" || got.Language != "asl" || got.FPS != 30 {
		t.Errorf("unexpected header: %+v", got)
	}
	if len(got.Frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(got.Frames))
	}
	if got.Frames[1].Timestamp != 33 {
		t.Errorf("expected second frame at 33ms, got %d", got.Frames[1].Timestamp)
	}
	if got.Frames[0].Groups != sig.Frames[0].Groups {
		t.Error("expected first frame groups to round-trip exactly")
	}
	if got.Frames[1].HasHand() {
		t.Error("expected rest frame to have no hands after round trip")
	}
}

func TestParseSignature(t *testing.T) {
	t.Run("empty groups are missing", func(t *testing.T) {
		data := []byte(`{"sign":"YES","language":"bsl","pose_data":[
			{"pose":[[0.6,0.4,0],[0.4,0.4,0],[0,0,0]],"left_hand":[],"right_hand":[[0.5,0.5,0]],"face":[]}
		]}`)
		sig, err := ParseSignature(data)
		if err != nil {
			t.Fatalf("ParseSignature failed: %v", err)
		}
		f := sig.Frames[0]
		if !f.ShouldersValid() {
			t.Error("expected shoulders valid")
		}
		if f.Pose[LeftElbow].Valid {
			t.Error("expected zero triple to be invalid")
		}
		if f.LeftHand[0].Valid || !f.RightHand[0].Valid {
			t.Error("unexpected hand validity")
		}
		if f.Timestamp != 0 {
			t.Errorf("expected zero timestamp without fps, got %d", f.Timestamp)
		}
	})

	t.Run("too many points", func(t *testing.T) {
		data := []byte(`{"pose_data":[{"face":[[1,1,1],[1,1,1],[1,1,1],[1,1,1],[1,1,1]]}]}`)
		if _, err := ParseSignature(data); err == nil {
			t.Error("expected error for oversized group")
		}
	})

	t.Run("short triple", func(t *testing.T) {
		data := []byte(`{"pose_data":[{"pose":[[1,1]]}]}`)
		if _, err := ParseSignature(data); err == nil {
			t.Error("expected error for short triple")
		}
	})
}

func TestMockDetector(t *testing.T) {
	m := NewMockDetector()

	f, err := m.Detect(nil)
	if err != nil || f.ValidCount() != 0 {
		t.Fatalf("expected empty frame, got %v, %v", f, err)
	}

	m.SetFrames(HelloFrame(), YesFrame())
	first, _ := m.Detect(nil)
	second, _ := m.Detect(nil)
	third, _ := m.Detect(nil)
	if first.Groups != HelloFrame().Groups {
		t.Error("expected hello frame first")
	}
	if second.Groups != YesFrame().Groups || third.Groups != YesFrame().Groups {
		t.Error("expected last frame to repeat")
	}

	m.SetError(errors.New("tracker down"))
	if _, err := m.Detect(nil); err == nil {
		t.Error("expected configured error")
	}
}

func TestJitter(t *testing.T) {
	base := HelloFrame()
	j := Jitter(base, 3, 0.01)
	if j.Groups == base.Groups {
		t.Error("expected jitter to move points")
	}
	if j.LeftHand[0].Valid {
		t.Error("expected invalid points to stay invalid")
	}
	if d := math.Abs(j.RightHand[5].X - base.RightHand[5].X); d > 0.01+epsilon {
		t.Errorf("expected displacement within 0.01, got %f", d)
	}
	if again := Jitter(base, 3, 0.01); again.Groups != j.Groups {
		t.Error("expected jitter to be deterministic")
	}
}
