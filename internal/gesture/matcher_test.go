package gesture

import (
	"errors"
	"testing"

	"github.com/ayusman/mudra/internal/detector"
)

// helloLibrary returns a library whose "hello" concept is exactly the pooled embedding
// of a window of hello frames, plus an "other" concept orthogonal to every live window.
func helloLibrary(t *testing.T) *Library {
	t.Helper()
	vec := EmbedWindow(repeat(t, detector.HelloFrame(), 30))
	lib, err := NewLibrary("asl", []ConceptEmbedding{
		{ConceptID: "hello", Name: "HELLO", Artifact: "hello.glb", Vector: vec},
		{ConceptID: "other", Name: "OTHER", Vector: basis(300)},
	})
	if err != nil {
		t.Fatalf("NewLibrary failed: %v", err)
	}
	return lib
}

func TestClassify(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name           string
		best, second   float64
		wantStatus     Status
		wantConfidence Confidence
	}{
		{"below threshold", 0.79, 0.1, StatusLowConfidence, ConfidenceLow},
		{"ambiguous", 0.85, 0.75, StatusCrossConceptNoise, ConfidenceMedium},
		{"ambiguous high", 0.95, 0.90, StatusCrossConceptNoise, ConfidenceHigh},
		{"clear medium", 0.85, 0.60, StatusVerified, ConfidenceMedium},
		{"clear high", 0.95, 0.20, StatusVerified, ConfidenceHigh},
		{"single concept", 0.82, 0, StatusVerified, ConfidenceMedium},
		{"negative scores", -0.5, -0.9, StatusLowConfidence, ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, confidence := Classify(tt.best, tt.second, cfg)
			if status != tt.wantStatus {
				t.Errorf("expected status %s, got %s", tt.wantStatus, status)
			}
			if confidence != tt.wantConfidence {
				t.Errorf("expected confidence %s, got %s", tt.wantConfidence, confidence)
			}
		})
	}
}

func TestClassify_Monotonic(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("raising best never returns to low confidence", func(t *testing.T) {
		for _, second := range []float64{0, 0.3, 0.6, 0.75} {
			left := false
			for i := 0; i <= 100; i++ {
				best := float64(i) / 100
				status, _ := Classify(best, second, cfg)
				if status != StatusLowConfidence {
					left = true
				} else if left {
					t.Fatalf("second=%v: best=%v fell back to low confidence", second, best)
				}
			}
		}
	})

	t.Run("narrow gap above threshold is noise", func(t *testing.T) {
		for _, best := range []float64{0.80, 0.85, 0.90, 0.99} {
			for _, gap := range []float64{0, 0.05, 0.10, 0.149} {
				status, _ := Classify(best, best-gap, cfg)
				if status != StatusCrossConceptNoise {
					t.Errorf("best=%v gap=%v: expected noise, got %s", best, gap, status)
				}
			}
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got %v", err)
	}

	cfg := DefaultConfig()
	cfg.WindowSize = 0
	cfg.ConfirmFrames = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero window and confirm frames")
	}

	cfg = DefaultConfig()
	cfg.HighConfidence = 0.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for high confidence below threshold")
	}
}

func TestNewLibrary(t *testing.T) {
	t.Run("orders by id", func(t *testing.T) {
		lib, err := NewLibrary("bsl", []ConceptEmbedding{
			{ConceptID: "b", Vector: basis(200)},
			{ConceptID: "a", Vector: basis(201)},
		})
		if err != nil {
			t.Fatalf("NewLibrary failed: %v", err)
		}
		ids := lib.IDs()
		if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
			t.Errorf("expected [a b], got %v", ids)
		}
		if lib.Name() != "bsl" {
			t.Errorf("expected name bsl, got %s", lib.Name())
		}
	})

	t.Run("wrong dimension", func(t *testing.T) {
		_, err := NewLibrary("asl", []ConceptEmbedding{{ConceptID: "a", Vector: Embedding{1, 2}}})
		if !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("expected ErrDimensionMismatch, got %v", err)
		}
	})

	t.Run("duplicate id", func(t *testing.T) {
		_, err := NewLibrary("asl", []ConceptEmbedding{
			{ConceptID: "a", Vector: basis(200)},
			{ConceptID: "a", Vector: basis(201)},
		})
		if !errors.Is(err, ErrDuplicateConcept) {
			t.Errorf("expected ErrDuplicateConcept, got %v", err)
		}
	})

	t.Run("immutable", func(t *testing.T) {
		vec := basis(200)
		lib, _ := NewLibrary("asl", []ConceptEmbedding{{ConceptID: "a", Vector: vec}})
		vec[200] = 5

		got, ok := lib.Get("a")
		if !ok {
			t.Fatal("expected concept a")
		}
		if got.Vector[200] != 1 {
			t.Error("library shares the caller's vector")
		}
		got.Vector[200] = 7
		again, _ := lib.Get("a")
		if again.Vector[200] != 1 {
			t.Error("library exposes its internal vector")
		}
	})
}

func TestMatcher_Match(t *testing.T) {
	cfg := DefaultConfig()
	lib := helloLibrary(t)
	m := NewMatcher(lib, cfg)

	t.Run("insufficient until full", func(t *testing.T) {
		w := NewWindow(cfg.WindowSize)
		for _, f := range repeat(t, detector.HelloFrame(), cfg.WindowSize-1) {
			w.Push(f)
		}
		if r := m.Match(w); r.Status != StatusInsufficientData {
			t.Errorf("expected insufficient data, got %s", r.Status)
		}
	})

	t.Run("insufficient when window quality is low", func(t *testing.T) {
		w := NewWindow(cfg.WindowSize)
		for i, f := range repeat(t, detector.HelloFrame(), cfg.WindowSize) {
			if i%2 == 0 {
				f = normalized(t, detector.RestFrame())
			}
			w.Push(f)
		}
		if r := m.Match(w); r.Status != StatusInsufficientData {
			t.Errorf("expected insufficient data, got %s", r.Status)
		}
	})

	t.Run("clear match", func(t *testing.T) {
		w := NewWindow(cfg.WindowSize)
		for _, f := range repeat(t, detector.HelloFrame(), cfg.WindowSize) {
			w.Push(f)
		}
		r := m.Match(w)
		if r.Status != StatusVerified {
			t.Fatalf("expected verified, got %s", r.Status)
		}
		if r.ConceptID != "hello" || r.Name != "HELLO" || r.Artifact != "hello.glb" {
			t.Errorf("unexpected concept: %+v", r)
		}
		if !floatEqual(r.Score, 1) || r.SecondScore != 0 || !floatEqual(r.Gap, 1) {
			t.Errorf("unexpected scores: best=%f second=%f gap=%f", r.Score, r.SecondScore, r.Gap)
		}
		if r.Confidence != ConfidenceHigh {
			t.Errorf("expected high confidence, got %s", r.Confidence)
		}
		if len(r.Scores) != 2 || r.Scores[1].ConceptID != "other" {
			t.Errorf("expected all scores best first, got %+v", r.Scores)
		}
	})

	t.Run("empty library", func(t *testing.T) {
		empty, _ := NewLibrary("asl", nil)
		r := NewMatcher(empty, cfg).MatchEmbedding(basis(10))
		if r.Status != StatusLowConfidence || r.ConceptID != "" {
			t.Errorf("expected low confidence without concept, got %+v", r)
		}
	})

	t.Run("nil library", func(t *testing.T) {
		r := NewMatcher(nil, cfg).MatchEmbedding(basis(10))
		if r.Status != StatusLowConfidence {
			t.Errorf("expected low confidence, got %s", r.Status)
		}
	})

	t.Run("single concept uses zero runner-up", func(t *testing.T) {
		single, _ := NewLibrary("asl", []ConceptEmbedding{{ConceptID: "x", Vector: basis(300)}})
		r := NewMatcher(single, cfg).MatchEmbedding(basis(300))
		if r.Status != StatusVerified || r.SecondScore != 0 {
			t.Errorf("expected verified with zero runner-up, got %+v", r)
		}
	})

	t.Run("identical concepts are noise and tie by id", func(t *testing.T) {
		twins, _ := NewLibrary("asl", []ConceptEmbedding{
			{ConceptID: "b", Vector: basis(300)},
			{ConceptID: "a", Vector: basis(300)},
		})
		r := NewMatcher(twins, cfg).MatchEmbedding(basis(300))
		if r.Status != StatusCrossConceptNoise {
			t.Errorf("expected noise, got %s", r.Status)
		}
		if r.ConceptID != "a" {
			t.Errorf("expected tie broken towards a, got %s", r.ConceptID)
		}
	})

	t.Run("zero embedding never matches", func(t *testing.T) {
		r := m.MatchEmbedding(ZeroEmbedding())
		if r.Status != StatusLowConfidence || r.Score != 0 {
			t.Errorf("expected low confidence with zero score, got %+v", r)
		}
	})
}
