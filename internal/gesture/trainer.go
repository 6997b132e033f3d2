package gesture

import (
	"errors"
	"fmt"
	"log"

	"gonum.org/v1/gonum/floats"

	"github.com/ayusman/mudra/internal/detector"
)

var (
	// ErrNoUsableRecordings is returned when no recording of a concept survives the quality gates.
	ErrNoUsableRecordings = errors.New("no usable recordings")
	// ErrRecordingRejected is returned when a recording fails the pose or hand quality gate.
	ErrRecordingRejected = errors.New("recording below quality threshold")
	// ErrNoValidFrames is returned when every frame of a recording fails normalization.
	ErrNoValidFrames = errors.New("recording has no valid frames")
)

// minNorm is the norm under which a recording embedding is left unscaled.
const minNorm = 1e-8

// BuilderConfig holds the reference library builder tunables.
type BuilderConfig struct {
	// MinPoseQuality is the minimum fraction of frames with both shoulders.
	MinPoseQuality float64 `json:"min_pose_quality"`

	// MinHandQuality is the minimum fraction of frames with at least one hand.
	MinHandQuality float64 `json:"min_hand_quality"`

	// OutlierZ is the modified z-score above which a frame is dropped.
	OutlierZ float64 `json:"outlier_z"`

	// MinOutlierFrames is the frame count below which outlier rejection is skipped.
	MinOutlierFrames int `json:"min_outlier_frames"`

	// MADEpsilon is the MAD below which frames are considered identical.
	MADEpsilon float64 `json:"mad_epsilon"`

	// MinInstanceSimilarity is the cosine to the mean direction a recording needs to be kept.
	MinInstanceSimilarity float64 `json:"min_instance_similarity"`
}

// DefaultBuilderConfig returns a BuilderConfig with sensible default values.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		MinPoseQuality:        0.80,
		MinHandQuality:        0.20,
		OutlierZ:              3.0,
		MinOutlierFrames:      5,
		MADEpsilon:            1e-6,
		MinInstanceSimilarity: 0.5,
	}
}

// Quality summarizes the tracking coverage of a recording.
type Quality struct {
	Frames  int     `json:"frames"`
	PosePct float64 `json:"pose_pct"`
	HandPct float64 `json:"hand_pct"`
	Usable  bool    `json:"usable"`
}

// AssessRecording measures pose and hand coverage and checks them against cfg.
func AssessRecording(frames []detector.LandmarkFrame, cfg BuilderConfig) Quality {
	q := Quality{Frames: len(frames)}
	if len(frames) == 0 {
		return q
	}

	var pose, hand int
	for i := range frames {
		if frames[i].ShouldersValid() {
			pose++
		}
		if frames[i].HasHand() {
			hand++
		}
	}
	n := float64(len(frames))
	q.PosePct = float64(pose) / n
	q.HandPct = float64(hand) / n
	q.Usable = q.PosePct >= cfg.MinPoseQuality && q.HandPct >= cfg.MinHandQuality
	return q
}

// Recording is one example performance of a concept.
type Recording struct {
	ID     string
	Frames []detector.LandmarkFrame
}

// RecordingReport describes what the builder did with one recording.
type RecordingReport struct {
	ID              string  `json:"id"`
	Quality         Quality `json:"quality"`
	FramesUsed      int     `json:"frames_used"`
	FramesDropped   int     `json:"frames_dropped"`
	OutliersRemoved int     `json:"outliers_removed"`
	Similarity      float64 `json:"similarity,omitempty"`
	Excluded        bool    `json:"excluded"`
	Reason          string  `json:"reason,omitempty"`
}

// ConceptSource is the input for one concept of a library build.
type ConceptSource struct {
	ConceptID  string
	Name       string
	Artifact   string
	Recordings []Recording
}

// ConceptReport describes the build of one concept.
type ConceptReport struct {
	ConceptID  string            `json:"concept_id"`
	Name       string            `json:"name"`
	Recordings []RecordingReport `json:"recordings"`
	Used       int               `json:"used"`
	Error      string            `json:"error,omitempty"`
}

// BuildReport describes a whole library build.
type BuildReport struct {
	Library  string          `json:"library"`
	Concepts []ConceptReport `json:"concepts"`
	Built    int             `json:"built"`
	Skipped  int             `json:"skipped"`
}

// Trainer distills example recordings into canonical concept embeddings.
type Trainer struct {
	cfg BuilderConfig
}

// NewTrainer creates a new Trainer instance.
func NewTrainer(cfg BuilderConfig) *Trainer {
	return &Trainer{cfg: cfg}
}

// RecordingEmbedding gates, normalizes, embeds, and de-noises one recording and
// returns the mean of its surviving frame embeddings.
func (t *Trainer) RecordingEmbedding(rec Recording) (Embedding, RecordingReport, error) {
	report := RecordingReport{ID: rec.ID}
	report.Quality = AssessRecording(rec.Frames, t.cfg)
	if !report.Quality.Usable {
		report.Excluded = true
		report.Reason = fmt.Sprintf("pose %.0f%%, hands %.0f%%", report.Quality.PosePct*100, report.Quality.HandPct*100)
		log.Printf("Skipping recording %s: quality below threshold (%s)", rec.ID, report.Reason)
		return nil, report, fmt.Errorf("recording %s: %w", rec.ID, ErrRecordingRejected)
	}

	embeddings := make([]Embedding, 0, len(rec.Frames))
	for i := range rec.Frames {
		n, err := rec.Frames[i].Normalize()
		if err != nil {
			report.FramesDropped++
			continue
		}
		embeddings = append(embeddings, EmbedFrame(n))
	}
	if len(embeddings) == 0 {
		report.Excluded = true
		report.Reason = "no valid frames"
		log.Printf("Skipping recording %s: no valid frames", rec.ID)
		return nil, report, fmt.Errorf("recording %s: %w", rec.ID, ErrNoValidFrames)
	}

	kept, removed := RejectOutliers(embeddings, t.cfg)
	if removed > 0 {
		log.Printf("Removed %d outlier frame(s) from recording %s", removed, rec.ID)
	}
	report.OutliersRemoved = removed
	report.FramesUsed = len(kept)

	return meanOf(kept), report, nil
}

// BuildConcept produces the canonical embedding for one concept from its recordings.
func (t *Trainer) BuildConcept(recordings []Recording) (Embedding, []RecordingReport, error) {
	reports := make([]RecordingReport, 0, len(recordings))
	embeddings := make([]Embedding, 0, len(recordings))
	positions := make([]int, 0, len(recordings))

	for _, rec := range recordings {
		e, report, err := t.RecordingEmbedding(rec)
		reports = append(reports, report)
		if err != nil {
			continue
		}
		embeddings = append(embeddings, e)
		positions = append(positions, len(reports)-1)
	}

	if len(embeddings) == 0 {
		return nil, reports, ErrNoUsableRecordings
	}
	if len(embeddings) == 1 {
		return embeddings[0], reports, nil
	}

	similarities := t.instanceSimilarities(embeddings)
	kept := make([]Embedding, 0, len(embeddings))
	for i, sim := range similarities {
		reports[positions[i]].Similarity = sim
		if sim >= t.cfg.MinInstanceSimilarity {
			kept = append(kept, embeddings[i])
		}
	}

	if len(kept) == 0 {
		log.Printf("Every recording fell below similarity %.2f, keeping all %d", t.cfg.MinInstanceSimilarity, len(embeddings))
		return meanOf(embeddings), reports, nil
	}
	for i, sim := range similarities {
		if sim < t.cfg.MinInstanceSimilarity {
			r := &reports[positions[i]]
			r.Excluded = true
			r.Reason = fmt.Sprintf("low similarity %.3f to mean", sim)
			log.Printf("Excluding recording %s: low similarity (%.3f) to mean", r.ID, sim)
		}
	}
	return meanOf(kept), reports, nil
}

// instanceSimilarities returns each embedding's cosine to the mean of the
// L2-normalized embeddings.
func (t *Trainer) instanceSimilarities(embeddings []Embedding) []float64 {
	units := make([]Embedding, len(embeddings))
	for i, e := range embeddings {
		u := e.Clone()
		norm := floats.Norm(u, 2)
		if norm < minNorm {
			norm = 1
		}
		floats.Scale(1/norm, u)
		units[i] = u
	}

	mean := meanOf(units)
	floats.Scale(1/(floats.Norm(mean, 2)+minNorm), mean)

	sims := make([]float64, len(units))
	for i, u := range units {
		sims[i] = floats.Dot(u, mean)
	}
	return sims
}

// BuildLibrary builds every concept in sources, in order. Concepts with no usable
// recordings are skipped and reported.
func (t *Trainer) BuildLibrary(name string, sources []ConceptSource) (*Library, BuildReport) {
	report := BuildReport{Library: name}
	concepts := make([]ConceptEmbedding, 0, len(sources))

	for _, src := range sources {
		cr := ConceptReport{ConceptID: src.ConceptID, Name: src.Name}
		vec, recReports, err := t.BuildConcept(src.Recordings)
		cr.Recordings = recReports
		for _, r := range recReports {
			if !r.Excluded {
				cr.Used++
			}
		}
		if err != nil {
			cr.Error = err.Error()
			report.Skipped++
			report.Concepts = append(report.Concepts, cr)
			log.Printf("Skipping concept %s (%s): %v", src.Name, src.ConceptID, err)
			continue
		}

		concepts = append(concepts, ConceptEmbedding{
			ConceptID: src.ConceptID,
			Name:      src.Name,
			Artifact:  src.Artifact,
			Vector:    vec,
		})
		report.Built++
		report.Concepts = append(report.Concepts, cr)
	}

	lib, err := NewLibrary(name, concepts)
	if err != nil {
		// Only duplicate ids can fail here; the builder always produces EmbeddingDim vectors.
		log.Printf("Failed to assemble library %s: %v", name, err)
		lib, _ = NewLibrary(name, dedupe(concepts))
	}
	return lib, report
}

// dedupe keeps the first concept for each id.
func dedupe(concepts []ConceptEmbedding) []ConceptEmbedding {
	seen := make(map[string]bool, len(concepts))
	out := make([]ConceptEmbedding, 0, len(concepts))
	for _, c := range concepts {
		if seen[c.ConceptID] {
			continue
		}
		seen[c.ConceptID] = true
		out = append(out, c)
	}
	return out
}
