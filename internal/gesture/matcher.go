package gesture

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Status is the verification status of a recognition attempt.
type Status string

const (
	// StatusInsufficientData means the window is not full or too noisy to classify.
	StatusInsufficientData Status = "insufficient_data"
	// StatusLowConfidence means the best score is below the match threshold.
	StatusLowConfidence Status = "low_confidence"
	// StatusCrossConceptNoise means the best and runner-up concepts are too close to call.
	StatusCrossConceptNoise Status = "cross_concept_noise"
	// StatusPendingConfirmation means the match is clear but not yet sustained long enough.
	StatusPendingConfirmation Status = "pending_confirmation"
	// StatusVerified means the match is clear and temporally confirmed.
	StatusVerified Status = "verified"
)

// Confidence is a coarse tier of the best score.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Config holds the recognition tunables.
type Config struct {
	// WindowSize is the number of frames pooled into one live embedding.
	WindowSize int `json:"window_size"`

	// MinWindowQuality is the fraction of window frames that must have shoulders and a hand.
	MinWindowQuality float64 `json:"min_window_quality"`

	// MatchThreshold is the minimum best score for a match.
	MatchThreshold float64 `json:"match_threshold"`

	// MinGap is the minimum margin between the best and runner-up scores.
	MinGap float64 `json:"min_gap"`

	// HighConfidence is the score at or above which confidence is high.
	HighConfidence float64 `json:"high_confidence"`

	// ConfirmFrames is the number of consecutive qualifying frames needed to confirm.
	ConfirmFrames int `json:"confirm_frames"`

	// Cooldown is the minimum time between two emissions.
	Cooldown time.Duration `json:"cooldown"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		WindowSize:       30,
		MinWindowQuality: 0.7,
		MatchThreshold:   0.80,
		MinGap:           0.15,
		HighConfidence:   0.90,
		ConfirmFrames:    5,
		Cooldown:         2000 * time.Millisecond,
	}
}

// Validate checks that the tunables are usable.
func (c Config) Validate() error {
	var errs []error
	if c.WindowSize < 1 {
		errs = append(errs, fmt.Errorf("window size must be positive, got %d", c.WindowSize))
	}
	if c.MinWindowQuality < 0 || c.MinWindowQuality > 1 {
		errs = append(errs, fmt.Errorf("min window quality must be within [0,1], got %v", c.MinWindowQuality))
	}
	if c.MinGap < 0 {
		errs = append(errs, fmt.Errorf("min gap must not be negative, got %v", c.MinGap))
	}
	if c.HighConfidence < c.MatchThreshold {
		errs = append(errs, fmt.Errorf("high confidence %v below match threshold %v", c.HighConfidence, c.MatchThreshold))
	}
	if c.ConfirmFrames < 1 {
		errs = append(errs, fmt.Errorf("confirm frames must be positive, got %d", c.ConfirmFrames))
	}
	if c.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("cooldown must not be negative, got %v", c.Cooldown))
	}
	return errors.Join(errs...)
}

// MarshalJSON writes Cooldown as a duration string such as "2s".
func (c Config) MarshalJSON() ([]byte, error) {
	type plain Config
	return json.Marshal(struct {
		plain
		Cooldown string `json:"cooldown"`
	}{plain(c), c.Cooldown.String()})
}

// UnmarshalJSON reads Cooldown as a duration string. Absent fields keep their value.
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	aux := struct {
		*plain
		Cooldown string `json:"cooldown"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Cooldown != "" {
		d, err := time.ParseDuration(aux.Cooldown)
		if err != nil {
			return fmt.Errorf("cooldown: %w", err)
		}
		c.Cooldown = d
	}
	return nil
}

// ConceptScore is the similarity of the live embedding to one concept.
type ConceptScore struct {
	ConceptID string  `json:"concept_id"`
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
}

// RecognitionResult is the outcome of scoring one window.
type RecognitionResult struct {
	ConceptID   string         `json:"concept_id,omitempty"`
	Name        string         `json:"name,omitempty"`
	Artifact    string         `json:"artifact,omitempty"`
	Score       float64        `json:"score"`
	SecondScore float64        `json:"second_score"`
	Gap         float64        `json:"gap"`
	Confidence  Confidence     `json:"confidence"`
	Status      Status         `json:"status"`
	Scores      []ConceptScore `json:"scores,omitempty"`
}

// Classify maps the best and runner-up scores to a pre-confirmation status and a
// confidence tier.
func Classify(best, second float64, cfg Config) (Status, Confidence) {
	confidence := ConfidenceLow
	switch {
	case best >= cfg.HighConfidence:
		confidence = ConfidenceHigh
	case best >= cfg.MatchThreshold:
		confidence = ConfidenceMedium
	}

	switch {
	case best < cfg.MatchThreshold:
		return StatusLowConfidence, confidence
	case best-second < cfg.MinGap:
		return StatusCrossConceptNoise, confidence
	default:
		return StatusVerified, confidence
	}
}

// Matcher scores live windows against a library.
type Matcher struct {
	lib *Library
	cfg Config
}

// NewMatcher creates a matcher over lib. A nil or empty library is allowed and
// always yields low confidence.
func NewMatcher(lib *Library, cfg Config) *Matcher {
	return &Matcher{lib: lib, cfg: cfg}
}

// Library returns the library being matched against.
func (m *Matcher) Library() *Library {
	return m.lib
}

// Score returns the similarity of e to every concept, best first. Ties are ordered by concept id.
func (m *Matcher) Score(e Embedding) []ConceptScore {
	if m.lib.Len() == 0 {
		return nil
	}
	scores := make([]ConceptScore, len(m.lib.concepts))
	for i, c := range m.lib.concepts {
		scores[i] = ConceptScore{
			ConceptID: c.ConceptID,
			Name:      c.Name,
			Score:     CosineSimilarity(e, c.Vector),
		}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].ConceptID < scores[j].ConceptID
	})
	return scores
}

// Match classifies the window. It reports insufficient data until the window is
// full and clean enough to pool.
func (m *Matcher) Match(w *Window) RecognitionResult {
	if w.Len() < m.cfg.WindowSize {
		return RecognitionResult{Status: StatusInsufficientData, Confidence: ConfidenceLow}
	}
	if w.Quality() < m.cfg.MinWindowQuality {
		return RecognitionResult{Status: StatusInsufficientData, Confidence: ConfidenceLow}
	}
	return m.MatchEmbedding(EmbedWindow(w.Frames()))
}

// MatchEmbedding scores and classifies a precomputed embedding.
func (m *Matcher) MatchEmbedding(e Embedding) RecognitionResult {
	scores := m.Score(e)
	if len(scores) == 0 {
		return RecognitionResult{Status: StatusLowConfidence, Confidence: ConfidenceLow}
	}

	best := scores[0]
	var second float64
	if len(scores) > 1 {
		second = scores[1].Score
	}

	status, confidence := Classify(best.Score, second, m.cfg)
	result := RecognitionResult{
		ConceptID:   best.ConceptID,
		Name:        best.Name,
		Score:       best.Score,
		SecondScore: second,
		Gap:         best.Score - second,
		Confidence:  confidence,
		Status:      status,
		Scores:      scores,
	}
	if c, ok := m.lib.index[best.ConceptID]; ok {
		result.Artifact = m.lib.concepts[c].Artifact
	}
	return result
}
