package gesture

import (
	"time"

	"github.com/ayusman/mudra/internal/detector"
)

// Recognition is a confirmed sign that passed the cooldown gate.
type Recognition struct {
	ConceptID string
	Name      string
	Artifact  string
	Score     float64
	Time      time.Time
}

// Outcome is the result of processing one frame.
type Outcome struct {
	Result RecognitionResult

	// Dropped is set when the frame could not be normalized and never entered the window.
	Dropped bool
	Err     error

	// Emit is non-nil when the frame produced an event for the downstream consumer.
	Emit *Recognition
}

// Session runs the online recognition path for one live stream. It is not safe for
// concurrent use; callers feed frames from a single goroutine.
type Session struct {
	cfg     Config
	matcher *Matcher
	window  *Window
	filter  *TemporalFilter
	gate    *CooldownGate
}

// NewSession creates a session over lib. It refuses to start without concepts.
func NewSession(lib *Library, cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if lib.Len() == 0 {
		return nil, ErrEmptyLibrary
	}
	return &Session{
		cfg:     cfg,
		matcher: NewMatcher(lib, cfg),
		window:  NewWindow(cfg.WindowSize),
		filter:  NewTemporalFilter(cfg.MatchThreshold, cfg.ConfirmFrames),
		gate:    NewCooldownGate(cfg.Cooldown),
	}, nil
}

// Process runs one frame through normalization, window scoring, temporal confirmation,
// and the cooldown gate.
func (s *Session) Process(frame *detector.LandmarkFrame, now time.Time) Outcome {
	n, err := frame.Normalize()
	if err != nil {
		return Outcome{
			Result:  RecognitionResult{Status: StatusInsufficientData, Confidence: ConfidenceLow},
			Dropped: true,
			Err:     err,
		}
	}
	s.window.Push(*n)

	result := s.matcher.Match(s.window)
	if result.Status == StatusInsufficientData {
		s.filter.Reset()
		return Outcome{Result: result}
	}

	confirmed, ok := s.filter.Observe(result.ConceptID, result.Score)
	if result.Status != StatusVerified {
		return Outcome{Result: result}
	}
	if !ok || confirmed != result.ConceptID {
		result.Status = StatusPendingConfirmation
		return Outcome{Result: result}
	}

	out := Outcome{Result: result}
	if s.gate.Allow(result.ConceptID, now) {
		out.Emit = &Recognition{
			ConceptID: result.ConceptID,
			Name:      result.Name,
			Artifact:  result.Artifact,
			Score:     result.Score,
			Time:      now,
		}
	}
	return out
}

// Reset clears the window and temporal state, and the cooldown clock when clearCooldown is set.
func (s *Session) Reset(clearCooldown bool) {
	s.window.Reset()
	s.filter.Reset()
	if clearCooldown {
		s.gate.Reset()
	}
}

// Reload resets the session and swaps in lib. It is the only way to change the library.
func (s *Session) Reload(lib *Library) error {
	if lib.Len() == 0 {
		return ErrEmptyLibrary
	}
	s.Reset(false)
	s.matcher = NewMatcher(lib, s.cfg)
	return nil
}

// Library returns the library in use.
func (s *Session) Library() *Library {
	return s.matcher.Library()
}

// WindowFill returns the number of frames held and the window capacity.
func (s *Session) WindowFill() (int, int) {
	return s.window.Len(), s.window.Size()
}

// CooldownRemaining returns how long until the next emission is allowed.
func (s *Session) CooldownRemaining(now time.Time) time.Duration {
	return s.gate.Remaining(now)
}
