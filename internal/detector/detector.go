package detector

import "gocv.io/x/gocv"

// Detector is the boundary to the upstream landmark tracker.
type Detector interface {
	// Detect runs the tracker on a video frame and returns its landmarks.
	// A frame with no person yields a LandmarkFrame with every point invalid.
	Detect(frame *gocv.Mat) (*LandmarkFrame, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for the holistic tracker.
type Config struct {
	// MinDetectionConf is the tracker's person detection threshold (0.0-1.0).
	MinDetectionConf float64 `json:"min_detection_conf"`

	// MinTrackingConf is the tracker's landmark tracking threshold (0.0-1.0).
	MinTrackingConf float64 `json:"min_tracking_conf"`

	// VisibilityThreshold marks points below this visibility score as missing.
	VisibilityThreshold float64 `json:"visibility_threshold"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinDetectionConf:    0.3,
		MinTrackingConf:     0.3,
		VisibilityThreshold: 0.5,
	}
}
