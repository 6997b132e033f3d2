package gesture

// TemporalFilter confirms a concept only after it has been the qualifying best match
// for a run of consecutive frames. Any dip below the threshold or change of concept
// breaks the run.
type TemporalFilter struct {
	threshold float64
	required  int

	tracked   string
	count     int
	confirmed string
}

// NewTemporalFilter creates a filter that confirms after required consecutive frames
// scoring at least threshold.
func NewTemporalFilter(threshold float64, required int) *TemporalFilter {
	if required < 1 {
		required = 1
	}
	return &TemporalFilter{threshold: threshold, required: required}
}

// Observe feeds the best concept and score of one frame and returns the confirmed
// concept, if any.
func (f *TemporalFilter) Observe(concept string, score float64) (string, bool) {
	if concept == "" || score < f.threshold {
		f.Reset()
		return "", false
	}

	if concept == f.tracked {
		f.count++
	} else {
		f.tracked = concept
		f.count = 1
		f.confirmed = ""
	}

	if f.count >= f.required {
		f.confirmed = concept
	}
	return f.confirmed, f.confirmed != ""
}

// Reset clears the tracked concept, the run length, and any confirmation.
func (f *TemporalFilter) Reset() {
	f.tracked = ""
	f.count = 0
	f.confirmed = ""
}

// Tracked returns the concept being tracked and its current run length.
func (f *TemporalFilter) Tracked() (string, int) {
	return f.tracked, f.count
}

// Confirmed returns the confirmed concept, or "" if none.
func (f *TemporalFilter) Confirmed() string {
	return f.confirmed
}
