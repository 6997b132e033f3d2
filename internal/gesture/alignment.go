package gesture

// DefaultMinAlignment is the similarity expected between two libraries' embeddings of
// the same concept.
const DefaultMinAlignment = 0.85

// ConceptAlignment is the similarity of one concept across two libraries.
type ConceptAlignment struct {
	ConceptID  string  `json:"concept_id"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
	Flagged    bool    `json:"flagged"`
}

// AlignmentReport compares two libraries built for the same concepts.
type AlignmentReport struct {
	Source      string             `json:"source"`
	Target      string             `json:"target"`
	Concepts    []ConceptAlignment `json:"concepts"`
	Mean        float64            `json:"mean"`
	Flagged     int                `json:"flagged"`
	OnlySource  []string           `json:"only_source,omitempty"`
	OnlyTarget  []string           `json:"only_target,omitempty"`
	MinExpected float64            `json:"min_expected"`
}

// CompareLibraries reports the cosine similarity between a and b for every concept id
// present in both. Concepts below minSimilarity are flagged for manual review.
func CompareLibraries(a, b *Library, minSimilarity float64) AlignmentReport {
	report := AlignmentReport{
		Source:      a.Name(),
		Target:      b.Name(),
		MinExpected: minSimilarity,
	}

	var sum float64
	for _, ca := range a.concepts {
		i, ok := b.index[ca.ConceptID]
		if !ok {
			report.OnlySource = append(report.OnlySource, ca.ConceptID)
			continue
		}
		sim := CosineSimilarity(ca.Vector, b.concepts[i].Vector)
		flagged := sim < minSimilarity
		if flagged {
			report.Flagged++
		}
		report.Concepts = append(report.Concepts, ConceptAlignment{
			ConceptID:  ca.ConceptID,
			Name:       ca.Name,
			Similarity: sim,
			Flagged:    flagged,
		})
		sum += sim
	}
	for _, cb := range b.concepts {
		if _, ok := a.index[cb.ConceptID]; !ok {
			report.OnlyTarget = append(report.OnlyTarget, cb.ConceptID)
		}
	}

	if len(report.Concepts) > 0 {
		report.Mean = sum / float64(len(report.Concepts))
	}
	return report
}
