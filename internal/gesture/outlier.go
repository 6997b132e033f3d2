package gesture

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// madScale converts a MAD into a standard-deviation estimate for normal data.
const madScale = 0.6745

// median returns the median of xs without modifying it. Even-length input averages
// the two middle values.
func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := make([]float64, len(xs))
	copy(s, xs)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

// medianEmbedding returns the per-dimension median of vs.
func medianEmbedding(vs []Embedding) Embedding {
	out := make(Embedding, len(vs[0]))
	col := make([]float64, len(vs))
	for d := range out {
		for i, v := range vs {
			col[i] = v[d]
		}
		out[d] = median(col)
	}
	return out
}

// RejectOutliers drops frame embeddings that lie unusually far from the per-dimension
// median, using the modified z-score of their L2 distances. It returns the kept frames
// and how many were removed. The input is returned untouched when there are fewer than
// cfg.MinOutlierFrames frames, when the MAD is below cfg.MADEpsilon, or when every
// frame would be dropped.
func RejectOutliers(frames []Embedding, cfg BuilderConfig) ([]Embedding, int) {
	if len(frames) < cfg.MinOutlierFrames || len(frames) == 0 {
		return frames, 0
	}

	center := medianEmbedding(frames)
	distances := make([]float64, len(frames))
	for i, f := range frames {
		distances[i] = floats.Distance(f, center, 2)
	}

	medDist := median(distances)
	deviations := make([]float64, len(distances))
	for i, d := range distances {
		deviations[i] = math.Abs(d - medDist)
	}
	mad := median(deviations)
	if mad < cfg.MADEpsilon {
		return frames, 0
	}

	kept := make([]Embedding, 0, len(frames))
	for i, f := range frames {
		z := madScale * (distances[i] - medDist) / mad
		if math.Abs(z) > cfg.OutlierZ {
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		return frames, 0
	}
	return kept, len(frames) - len(kept)
}
