// Package gesture turns normalized landmark frames into embeddings and recognizes
// signs by comparing live windows against a library of canonical concept embeddings.
package gesture

import (
	"gonum.org/v1/gonum/floats"

	"github.com/ayusman/mudra/internal/detector"
)

// EmbeddingDim is the fixed length of every embedding.
const EmbeddingDim = 512

const coordsPerPoint = 3

// Embedding is a fixed-length vector: the 52 landmark points in pose, left hand,
// right hand, face order as x, y, z triples, zero-padded to EmbeddingDim.
type Embedding []float64

// ZeroEmbedding returns the all-zero embedding. It never matches any concept.
func ZeroEmbedding() Embedding {
	return make(Embedding, EmbeddingDim)
}

// Clone returns a copy of e.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// IsZero reports whether every component of e is zero.
func (e Embedding) IsZero() bool {
	for _, v := range e {
		if v != 0 {
			return false
		}
	}
	return true
}

// setPoint writes point i into its slot, dropping points that fall past EmbeddingDim.
func setPoint(e Embedding, i int, p detector.Point3D) {
	base := i * coordsPerPoint
	if base+coordsPerPoint > len(e) {
		return
	}
	e[base] = p.X
	e[base+1] = p.Y
	e[base+2] = p.Z
}

// EmbedFrame flattens a single normalized frame. Invalid points contribute zeros.
func EmbedFrame(f *detector.NormalizedFrame) Embedding {
	e := ZeroEmbedding()
	if f == nil {
		return e
	}
	for i, p := range f.Points() {
		if p.Valid {
			setPoint(e, i, p.Point3D)
		}
	}
	return e
}

// EmbedWindow pools a sequence of normalized frames. Each point slot is averaged over
// only the frames in which that point is valid, so dropouts do not pull the result
// towards zero. A point that is never valid pools to zero.
func EmbedWindow(frames []detector.NormalizedFrame) Embedding {
	var sums [detector.TotalPoints]detector.Point3D
	var counts [detector.TotalPoints]int

	for i := range frames {
		for j, p := range frames[i].Points() {
			if !p.Valid {
				continue
			}
			sums[j].X += p.X
			sums[j].Y += p.Y
			sums[j].Z += p.Z
			counts[j]++
		}
	}

	e := ZeroEmbedding()
	for j := range sums {
		if counts[j] == 0 {
			continue
		}
		n := float64(counts[j])
		setPoint(e, j, detector.Point3D{X: sums[j].X / n, Y: sums[j].Y / n, Z: sums[j].Z / n})
	}
	return e
}

// CosineSimilarity returns the cosine of the angle between a and b. Mismatched
// lengths and zero-magnitude vectors score 0.
func CosineSimilarity(a, b Embedding) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

// meanOf returns the element-wise arithmetic mean of vs, summed in slice order.
func meanOf(vs []Embedding) Embedding {
	if len(vs) == 0 {
		return ZeroEmbedding()
	}
	out := make(Embedding, len(vs[0]))
	for _, v := range vs {
		floats.Add(out, v)
	}
	floats.Scale(1/float64(len(vs)), out)
	return out
}
