package distance

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// NormTolerance is the maximum deviation of ‖v‖ from 1 accepted by IsNormalized
// when callers do not pass their own tolerance.
const NormTolerance = 1e-3

// Dot calculates the dot product of two vectors.
// Returns 0 if the lengths differ or either vector is empty. This is a neutral
// score, not a similarity judgment; callers must not use it to detect malformed input.
func Dot(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return dot(a, b)
}

// Cosine calculates the cosine similarity of two vectors in [-1, 1].
// Returns 0 on length mismatch, empty input or if either norm is zero.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var d, na, nb float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		d += ai * bi
		na += ai * ai
		nb += bi * bi
	}

	if na == 0 || nb == 0 {
		return 0
	}

	sim := d / (math.Sqrt(na) * math.Sqrt(nb))
	// Clamp rounding noise.
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return float32(sim)
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sum))
}

// IsNormalized reports whether |‖v‖ - 1| <= tol.
// Empty vectors are never normalized.
func IsNormalized(v []float32, tol float32) bool {
	if len(v) == 0 {
		return false
	}
	return float32(math.Abs(float64(Norm(v)-1))) <= tol
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm := Norm(v)
	if norm == 0 {
		return false
	}
	inv := 1 / norm
	for i := range v {
		v[i] *= inv
	}
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

func dot(a, b []float32) float32 {
	var sum float32
	b = b[:len(a)]
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Metric represents the similarity metric used for vector comparison.
type Metric int

const (
	MetricCosine Metric = iota
	MetricDot
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "Cosine"
	case MetricDot:
		return "Dot"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// ParseMetric parses the case-insensitive names "cosine" and "dot".
// The empty string selects MetricCosine.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(s) {
	case "cosine", "":
		return MetricCosine, nil
	case "dot":
		return MetricDot, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

// RequiresUnitVectors reports whether the metric is only a valid similarity
// for L2-normalized input.
func (m Metric) RequiresUnitVectors() bool {
	return m == MetricDot
}

// Func is a function type for similarity calculation.
type Func func(a, b []float32) float32

// Provider returns the similarity function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricCosine:
		return Cosine, nil
	case MetricDot:
		return Dot, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
