package similarity

import (
	"strings"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
)

// Vectorize renders a feature record into its term vocabulary:
//
//   - each truthy boolean flag contributes its key as a term
//   - each non-empty string field contributes "key=value" (lowercased)
//   - each numeric field contributes "key:low|mid|high" from its
//     normalized value, so nearby magnitudes share a term
//
// The result maps term to occurrence count (always 1 per record today, but
// indexes treat it as a frequency). A nil record yields no terms.
func Vectorize(rec *feature.Record) map[string]float64 {
	terms := make(map[string]float64)
	if rec == nil {
		return terms
	}

	for key, v := range rec.Flags() {
		if v {
			terms[key]++
		}
	}
	for key, v := range rec.Strings() {
		if v != "" {
			terms[key+"="+strings.ToLower(v)]++
		}
	}
	for key := range rec.Numbers() {
		if n, ok := rec.Normalized(key, 0); ok {
			terms[key+":"+bucket(n)]++
		}
	}
	return terms
}

func bucket(n float64) string {
	switch {
	case n < 1.0/3.0:
		return "low"
	case n < 2.0/3.0:
		return "mid"
	default:
		return "high"
	}
}
