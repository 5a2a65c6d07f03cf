// Package match finds the closest stored identity for a query vector.
package match

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/classroll/rollcall/internal/biometric"
	"github.com/classroll/rollcall/internal/errors"
)

// DefaultThreshold is the Euclidean distance below which two faces are
// considered the same person.
const DefaultThreshold = 0.6

// Role selects which candidate pool is searched.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// Candidate is a stored identity with its decoded vector.
type Candidate struct {
	PersonID string
	Vector   biometric.FeatureVector
}

// Result is the accepted closest candidate.
type Result struct {
	PersonID string
	Distance float64
}

// FindMatch returns the candidate with the smallest Euclidean distance to
// query, accepted only when that distance is strictly below threshold.
// ok is false for an empty pool or when nothing is close enough. Equal
// distances resolve to the earliest candidate. Any candidate whose length
// differs from the query fails the whole call with ErrDimensionMismatch.
// Candidates at a NaN distance never match.
func FindMatch(query biometric.FeatureVector, candidates []Candidate, threshold float64) (Result, bool, error) {
	var (
		best  Result
		found bool
	)

	for i := range candidates {
		c := &candidates[i]
		if len(c.Vector) != len(query) {
			return Result{}, false, errors.New(errors.ErrDimensionMismatch).
				Component("match").
				Priority(errors.PriorityHigh).
				Context("operation", "find_match").
				Context("person_id", c.PersonID).
				Context("query_len", len(query)).
				Context("candidate_len", len(c.Vector)).
				Build()
		}

		d := floats.Distance(query, c.Vector, 2)
		if math.IsNaN(d) {
			continue
		}
		if !found || d < best.Distance {
			best = Result{PersonID: c.PersonID, Distance: d}
			found = true
		}
	}

	if !found || !(best.Distance < threshold) {
		return Result{}, false, nil
	}
	return best, true, nil
}
