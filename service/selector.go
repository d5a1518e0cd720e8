// Package service holds the small pieces shared by every data access layer:
// deterministic round-robin resource selection and structured operation
// records.
package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptyBaseName   = errors.New("base resource name must not be empty")
	ErrNoCandidates    = errors.New("candidate set must not be empty")
	ErrInvalidReplicas = errors.New("replica count must be positive")
)

// Selection is one round-robin pick among a candidate set. It is immutable
// for the duration of an invocation.
type Selection struct {
	Candidates []string
	Selected   string
	Index      int
}

// Candidates derives n resource names from a base name: base, base-2, ...,
// base-n.
func Candidates(base string, n int) ([]string, error) {
	if base == "" {
		return nil, ErrEmptyBaseName
	}
	if n < 1 {
		return nil, ErrInvalidReplicas
	}

	candidates := make([]string, n)
	candidates[0] = base
	for i := 1; i < n; i++ {
		candidates[i] = fmt.Sprintf("%s-%d", base, i+1)
	}

	return candidates, nil
}

// Select picks one candidate deterministically from the wall clock truncated
// to seconds: same second, same pick. Repeated invocations spread across the
// candidates without any coordination or persisted state.
func Select(candidates []string, now time.Time) (Selection, error) {
	if len(candidates) == 0 {
		return Selection{}, ErrNoCandidates
	}

	idx := int(now.Unix() % int64(len(candidates)))
	if idx < 0 {
		idx += len(candidates)
	}

	return Selection{
		Candidates: candidates,
		Selected:   candidates[idx],
		Index:      idx,
	}, nil
}

// SelectNames combines Candidates and Select for the common
// name-plus-replica-count case.
func SelectNames(base string, n int, now time.Time) (Selection, error) {
	candidates, err := Candidates(base, n)
	if err != nil {
		return Selection{}, err
	}

	return Select(candidates, now)
}
