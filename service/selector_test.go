package service

import (
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

func TestCandidates(t *testing.T) {
	tests := map[string]struct {
		base      string
		n         int
		expect    []string
		expectErr error
	}{
		"single candidate is the base name": {
			base:   "example-table",
			n:      1,
			expect: []string{"example-table"},
		},
		"replicas get a numeric suffix starting at 2": {
			base:   "example-table",
			n:      3,
			expect: []string{"example-table", "example-table-2", "example-table-3"},
		},
		"empty base name is rejected": {
			base:      "",
			n:         3,
			expectErr: ErrEmptyBaseName,
		},
		"zero replicas is rejected": {
			base:      "example-table",
			n:         0,
			expectErr: ErrInvalidReplicas,
		},
		"negative replicas is rejected": {
			base:      "example-table",
			n:         -1,
			expectErr: ErrInvalidReplicas,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			candidates, err := Candidates(test.base, test.n)
			if test.expectErr != nil {
				assert.ErrorIs(t, err, test.expectErr)
				return
			}

			if assert.NoError(t, err) {
				assert.Equal(t, test.expect, candidates)
			}
		})
	}
}

func TestSelectIsDeterministicWithinASecond(t *testing.T) {
	candidates := []string{"a", "b", "c"}
	now := time.Unix(1700000000, 0)

	first, err := Select(candidates, now)
	assert.NoError(t, err)

	second, err := Select(candidates, now.Add(500*time.Millisecond))
	assert.NoError(t, err)

	assert.Equal(t, first.Selected, second.Selected)
	assert.Equal(t, first.Index, second.Index)
}

func TestSelectCyclesThroughAllCandidates(t *testing.T) {
	candidates := []string{"a", "b", "c"}
	now := time.Unix(1700000000, 0)

	seen := make(map[string]bool)
	for i := 0; i < len(candidates); i++ {
		sel, err := Select(candidates, now.Add(time.Duration(i)*time.Second))
		if assert.NoError(t, err) {
			assert.GreaterOrEqual(t, sel.Index, 0)
			assert.Less(t, sel.Index, len(candidates))
			assert.Equal(t, candidates[sel.Index], sel.Selected)
			seen[sel.Selected] = true
		}
	}

	assert.Len(t, seen, len(candidates))
}

func TestSelectSingleCandidate(t *testing.T) {
	sel, err := Select([]string{"only"}, time.Now())
	if assert.NoError(t, err) {
		assert.Equal(t, "only", sel.Selected)
		assert.Equal(t, 0, sel.Index)
	}
}

func TestSelectEmptyCandidates(t *testing.T) {
	_, err := Select(nil, time.Now())
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestSelectNames(t *testing.T) {
	sel, err := SelectNames("example-bucket", 3, time.Unix(1700000002, 0))
	if assert.NoError(t, err) {
		assert.Equal(t, []string{"example-bucket", "example-bucket-2", "example-bucket-3"}, sel.Candidates)
		assert.Equal(t, 1, sel.Index)
		assert.Equal(t, "example-bucket-2", sel.Selected)
	}
}
