package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanAnalysisValidate(t *testing.T) {
	cases := []struct {
		score int
		ok    bool
	}{
		{0, false},
		{1, true},
		{7, true},
		{10, true},
		{11, false},
		{-3, false},
	}
	for _, tc := range cases {
		p := PlanAnalysis{FeasibilityScore: tc.score}
		err := p.Validate()
		if tc.ok {
			require.NoError(t, err, "score %d", tc.score)
		} else {
			require.ErrorIs(t, err, ErrFeasibilityOutOfRange, "score %d", tc.score)
		}
	}
}
