package checks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tally/internal/domain"
)

// box builds a ballot record for settlement "Town" with the given symbol
// and box id.
func box(symbol, id string, counts domain.Counts, votes map[string]int) domain.BallotRecord {
	return domain.NewBallotRecord(
		domain.Label{Settlement: "Town " + symbol, Symbol: symbol, BallotBox: id},
		counts,
		votes,
	)
}

func TestNewConsistencyChecker(t *testing.T) {
	t.Run("valid name", func(t *testing.T) {
		c, err := NewConsistencyChecker("consistency")
		require.NoError(t, err)
		assert.Equal(t, "consistency", c.Name())
		assert.NoError(t, c.Validate())
	})

	t.Run("empty name", func(t *testing.T) {
		c, err := NewConsistencyChecker("")
		assert.ErrorIs(t, err, ErrEmptyCheckName)
		assert.Nil(t, c)
	})
}

func TestConsistencyChecker_Detect(t *testing.T) {
	checker, err := NewConsistencyChecker("consistency")
	require.NoError(t, err)

	tests := []struct {
		name      string
		counts    domain.Counts
		votes     map[string]int
		wantKinds []domain.IssueKind
		wantMsgs  []string
	}{
		{
			name:   "consistent record",
			counts: domain.Counts{Suffrage: 500, Total: 300, Disqualified: 10, Valid: 290},
			votes:  map[string]int{"A": 200, "B": 90},
		},
		{
			name:      "turnout exceeds suffrage",
			counts:    domain.Counts{Suffrage: 100, Total: 120, Disqualified: 0, Valid: 120},
			votes:     map[string]int{"A": 120},
			wantKinds: []domain.IssueKind{domain.IssueTurnoutExceedsSuffrage},
			wantMsgs:  []string{"Voting over 100%. Suffrage size: 100 ; Total votes: 120"},
		},
		{
			name:   "zero suffrage skips the turnout check",
			counts: domain.Counts{Suffrage: 0, Total: 120, Disqualified: 0, Valid: 120},
			votes:  map[string]int{"A": 120},
		},
		{
			name:      "total mismatch",
			counts:    domain.Counts{Suffrage: 500, Total: 100, Disqualified: 5, Valid: 90},
			votes:     map[string]int{"A": 90},
			wantKinds: []domain.IssueKind{domain.IssueTotalMismatch},
			wantMsgs:  []string{"Mismatch total votes. Valid + Disqualified != Total: 90 + 5 != 100"},
		},
		{
			name:      "party sum mismatch",
			counts:    domain.Counts{Suffrage: 500, Total: 100, Disqualified: 0, Valid: 100},
			votes:     map[string]int{"A": 60, "B": 30},
			wantKinds: []domain.IssueKind{domain.IssuePartySumMismatch},
			wantMsgs:  []string{"Total by party != total (90 != 100)"},
		},
		{
			name:   "all three in fixed order",
			counts: domain.Counts{Suffrage: 1000, Total: 1500, Disqualified: 20, Valid: 1400},
			votes:  map[string]int{"A": 1000, "B": 300},
			wantKinds: []domain.IssueKind{
				domain.IssueTurnoutExceedsSuffrage,
				domain.IssueTotalMismatch,
				domain.IssuePartySumMismatch,
			},
			wantMsgs: []string{
				"Voting over 100%. Suffrage size: 1,000 ; Total votes: 1,500",
				"Mismatch total votes. Valid + Disqualified != Total: 1,400 + 20 != 1,500",
				"Total by party != total (1,300 != 1,400)",
			},
		},
		{
			name:      "empty votes against nonzero valid",
			counts:    domain.Counts{Suffrage: 10, Total: 3, Disqualified: 0, Valid: 3},
			votes:     map[string]int{},
			wantKinds: []domain.IssueKind{domain.IssuePartySumMismatch},
			wantMsgs:  []string{"Total by party != total (0 != 3)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := box("1", "1", tt.counts, tt.votes)
			issues := checker.Detect(context.Background(), rec, domain.ZeroRecord(domain.NationalLabel))

			require.Len(t, issues, len(tt.wantKinds))
			for i, issue := range issues {
				assert.Equal(t, tt.wantKinds[i], issue.Kind)
				assert.Equal(t, tt.wantMsgs[i], issue.Message)
			}
		})
	}
}

// TestConsistencyChecker_NationalIgnored verifies the national record has
// no influence on the outcome.
func TestConsistencyChecker_NationalIgnored(t *testing.T) {
	checker, err := NewConsistencyChecker("consistency")
	require.NoError(t, err)

	rec := box("1", "1", domain.Counts{Suffrage: 10, Total: 11, Valid: 11}, map[string]int{"A": 11})
	national := box("*", "*", domain.Counts{Suffrage: 1, Total: 999, Valid: 5}, map[string]int{"Z": 1})

	assert.Equal(t,
		checker.Detect(context.Background(), rec, domain.ZeroRecord(domain.NationalLabel)),
		checker.Detect(context.Background(), rec, national),
	)
}
