package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupBySettlement(t *testing.T) {
	records := []BallotRecord{
		box("20", "1", Counts{}, nil),
		box("10", "1", Counts{}, nil),
		box("20", "2", Counts{}, nil),
		box("30", "1", Counts{}, nil),
		box("10", "2", Counts{}, nil),
	}

	groups := GroupBySettlement(records)

	require.Len(t, groups, 3)
	assert.Equal(t, SettlementGroup{Symbol: "20", Indices: []int{0, 2}}, groups[0])
	assert.Equal(t, SettlementGroup{Symbol: "10", Indices: []int{1, 4}}, groups[1])
	assert.Equal(t, SettlementGroup{Symbol: "30", Indices: []int{3}}, groups[2])

	assert.Empty(t, GroupBySettlement(nil))
}

func TestAnalyzedRecord(t *testing.T) {
	rec := box("1", "1", Counts{Total: 50, Valid: 40, Disqualified: 10}, map[string]int{"A": 40})
	dist := 0.25
	a := AnalyzedRecord{
		Record: rec,
		Issues: []Issue{
			{Kind: IssueTotalMismatch, Message: "first"},
			{Kind: IssueSuspectedSwitch, Message: "second"},
		},
		Distance: &dist,
	}

	assert.Equal(t, []string{"first", "second"}, a.IssueMessages())
	assert.Equal(t, "first", a.Issues[0].String())

	pct, ok := a.ValidPercent()
	require.True(t, ok)
	assert.InDelta(t, 80.0, pct, 1e-12)

	assert.Empty(t, AnalyzedRecord{Record: rec}.IssueMessages())
}
