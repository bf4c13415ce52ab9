package domain

// IssueKind classifies an advisory finding.
type IssueKind string

// Issue kinds raised by the detectors.
const (
	// IssueTurnoutExceedsSuffrage: more votes cast than eligible voters.
	IssueTurnoutExceedsSuffrage IssueKind = "turnout_exceeds_suffrage"

	// IssueTotalMismatch: total votes differ from valid plus disqualified.
	IssueTotalMismatch IssueKind = "total_mismatch"

	// IssuePartySumMismatch: per-party votes do not add up to valid votes.
	IssuePartySumMismatch IssueKind = "party_sum_mismatch"

	// IssueSuspectedSwitch: a nationally fringe party dominates the box
	// while a nationally major party is near-absent.
	IssueSuspectedSwitch IssueKind = "suspected_switch"

	// IssueSettlementKeyMismatch: the box's party key set differs from its
	// settlement aggregate, so its distance was computed with zero shares.
	IssueSettlementKeyMismatch IssueKind = "settlement_key_mismatch"
)

// Issue is one advisory finding against a ballot record. Issues never stop
// a run; they are listed in the report.
type Issue struct {
	// Kind classifies the finding for metrics and filtering.
	Kind IssueKind `json:"kind"`

	// Message is the operator-facing description.
	Message string `json:"message"`
}

// String returns the issue message.
func (i Issue) String() string { return i.Message }

// AnalyzedRecord pairs a ballot record with everything the detectors
// derived for it. It is assembled once and not modified afterwards.
type AnalyzedRecord struct {
	// Record is the analyzed ballot box or aggregate.
	Record BallotRecord `json:"-"`

	// Issues lists findings in detection order. Empty means clean.
	Issues []Issue `json:"issues,omitempty"`

	// Distance is the squared distance from the settlement aggregate. Nil
	// when the settlement had too few boxes to be scored.
	Distance *float64 `json:"distance,omitempty"`
}

// ValidPercent returns the record's valid-vote percentage.
func (a AnalyzedRecord) ValidPercent() (float64, bool) { return a.Record.ValidPercent() }

// IssueMessages returns the issue messages in order.
func (a AnalyzedRecord) IssueMessages() []string {
	out := make([]string, len(a.Issues))
	for i, issue := range a.Issues {
		out[i] = issue.Message
	}
	return out
}

// SettlementGroup lists the positions of records sharing a settlement symbol.
type SettlementGroup struct {
	// Symbol is the shared settlement symbol.
	Symbol string

	// Indices are positions in the original record slice, in input order.
	Indices []int
}

// GroupBySettlement groups records by settlement symbol. Groups are ordered
// by the first appearance of their symbol.
func GroupBySettlement(records []BallotRecord) []SettlementGroup {
	pos := make(map[string]int)
	var groups []SettlementGroup
	for i, r := range records {
		j, ok := pos[r.label.Symbol]
		if !ok {
			j = len(groups)
			pos[r.label.Symbol] = j
			groups = append(groups, SettlementGroup{Symbol: r.label.Symbol})
		}
		groups[j].Indices = append(groups[j].Indices, i)
	}
	return groups
}
