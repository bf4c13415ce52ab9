// Package domain contains pure, dependency-free domain models for ballot
// tally analysis: the party registry, ballot records, their aggregation and
// normalization, and the analyzed output rows.
package domain

import (
	"maps"
	"math"
	"slices"
)

// NationalLabel identifies the synthetic national total.
var NationalLabel = Label{Settlement: "*", Symbol: "*", BallotBox: "*"}

// Label identifies a ballot box, or names a synthetic aggregate.
type Label struct {
	// Settlement is the settlement's display name.
	Settlement string `json:"settlement"`

	// Symbol is the settlement's official symbol; records are grouped by it.
	Symbol string `json:"symbol"`

	// BallotBox is the ballot-box identifier within the settlement.
	BallotBox string `json:"ballot_box"`
}

// Counts holds the four integer tallies reported for a ballot box.
type Counts struct {
	// Suffrage is the number of eligible voters. Zero for boxes without a
	// registered roll, such as double-envelope boxes.
	Suffrage int `json:"suffrage"`

	// Total is the number of votes cast.
	Total int `json:"total"`

	// Disqualified is the number of disqualified slips.
	Disqualified int `json:"disqualified"`

	// Valid is the number of valid slips.
	Valid int `json:"valid"`
}

// Add returns the field-wise sum of c and o.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Suffrage:     c.Suffrage + o.Suffrage,
		Total:        c.Total + o.Total,
		Disqualified: c.Disqualified + o.Disqualified,
		Valid:        c.Valid + o.Valid,
	}
}

// BallotRecord is one ballot box's tally, or an aggregate of several boxes
// with the same shape. It is immutable: the vote map is copied on
// construction and never exposed, and the normalized vector is computed
// once.
type BallotRecord struct {
	label      Label
	counts     Counts
	votes      map[string]int
	partySum   int
	normalized map[string]float64
}

// NewBallotRecord creates a record from label, counts and per-party votes
// keyed by letter code. The votes map is copied.
func NewBallotRecord(label Label, counts Counts, votes map[string]int) BallotRecord {
	return newRecord(label, counts, maps.Clone(votes))
}

// newRecord takes ownership of votes.
func newRecord(label Label, counts Counts, votes map[string]int) BallotRecord {
	if votes == nil {
		votes = map[string]int{}
	}
	sum := 0
	for _, v := range votes {
		sum += v
	}
	return BallotRecord{
		label:      label,
		counts:     counts,
		votes:      votes,
		partySum:   sum,
		normalized: normalize(votes, sum),
	}
}

// Label returns the record's identifying label.
func (b BallotRecord) Label() Label { return b.label }

// Counts returns the record's four tallies.
func (b BallotRecord) Counts() Counts { return b.counts }

// Votes returns a copy of the per-party vote counts.
func (b BallotRecord) Votes() map[string]int { return maps.Clone(b.votes) }

// VotesFor returns the raw count for code and whether the record has it.
func (b BallotRecord) VotesFor(code string) (int, bool) {
	v, ok := b.votes[code]
	return v, ok
}

// PartyCodes returns the record's party codes, sorted.
func (b BallotRecord) PartyCodes() []string {
	return slices.Sorted(maps.Keys(b.votes))
}

// PartySum returns the sum of all per-party votes.
func (b BallotRecord) PartySum() int { return b.partySum }

// Normalized returns a copy of the normalized vote vector. It is empty when
// the party sum is zero; absent keys mean "undefined", never zero.
func (b BallotRecord) Normalized() map[string]float64 { return maps.Clone(b.normalized) }

// Share returns the normalized share for code. ok is false when the share
// is undefined.
func (b BallotRecord) Share(code string) (share float64, ok bool) {
	share, ok = b.normalized[code]
	return share, ok
}

// ValidPercent returns 100*valid/total. ok is false when no votes were cast.
func (b BallotRecord) ValidPercent() (pct float64, ok bool) {
	if b.counts.Total == 0 {
		return 0, false
	}
	return 100 * float64(b.counts.Valid) / float64(b.counts.Total), true
}

// Normalize returns each party's share of the summed votes. If the sum is
// zero the result is empty rather than zero-filled, so callers can tell an
// undefined share from a real zero.
func Normalize(votes map[string]int) map[string]float64 {
	sum := 0
	for _, v := range votes {
		sum += v
	}
	return normalize(votes, sum)
}

func normalize(votes map[string]int, sum int) map[string]float64 {
	out := make(map[string]float64, len(votes))
	if sum <= 0 {
		return out
	}
	total := float64(sum)
	for code, v := range votes {
		out[code] = float64(v) / total
	}
	return out
}

// SquaredDistance sums (point[k]-center[k])² over the keys of center.
// A key missing from point contributes as a zero share. keysMatch reports
// whether point and center have exactly the same key set; callers surface a
// mismatch as a diagnostic.
func SquaredDistance(point, center map[string]float64) (dist float64, keysMatch bool) {
	keysMatch = len(point) == len(center)
	for code, c := range center {
		p, ok := point[code]
		if !ok {
			keysMatch = false
		}
		dist += math.Pow(p-c, 2)
	}
	return dist, keysMatch
}
