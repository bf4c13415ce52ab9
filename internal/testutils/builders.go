// Package testutils provides builders and in-memory collaborators for
// exercising the tally pipeline without files or network access.
package testutils

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tally/internal/domain"
)

// MustRegistry builds a registry from alternating name, code pairs and
// fails the test on error.
//
//	reg := testutils.MustRegistry(t, "Likud", "מחל", "Labor", "אמת")
func MustRegistry(t testing.TB, nameCodePairs ...string) *domain.PartyRegistry {
	t.Helper()
	require.Zero(t, len(nameCodePairs)%2, "registry needs name, code pairs")

	parties := make([]domain.Party, 0, len(nameCodePairs)/2)
	for i := 0; i < len(nameCodePairs); i += 2 {
		parties = append(parties, domain.Party{Name: nameCodePairs[i], Code: nameCodePairs[i+1]})
	}
	reg, err := domain.NewPartyRegistry(parties)
	require.NoError(t, err)
	return reg
}

// BallotBuilder assembles a BallotRecord. By default the counts are
// consistent: valid equals the party sum, total equals valid, nothing is
// disqualified and the suffrage size is twice the total.
type BallotBuilder struct {
	label    domain.Label
	votes    map[string]int
	suffrage *int
	total    *int
	disq     *int
	valid    *int
}

// Ballot starts a builder for one ballot box.
func Ballot(settlement, symbol, box string) *BallotBuilder {
	return &BallotBuilder{
		label: domain.Label{Settlement: settlement, Symbol: symbol, BallotBox: box},
		votes: map[string]int{},
	}
}

// Vote sets the votes for a party code.
func (b *BallotBuilder) Vote(code string, n int) *BallotBuilder {
	b.votes[code] = n
	return b
}

// Votes sets several party votes at once.
func (b *BallotBuilder) Votes(votes map[string]int) *BallotBuilder {
	for code, n := range votes {
		b.votes[code] = n
	}
	return b
}

// Suffrage overrides the eligible voter count.
func (b *BallotBuilder) Suffrage(n int) *BallotBuilder { b.suffrage = &n; return b }

// Total overrides the votes cast.
func (b *BallotBuilder) Total(n int) *BallotBuilder { b.total = &n; return b }

// Disqualified overrides the disqualified votes.
func (b *BallotBuilder) Disqualified(n int) *BallotBuilder { b.disq = &n; return b }

// Valid overrides the valid votes.
func (b *BallotBuilder) Valid(n int) *BallotBuilder { b.valid = &n; return b }

// Build returns the record.
func (b *BallotBuilder) Build() domain.BallotRecord {
	sum := 0
	for _, n := range b.votes {
		sum += n
	}
	c := domain.Counts{Valid: sum}
	if b.valid != nil {
		c.Valid = *b.valid
	}
	if b.disq != nil {
		c.Disqualified = *b.disq
	}
	c.Total = c.Valid + c.Disqualified
	if b.total != nil {
		c.Total = *b.total
	}
	c.Suffrage = 2 * c.Total
	if b.suffrage != nil {
		c.Suffrage = *b.suffrage
	}
	return domain.NewBallotRecord(b.label, c, b.votes)
}
