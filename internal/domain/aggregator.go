package domain

import (
	"regexp"
	"strings"
)

// Combine returns a new record whose counts are the field-wise sums of a and
// b and whose votes are the keyed union-sum of both vote maps. The label is
// carried from a unchanged, so a fold labels its result with the base
// record's label. Neither input is modified.
//
// Combine is associative, and commutative in everything but the label.
func Combine(a, b BallotRecord) BallotRecord {
	votes := make(map[string]int, max(len(a.votes), len(b.votes)))
	for code, v := range a.votes {
		votes[code] += v
	}
	for code, v := range b.votes {
		votes[code] += v
	}
	return newRecord(a.label, a.counts.Add(b.counts), votes)
}

// ZeroRecord returns an empty record carrying label, the identity element
// for Combine.
func ZeroRecord(label Label) BallotRecord {
	return newRecord(label, Counts{}, nil)
}

// Fold combines records into base from left to right.
func Fold(base BallotRecord, records []BallotRecord) BallotRecord {
	acc := base
	for _, r := range records {
		acc = Combine(acc, r)
	}
	return acc
}

// Total folds all records into a zero record labelled label.
func Total(label Label, records []BallotRecord) BallotRecord {
	return Fold(ZeroRecord(label), records)
}

// CountMatching folds the records that match both wildcard patterns into a
// zero record labelled label. An empty pattern disables that filter.
//
// Both patterns are tested against the ballot-box identifier. The historical
// report format was produced this way, so symbolPattern does not filter by
// settlement symbol; use it with "*" unless that behavior is wanted.
func CountMatching(records []BallotRecord, label Label, symbolPattern, boxPattern string) BallotRecord {
	symbolRe := compileWildcard(symbolPattern)
	boxRe := compileWildcard(boxPattern)

	matched := make([]BallotRecord, 0, len(records))
	for _, r := range records {
		if symbolRe != nil && !symbolRe.MatchString(r.label.BallotBox) {
			continue
		}
		if boxRe != nil && !boxRe.MatchString(r.label.BallotBox) {
			continue
		}
		matched = append(matched, r)
	}
	return Total(label, matched)
}

// compileWildcard translates a glob-style pattern into an anchored regular
// expression: '?' matches exactly one character and '*' any run, including
// an empty one. Everything else matches literally. Returns nil for "".
func compileWildcard(pattern string) *regexp.Regexp {
	if pattern == "" {
		return nil
	}
	var b strings.Builder
	b.WriteString(`^(?s:`)
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`)$`)
	return regexp.MustCompile(b.String())
}
