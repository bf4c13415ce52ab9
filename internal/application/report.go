package application

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/ahrav/go-tally/internal/domain"
)

// Fixed report columns, in order: settlement, symbol, ballot box, suffrage
// size, votes cast, disqualified votes, valid votes, invalid percentage,
// settlement distance, notes.
var fixedHeader = []string{
	"יישוב",
	"סמל",
	"קלפי",
	"בעלי זכות הצבעה",
	"הצביעו",
	"קולות פסולים",
	"קולות כשרים",
	"אחוז פסולים",
	"סכום מרחקים מממוצע היישוב",
	"הערות",
}

// PartyOrder returns the registry parties sorted by descending votes in
// national. Ties keep registry order.
func PartyOrder(registry *domain.PartyRegistry, national domain.BallotRecord) []domain.Party {
	parties := registry.Parties()
	slices.SortStableFunc(parties, func(a, b domain.Party) int {
		va, _ := national.VotesFor(a.Code)
		vb, _ := national.VotesFor(b.Code)
		return cmp.Compare(vb, va)
	})
	return parties
}

// AssembleReport lays the analysis out as a table: the header, the
// national row, then one row per record in input order.
func AssembleReport(analysis *Analysis) [][]string {
	rows := make([][]string, 0, len(analysis.Records)+2)
	rows = append(rows, reportHeader(analysis.PartyOrder))
	rows = append(rows, reportRow(domain.AnalyzedRecord{Record: analysis.National}, analysis.PartyOrder))
	for _, rec := range analysis.Records {
		rows = append(rows, reportRow(rec, analysis.PartyOrder))
	}
	return rows
}

func reportHeader(parties []domain.Party) []string {
	header := make([]string, 0, len(fixedHeader)+len(parties))
	header = append(header, fixedHeader...)
	for _, p := range parties {
		header = append(header, p.Name+" - "+p.Code)
	}
	return header
}

func reportRow(rec domain.AnalyzedRecord, parties []domain.Party) []string {
	label := rec.Record.Label()
	n := rec.Record.Counts()
	row := make([]string, 0, len(fixedHeader)+len(parties))
	row = append(row,
		label.Settlement,
		label.Symbol,
		label.BallotBox,
		strconv.Itoa(n.Suffrage),
		strconv.Itoa(n.Total),
		strconv.Itoa(n.Disqualified),
		strconv.Itoa(n.Valid),
		invalidPercent(rec),
		distanceCell(rec.Distance),
		strings.Join(rec.IssueMessages(), "\n"),
	)
	for _, p := range parties {
		v, _ := rec.Record.VotesFor(p.Code)
		row = append(row, strconv.Itoa(v))
	}
	return row
}

// invalidPercent is empty when no votes were cast.
func invalidPercent(rec domain.AnalyzedRecord) string {
	pct, ok := rec.ValidPercent()
	if !ok {
		return ""
	}
	return fmt.Sprintf("%.2f%%", 100-pct)
}

func distanceCell(d *float64) string {
	if d == nil {
		return ""
	}
	return strconv.FormatFloat(*d, 'f', 3, 64)
}
