package application

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ahrav/go-tally/infrastructure/middleware"
	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

const (
	issueRule = "***********************************************"
	votesRule = "========================"
)

// Console formats operator summaries and sends them line by line to a
// diagnostics sink. Counts are printed with thousands separators.
type Console struct {
	diag     ports.Diagnostics
	registry *domain.PartyRegistry
	printer  *message.Printer
}

// NewConsole returns a Console writing to diag. A nil diag discards output.
func NewConsole(diag ports.Diagnostics, registry *domain.PartyRegistry) *Console {
	if diag == nil {
		diag = middleware.Discard
	}
	return &Console{
		diag:     diag,
		registry: registry,
		printer:  message.NewPrinter(language.English),
	}
}

func (c *Console) emitf(format string, args ...any) {
	c.diag.Emit(c.printer.Sprintf(format, args...))
}

// Parties prints the party manifest in registry order.
func (c *Console) Parties() {
	c.emitf("Our %d Parties are:", c.registry.Len())
	for _, p := range c.registry.Parties() {
		c.emitf("%s (%s)", p.Name, p.Code)
	}
}

// BallotCount prints how many ballot boxes were read.
func (c *Console) BallotCount(n int) {
	c.diag.Emit("")
	c.emitf("Ballots size: %d", n)
}

// Record prints a record's counts followed by its votes per party, largest
// first.
func (c *Console) Record(rec domain.BallotRecord) {
	label := rec.Label()
	n := rec.Counts()
	c.emitf("%-20s: %s (%s)", "Settlement", label.Settlement, label.Symbol)
	c.emitf("%-20s: %s", "Ballot", label.BallotBox)
	c.emitf("%-20s: %d", "Suffrage Size", n.Suffrage)
	c.emitf("%-20s: %d", "Total Votes", n.Total)
	c.emitf("%-20s: %d", "Disqualified Votes", n.Disqualified)
	c.emitf("%-20s: %d", "Valid Votes", n.Valid)
	c.diag.Emit("Votes by party:")
	c.diag.Emit(votesRule)

	votes := rec.Votes()
	codes := rec.PartyCodes()
	slices.SortStableFunc(codes, func(a, b string) int { return cmp.Compare(votes[b], votes[a]) })
	for _, code := range codes {
		c.diag.Emit(strings.TrimRight(c.printer.Sprintf("%-30s: %-12d", c.registry.Name(code), votes[code]), " "))
	}
}

// Issues prints the issue block for one record.
func (c *Console) Issues(rec domain.BallotRecord, issues []domain.Issue) {
	label := rec.Label()
	c.diag.Emit(issueRule)
	c.emitf("Issues in ballot %s (%s)", label.BallotBox, label.Settlement)
	for _, issue := range issues {
		c.diag.Emit(issue.Message)
	}
}

// SavingReport announces the report write.
func (c *Console) SavingReport(destination string) {
	c.emitf("Saving report to %s", destination)
}
