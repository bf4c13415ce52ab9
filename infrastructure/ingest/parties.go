package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"

	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

// Party registry column headers.
const (
	PartyNameColumn = "Party"
	PartyCodeColumn = "Ballot"
)

var _ ports.PartySource = (*CSVPartySource)(nil)

// CSVPartySource reads the party registry from a UTF-8 CSV file with a
// "Party" (display name) and a "Ballot" (letter code) column. Other columns
// are ignored.
type CSVPartySource struct {
	path   string
	logger *slog.Logger
}

// NewCSVPartySource returns a source reading path. A nil logger uses
// slog.Default().
func NewCSVPartySource(path string, logger *slog.Logger) *CSVPartySource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVPartySource{path: path, logger: logger}
}

// Parties reads the registry file in file order.
func (s *CSVPartySource) Parties(ctx context.Context) ([]domain.Party, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open party registry: %w", err)
	}
	defer f.Close()

	parties, err := ReadParties(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read party registry %s: %w", s.path, err)
	}
	s.logger.Debug("party registry read", "path", s.path, "parties", len(parties))
	return parties, nil
}

// ReadParties parses a party registry CSV from r. Blank lines are skipped;
// a row with an empty name or code is returned as is and rejected later by
// domain.NewPartyRegistry.
func ReadParties(r io.Reader) ([]domain.Party, error) {
	cr := csv.NewReader(decodingReader(r, unicode.UTF8))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s", ports.ErrMissingColumn, PartyNameColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := headerIndex(header)
	nameIdx, ok := cols[PartyNameColumn]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrMissingColumn, PartyNameColumn)
	}
	codeIdx, ok := cols[PartyCodeColumn]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrMissingColumn, PartyCodeColumn)
	}

	var parties []domain.Party
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", row, err)
		}
		if blank(rec) {
			continue
		}
		parties = append(parties, domain.Party{
			Name: cell(rec, nameIdx),
			Code: norm.NFC.String(cell(rec, codeIdx)),
		})
	}
	return parties, nil
}

// cell returns the trimmed field at i, or "" for a short row.
func cell(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
