package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/unicode/norm"

	"github.com/ahrav/go-tally/infrastructure/middleware"
	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

// FixedColumns is the number of leading ballot columns that are not party
// votes: settlement name, settlement symbol, ballot-box id, suffrage size,
// total votes, disqualified votes, valid votes.
const FixedColumns = 7

// Positions of the fixed ballot columns.
const (
	colSettlement = iota
	colSymbol
	colBallotBox
	colSuffrage
	colTotal
	colDisqualified
	colValid
)

// errNegative is the parse cause for a count below zero.
var errNegative = errors.New("negative count")

var _ ports.BallotSource = (*CSVBallotSource)(nil)

// CSVBallotSource reads ballot-box tallies from a CSV export. Columns
// 0 to 6 are the fixed fields; every later column is headed by a party
// letter code.
type CSVBallotSource struct {
	path     string
	encoding string
	logger   *slog.Logger
	metrics  ports.MetricsCollector
}

// NewCSVBallotSource returns a source reading path in the named encoding
// ("" means DefaultEncoding). It fails with ports.ErrUnsupportedEncoding
// for an unknown encoding. logger and metrics may be nil.
func NewCSVBallotSource(path, encodingName string, logger *slog.Logger, metrics ports.MetricsCollector) (*CSVBallotSource, error) {
	if _, err := lookupEncoding(encodingName); err != nil {
		return nil, err
	}
	if encodingName == "" {
		encodingName = DefaultEncoding
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = middleware.NopMetrics{}
	}
	return &CSVBallotSource{path: path, encoding: encodingName, logger: logger, metrics: metrics}, nil
}

// Ballots reads every ballot row. The header is checked against registry
// before any row is parsed.
func (s *CSVBallotSource) Ballots(ctx context.Context, registry *domain.PartyRegistry) ([]domain.BallotRecord, error) {
	start := time.Now()
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ballot data: %w", err)
	}
	defer f.Close()

	reader := &BallotReader{Encoding: s.encoding, Registry: registry, Logger: s.logger}
	records, err := reader.Read(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to read ballot data %s: %w", s.path, err)
	}

	labels := map[string]string{"unit": "csv-ballots", "source": "ballots"}
	s.metrics.RecordCounter("records_total", float64(len(records)), labels)
	s.metrics.RecordLatency("read_ballots", time.Since(start), labels)
	s.logger.Info("ballot data read",
		"path", s.path,
		"encoding", s.encoding,
		"records", len(records),
		"duration", time.Since(start),
	)
	return records, nil
}

// BallotReader parses ballot CSV data against a party registry.
type BallotReader struct {
	// Encoding names the input text encoding; "" means DefaultEncoding.
	Encoding string

	// Registry resolves the party columns. Required.
	Registry *domain.PartyRegistry

	// Logger receives warnings about skipped or absent columns. Nil uses
	// slog.Default().
	Logger *slog.Logger
}

// partyColumn binds a CSV column to a letter code.
type partyColumn struct {
	index int
	code  string
}

// Read parses all rows from r. Every record carries a vote entry for every
// registry party; parties with no column get 0.
func (br *BallotReader) Read(ctx context.Context, r io.Reader) ([]domain.BallotRecord, error) {
	if br.Registry == nil {
		return nil, errors.New("ballot reader requires a party registry")
	}
	logger := br.Logger
	if logger == nil {
		logger = slog.Default()
	}
	enc, err := lookupEncoding(br.Encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(decodingReader(r, enc))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty ballot file", ports.ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	header = normalizeHeader(header)

	columns, err := br.partyColumns(header, logger)
	if err != nil {
		return nil, err
	}
	absent := br.absentParties(columns)
	if len(absent) > 0 {
		logger.Warn("registry parties missing from ballot data, counting as 0", "parties", absent)
	}

	var records []domain.BallotRecord
	for row := 1; ; row++ {
		if row%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
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

		record, err := parseRow(row, header, rec, columns, absent)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, ctx.Err()
}

// partyColumns maps every non-fixed header to a registry party. An unknown
// letter code fails with a *domain.MissingPartyError carrying the closest
// registered code as a suggestion.
func (br *BallotReader) partyColumns(header []string, logger *slog.Logger) ([]partyColumn, error) {
	if len(header) < FixedColumns {
		return nil, fmt.Errorf("%w: header has %d columns, need at least %d",
			ports.ErrMissingColumn, len(header), FixedColumns)
	}

	var (
		columns []partyColumn
		codes   []string
		seen    = make(map[string]int)
	)
	for i := FixedColumns; i < len(header); i++ {
		code := header[i]
		if code == "" {
			logger.Warn("skipping ballot column with empty header", "column", i)
			continue
		}
		if prev, dup := seen[code]; dup {
			return nil, fmt.Errorf("%w: ballot columns %d and %d are both %q",
				domain.ErrDuplicateParty, prev, i, code)
		}
		seen[code] = i
		columns = append(columns, partyColumn{index: i, code: code})
		codes = append(codes, code)
	}

	if err := br.Registry.ValidateCoverage(codes); err != nil {
		var missing *domain.MissingPartyError
		if errors.As(err, &missing) {
			missing.Suggestion = suggestCode(missing.Code, br.Registry.Codes())
		}
		return nil, err
	}
	return columns, nil
}

// absentParties lists registry codes that have no column, in registry order.
func (br *BallotReader) absentParties(columns []partyColumn) []string {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c.code] = true
	}
	var absent []string
	for _, code := range br.Registry.Codes() {
		if !present[code] {
			absent = append(absent, code)
		}
	}
	return absent
}

func parseRow(row int, header, rec []string, columns []partyColumn, absent []string) (domain.BallotRecord, error) {
	var counts [4]int
	for i, col := range []int{colSuffrage, colTotal, colDisqualified, colValid} {
		n, err := parseCount(row, header[col], cell(rec, col))
		if err != nil {
			return domain.BallotRecord{}, err
		}
		counts[i] = n
	}

	votes := make(map[string]int, len(columns)+len(absent))
	for _, c := range columns {
		n, err := parseCount(row, c.code, cell(rec, c.index))
		if err != nil {
			return domain.BallotRecord{}, err
		}
		votes[c.code] = n
	}
	for _, code := range absent {
		votes[code] = 0
	}

	label := domain.Label{
		Settlement: cell(rec, colSettlement),
		Symbol:     cell(rec, colSymbol),
		BallotBox:  cell(rec, colBallotBox),
	}
	c := domain.Counts{Suffrage: counts[0], Total: counts[1], Disqualified: counts[2], Valid: counts[3]}
	return domain.NewBallotRecord(label, c, votes), nil
}

// parseCount parses a non-negative integer cell.
func parseCount(row int, column, value string) (int, error) {
	if value == "" {
		return 0, domain.NewFieldError(row, column, value, domain.ErrEmptyValue)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, domain.NewFieldError(row, column, value, err)
	}
	if n < 0 {
		return 0, domain.NewFieldError(row, column, value, errNegative)
	}
	return n, nil
}

// normalizeHeader trims header cells and puts them in NFC so that letter
// codes typed with combining marks compare equal to the registry's.
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = norm.NFC.String(strings.TrimSpace(h))
	}
	return out
}

// headerIndex maps each normalized header name to its first column.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range normalizeHeader(header) {
		if _, ok := idx[h]; !ok {
			idx[h] = i
		}
	}
	return idx
}

// suggestCode returns the registered code closest to code, or "" when
// nothing is close. A case-insensitive match always wins; otherwise the
// edit distance must be at most half the code's length.
func suggestCode(code string, registered []string) string {
	for _, c := range registered {
		if strings.EqualFold(c, code) {
			return c
		}
	}

	maxDist := utf8.RuneCountInString(code) / 2
	best, bestDist := "", maxDist+1
	for _, c := range registered {
		if d := levenshtein.ComputeDistance(code, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
