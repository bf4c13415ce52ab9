package report

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tally/internal/ports"
)

var sampleRows = [][]string{
	{"יישוב", "סמל", "קלפי", "הערות", "Likud - מחל"},
	{"*", "*", "*", "", "1200"},
	{"חיפה", "4000", "1", "Total by party != total (90 != 100)\nVoting over 100%. Suffrage size: 10 ; Total votes: 12", "90"},
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleRows))

	out := buf.Bytes()
	require.True(t, bytes.HasPrefix(out, utf8BOM), "report should start with the UTF-8 byte order mark")

	// Line breaks inside quoted cells are written as CRLF too.
	want := "יישוב,סמל,קלפי,הערות,Likud - מחל\r\n" +
		"*,*,*,,1200\r\n" +
		"חיפה,4000,1,\"Total by party != total (90 != 100)\r\nVoting over 100%. Suffrage size: 10 ; Total votes: 12\",90\r\n"
	assert.Equal(t, want, string(out[len(utf8BOM):]))
}

func TestEncode_Empty(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, Encode(&buf, nil), ports.ErrEmptyReport)
	assert.Zero(t, buf.Len())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestEncode_WriteFailure(t *testing.T) {
	err := Encode(failingWriter{}, sampleRows)
	assert.ErrorContains(t, err, "disk full")
}

func TestFileSink_WriteReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "analysis", "nested", "all_ballot_places.csv")
	sink := NewFileSink(path, nil)
	assert.Equal(t, path, sink.Destination())

	require.NoError(t, sink.WriteReport(context.Background(), sampleRows))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	expected, err := EncodeBytes(sampleRows)
	require.NoError(t, err)
	assert.Equal(t, expected, data)

	t.Run("replaces previous report", func(t *testing.T) {
		require.NoError(t, sink.WriteReport(context.Background(), sampleRows[:2]))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "חיפה")

		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		assert.Len(t, entries, 1, "temporary files should be cleaned up")
	})

	t.Run("empty report keeps previous file", func(t *testing.T) {
		err := sink.WriteReport(context.Background(), nil)

		var sinkErr *ports.SinkError
		require.ErrorAs(t, err, &sinkErr)
		assert.Equal(t, "encode", sinkErr.Operation)
		assert.ErrorIs(t, err, ports.ErrEmptyReport)
		_, statErr := os.Stat(path)
		assert.NoError(t, statErr)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, sink.WriteReport(ctx, sampleRows), context.Canceled)
	})
}

func TestFileSink_DefaultPath(t *testing.T) {
	assert.Equal(t, DefaultPath, NewFileSink("", nil).Destination())
}

func TestFileSink_ParentIsFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "analysis")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	err := NewFileSink(filepath.Join(blocker, "report.csv"), nil).WriteReport(context.Background(), sampleRows)

	var sinkErr *ports.SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, "mkdir", sinkErr.Operation)
}
