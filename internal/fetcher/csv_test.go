package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamCSV_Basic(t *testing.T) {
	input := "HUC12, VALUE_11 ,VALUE_41\n0101,10,20\n0102,0,5\n"
	rows, err := Drain(StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{}))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"HUC12", "VALUE_11", "VALUE_41"}, rows[0])
	assert.Equal(t, []string{"0102", "0", "5"}, rows[2])
}

func TestStreamCSV_DelimiterAndComment(t *testing.T) {
	input := "# exported table\nID;AREA\nA;1.5\n"
	rows, err := Drain(StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: ';',
		Comment:   '#',
	}))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"ID", "AREA"}, {"A", "1.5"}}, rows)
}

func TestStreamCSV_VariableFields(t *testing.T) {
	rows, err := Drain(StreamCSV(context.Background(), strings.NewReader("a,b\n1\n"), CSVOptions{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, rows[1])
}

func TestStreamCSV_BadQuote(t *testing.T) {
	_, err := Drain(StreamCSV(context.Background(), strings.NewReader("a,\"b\n"), CSVOptions{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
}

func TestStreamCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Drain(StreamCSV(ctx, strings.NewReader("a\n1\n"), CSVOptions{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}

func TestStreamCSV_StripsBOM(t *testing.T) {
	input := "\ufeffHUC12,VALUE_41\n0101,20\n"
	rows, err := Drain(StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{}))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "HUC12", rows[0][0])
}
