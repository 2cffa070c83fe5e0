package dca

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	tab, err := Accumulate(monthly(10, 20), 100)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tab))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Price,Shares,Total Shares,Total Value,Spend,Cost,Return on Investment", lines[0])
	assert.Equal(t, "2020-01-01,10,10,10,100,100,100,0", lines[1])
	assert.Equal(t, "2020-02-01,20,5,15,300,100,200,0.5", lines[2])
}
