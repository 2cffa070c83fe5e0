package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/HHHHao-s/Strategy/trading"
)

const sampleCSV = `date,open,high,low,close,volume
20240102,10,11,9,10.5,100
20240103,10.5,12,10,11.5,200
20240201,11.5,12,11,11,150
20240205,11,13,10.5,12.5,50.7
`

func TestCSVSourceRead(t *testing.T) {
	s := &CSVSource{}
	klines, err := s.Read(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, klines, 4)

	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, trading.CST), klines[0].Time)
	assert.Equal(t, 10.5, klines[0].Close)
	assert.Equal(t, int64(50), klines[3].Volume)
}

func TestCSVSourceRejectsMalformedDate(t *testing.T) {
	s := &CSVSource{}
	_, err := s.Read(strings.NewReader("20240102,10,11,9,10.5,100\n2024-01-03,10,11,9,10.5,100\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedCSV)
	assert.Contains(t, err.Error(), "line 2")
}

func TestCSVSourceRejectsShortRow(t *testing.T) {
	s := &CSVSource{}
	_, err := s.Read(strings.NewReader("20240102,10,11,9\n"))
	assert.ErrorIs(t, err, ErrMalformedCSV)
}

func TestCSVSourceGBK(t *testing.T) {
	raw, err := simplifiedchinese.GBK.NewEncoder().String("日期,开盘,最高,最低,收盘,成交量\n20240102,10,11,9,10.5,100\n")
	require.NoError(t, err)

	s := &CSVSource{Encoding: "gbk"}
	klines, err := s.Read(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, klines, 1)
	assert.Equal(t, 10.5, klines[0].Close)
}

func TestCSVSourceFetchMonthly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "QQQ.csv"), []byte(sampleCSV), 0o644))

	s := &CSVSource{Dir: dir}
	klines, err := s.FetchKLines(context.Background(), "QQQ", Query{Interval: trading.Monthly})
	require.NoError(t, err)
	require.Len(t, klines, 2)

	jan := klines[0]
	assert.Equal(t, 10.0, jan.Open)
	assert.Equal(t, 12.0, jan.High)
	assert.Equal(t, 9.0, jan.Low)
	assert.Equal(t, 11.5, jan.Close)
	assert.Equal(t, int64(300), jan.Volume)
	assert.Equal(t, 12.5, klines[1].Close)
}

func TestCSVSourceFetchRange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "QQQ.csv"), []byte(sampleCSV), 0o644))

	s := &CSVSource{Dir: dir}
	klines, err := s.FetchKLines(context.Background(), "QQQ", Query{
		Start: time.Date(2024, 1, 3, 0, 0, 0, 0, trading.CST),
		End:   time.Date(2024, 2, 5, 0, 0, 0, 0, trading.CST),
	})
	require.NoError(t, err)
	require.Len(t, klines, 2)
	assert.Equal(t, 11.5, klines[0].Close)
	assert.Equal(t, 11.0, klines[1].Close)
}

func TestNewSource(t *testing.T) {
	s, err := NewSource("csv", "data", "", "gbk")
	require.NoError(t, err)
	assert.IsType(t, &CSVSource{}, s)

	_, err = NewSource("bloomberg", "", "", "")
	assert.Error(t, err)
}
