package dca

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HHHHao-s/Strategy/fetcher"
	"github.com/HHHHao-s/Strategy/trading"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource map[string][]fetcher.KLine

func (f fakeSource) FetchKLines(_ context.Context, symbol string, _ fetcher.Query) ([]fetcher.KLine, error) {
	k, ok := f[symbol]
	if !ok {
		return nil, errors.New("no data")
	}
	return k, nil
}

func dailyBars(start time.Time, closes ...float64) []fetcher.KLine {
	out := make([]fetcher.KLine, len(closes))
	for i, c := range closes {
		out[i] = fetcher.KLine{Time: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	return out
}

func testPlan(tickers ...string) Plan {
	return Plan{
		Tickers:  tickers,
		Start:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		Interval: trading.Monthly,
		Amount:   100,
	}
}

func TestRunnerRun(t *testing.T) {
	src := fakeSource{
		// 1/30, 1/31 同属一月，重采样后取月末收盘 20
		"QQQ": append(dailyBars(time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC), 10, 20),
			dailyBars(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 40)...),
	}
	rep, err := NewRunner(src).Run(context.Background(), testPlan("QQQ", " ", "MISSING"))
	require.NoError(t, err)
	require.Len(t, rep.Results, 2)
	require.Len(t, rep.Errors, 1)
	assert.Contains(t, rep.Errors[0], "MISSING")

	ok := rep.OK()
	require.Len(t, ok, 1)
	tab := ok[0].Table
	assert.Equal(t, "2024-01-01-2024-04-01 QQQ 1mo", tab.Name)
	require.Len(t, tab.Rows, 2)
	assert.Equal(t, 20.0, tab.Rows[0].Price)
	assert.Equal(t, 7.5, tab.Last().TotalShares)
	assert.Equal(t, 1.5, ok[0].ROI)
}

func TestRunnerRejectsBadPlan(t *testing.T) {
	r := NewRunner(fakeSource{})

	p := testPlan("QQQ")
	p.Amount = 0
	_, err := r.Run(context.Background(), p)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	p = testPlan("QQQ")
	p.Interval = "5m"
	_, err = r.Run(context.Background(), p)
	assert.Error(t, err)

	p = testPlan()
	_, err = r.Run(context.Background(), p)
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	src := fakeSource{
		"QQQ": dailyBars(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 10),
		"VOO": dailyBars(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 20),
	}
	src["QQQ"] = append(src["QQQ"], dailyBars(time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), 12)...)
	src["VOO"] = append(src["VOO"], dailyBars(time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), 18)...)

	rep, err := NewRunner(src).Run(context.Background(), testPlan("QQQ", "VOO"))
	require.NoError(t, err)

	dir := t.TempDir()
	paths, err := Export(rep, dir, true)
	require.NoError(t, err)

	want := []string{
		"report.json",
		"2024-01-01-2024-04-01_QQQ_1mo.csv",
		"2024-01-01-2024-04-01_QQQ_1mo.svg",
		"2024-01-01-2024-04-01_VOO_1mo.csv",
		"2024-01-01-2024-04-01_VOO_1mo.svg",
		"combined.svg",
	}
	require.Len(t, paths, len(want))
	for i, name := range want {
		assert.Equal(t, filepath.Join(dir, name), paths[i])
		_, err := os.Stat(paths[i])
		assert.NoError(t, err)
	}
}
