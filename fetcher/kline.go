package fetcher

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/HHHHao-s/Strategy/trading"
)

// KLine K线数据
type KLine struct {
	Time   time.Time `json:"time"`   // 日期
	Open   float64   `json:"open"`   // 开盘价
	High   float64   `json:"high"`   // 最高价
	Low    float64   `json:"low"`    // 最低价
	Close  float64   `json:"close"`  // 收盘价
	Volume int64     `json:"volume"` // 成交量
}

// Query 拉取条件；Start/End 为零值时表示不限制
type Query struct {
	Start    time.Time
	End      time.Time
	Interval trading.Interval
	// Limit 最多返回最近 N 根（0 表示不限制）
	Limit int
}

// Source 历史行情数据源
type Source interface {
	FetchKLines(ctx context.Context, symbol string, q Query) ([]KLine, error)
}

// NewSource 按名称创建数据源: yahoo | eastmoney | csv
func NewSource(name, csvDir, csvDateLayout, csvEncoding string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "yahoo":
		return NewYahooSource(), nil
	case "eastmoney":
		return NewEastmoneySource(), nil
	case "csv":
		return &CSVSource{Dir: csvDir, DateLayout: csvDateLayout, Encoding: csvEncoding}, nil
	}
	return nil, fmt.Errorf("unknown data source: %s", name)
}

// Resample 将日K聚合为周K/月K（开=首开，高=最高，低=最低，收=末收，量=累加），
// 时间取周期内第一根。输入需按时间升序。
func Resample(klines []KLine, iv trading.Interval) []KLine {
	if iv == trading.Daily || iv == "" || len(klines) == 0 {
		return klines
	}
	times := make([]time.Time, len(klines))
	for i, k := range klines {
		times[i] = k.Time
	}
	starts := trading.FirstOfPeriod(times, iv)

	out := make([]KLine, 0, len(starts))
	for n, s := range starts {
		e := len(klines)
		if n+1 < len(starts) {
			e = starts[n+1]
		}
		agg := klines[s]
		for _, k := range klines[s+1 : e] {
			if k.High > agg.High {
				agg.High = k.High
			}
			if k.Low < agg.Low {
				agg.Low = k.Low
			}
			agg.Close = k.Close
			agg.Volume += k.Volume
		}
		out = append(out, agg)
	}
	return out
}

// filterRange 按 Query 截取 [Start, End) 并保留最近 Limit 根。
// 按各自时区的日历日期比较，行情时间与配置时间可以不在同一时区。
func filterRange(klines []KLine, q Query) []KLine {
	sort.SliceStable(klines, func(i, j int) bool { return klines[i].Time.Before(klines[j].Time) })
	start, end := calendarDay(q.Start), calendarDay(q.End)
	out := klines[:0]
	for _, k := range klines {
		d := calendarDay(k.Time)
		if !q.Start.IsZero() && d.Before(start) {
			continue
		}
		if !q.End.IsZero() && !d.Before(end) {
			continue
		}
		out = append(out, k)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
