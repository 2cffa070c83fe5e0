package dca

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HHHHao-s/Strategy/fetcher"
	"github.com/HHHHao-s/Strategy/trading"
)

// Plan 一次定投模拟：多个标的共用同一时间窗口、周期与每期金额
type Plan struct {
	Tickers  []string         `json:"tickers"`
	Start    time.Time        `json:"start"`
	End      time.Time        `json:"end"`
	Interval trading.Interval `json:"interval"`
	Amount   float64          `json:"amount"`
}

type Result struct {
	Ticker string  `json:"ticker"`
	Table  *Table  `json:"table,omitempty"`
	ROI    float64 `json:"roi,omitempty"`
	Error  string  `json:"error,omitempty"`
}

type Report struct {
	Plan    Plan     `json:"plan"`
	Results []Result `json:"results"`
	Errors  []string `json:"errors,omitempty"`
}

// OK 返回成功的结果
func (r *Report) OK() []Result {
	out := make([]Result, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Table != nil {
			out = append(out, res)
		}
	}
	return out
}

type Runner struct {
	source fetcher.Source
}

func NewRunner(src fetcher.Source) *Runner {
	return &Runner{source: src}
}

// TableName 形如 "2015-01-01-2024-01-01 QQQ 1mo"
func TableName(p Plan, ticker string) string {
	return fmt.Sprintf("%s-%s %s %s", p.Start.Format(dateLayout), p.End.Format(dateLayout), ticker, p.Interval)
}

// Run 逐个标的拉取行情并模拟定投。单个标的失败只记录在 Errors 中，
// 只有计划本身无效或 ctx 取消时返回 error。
func (r *Runner) Run(ctx context.Context, p Plan) (*Report, error) {
	if r == nil || r.source == nil {
		return nil, errors.New("dca: nil source")
	}
	if p.Interval == "" {
		p.Interval = trading.Monthly
	}
	if !p.Interval.Valid() {
		return nil, fmt.Errorf("dca: invalid interval %q", p.Interval)
	}
	if !(p.Amount > 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidAmount, p.Amount)
	}
	if !p.End.IsZero() && !p.End.After(p.Start) {
		return nil, fmt.Errorf("dca: end %s must be after start %s", p.End.Format(dateLayout), p.Start.Format(dateLayout))
	}

	rep := &Report{Plan: p}
	for _, raw := range p.Tickers {
		ticker := strings.TrimSpace(raw)
		if ticker == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res := Result{Ticker: ticker}
		tab, err := r.runOne(ctx, p, ticker)
		if err != nil {
			res.Error = err.Error()
			rep.Errors = append(rep.Errors, ticker+": "+err.Error())
		} else {
			res.Table = tab
			res.ROI = tab.ROI()
		}
		rep.Results = append(rep.Results, res)
	}
	if len(rep.Results) == 0 {
		return nil, errors.New("dca: no tickers")
	}
	return rep, nil
}

func (r *Runner) runOne(ctx context.Context, p Plan, ticker string) (*Table, error) {
	klines, err := r.source.FetchKLines(ctx, ticker, fetcher.Query{Start: p.Start, End: p.End, Interval: p.Interval})
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	// 周期内的未收盘 K 线（如当月实时）并入同一周期
	klines = fetcher.Resample(klines, p.Interval)

	series := make([]Sample, 0, len(klines))
	for _, k := range klines {
		series = append(series, Sample{Time: k.Time, Price: k.Close})
	}
	tab, err := Accumulate(series, p.Amount)
	if err != nil {
		return nil, err
	}
	tab.Name = TableName(p, ticker)
	tab.Symbol = ticker
	return tab, nil
}
