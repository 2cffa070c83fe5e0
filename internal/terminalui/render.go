package terminalui

import (
	"fmt"
	"io"
	"strings"

	"github.com/HHHHao-s/Strategy/backtest"
	"github.com/HHHHao-s/Strategy/dca"
)

const (
	boxTop = "╔══════════════════════════════════════════════════════════════════════════╗"
	boxSep = "╠══════════════════════════════════════════════════════════════════════════╣"
	boxRow = "╟──────────────────────────────────────────────────────────────────────────╢"
	boxEnd = "╚══════════════════════════════════════════════════════════════════════════╝"
)

// Options 终端输出选项
type Options struct {
	// Color 是否输出 ANSI 颜色（写文件或管道时关闭）
	Color bool
}

// RenderDCA 定投模拟汇总：每个标的一行，最后一期的份额、成本、市值与 ROI
func RenderDCA(w io.Writer, rep *dca.Report, opt Options) {
	p := rep.Plan
	fmt.Fprintln(w, boxTop)
	fmt.Fprintf(w, "║  定投模拟  %s ~ %s  周期 %-4s  每期 %-12s          ║\n",
		p.Start.Format("2006-01-02"), p.End.Format("2006-01-02"), p.Interval, fmt.Sprintf("%.2f", p.Amount))
	fmt.Fprintln(w, boxSep)
	fmt.Fprintln(w, "║  标的       期数   总份额         总成本         市值          ROI    ║")
	fmt.Fprintln(w, boxRow)

	for _, res := range rep.Results {
		if res.Table == nil {
			fmt.Fprintf(w, "║  %-10s %s ║\n", truncate(res.Ticker, 10), padRight(truncate("失败: "+res.Error, 58), 58))
			continue
		}
		last := res.Table.Last()
		color, reset := colorByChange(last.ReturnRatio, opt)
		fmt.Fprintf(w, "║  %-10s %4d  %12.4f  %13.2f  %13.2f  %s%6.2f%s  ║\n",
			truncate(res.Ticker, 10), len(res.Table.Rows), last.TotalShares, last.Cost, last.TotalValue,
			color, res.ROI, reset)
	}
	fmt.Fprintln(w, boxEnd)
}

// RenderBacktest 回测结果汇总
func RenderBacktest(w io.Writer, results []backtest.Result, opt Options) {
	fmt.Fprintln(w, boxTop)
	fmt.Fprintln(w, "║  标的       策略                 收益%    回撤%    胜率%  交易   夏普   ║")
	fmt.Fprintln(w, boxRow)
	for _, r := range results {
		if len(r.Errors) > 0 {
			fmt.Fprintf(w, "║  %-10s %s ║\n", truncate(r.Symbol, 10), padRight(truncate("失败: "+strings.Join(r.Errors, " | "), 58), 58))
			continue
		}
		color, reset := colorByChange(r.TotalReturnPct, opt)
		fmt.Fprintf(w, "║  %-10s %-18s %s%8.2f%s %8.2f %8.2f %5d %7.2f  ║\n",
			truncate(r.Symbol, 10), truncate(r.Strategy, 18),
			color, r.TotalReturnPct, reset, r.MaxDDPct, r.WinRatePct, r.TotalTrades, r.Sharpe)
	}
	fmt.Fprintln(w, boxEnd)
}

// RenderScan 最新信号扫描
func RenderScan(w io.Writer, results []backtest.ScanResult, opt Options) {
	fmt.Fprintln(w, boxTop)
	fmt.Fprintln(w, "║  标的       日期         收盘      持仓    入场价     止损     下一步  ║")
	fmt.Fprintln(w, boxRow)
	for _, r := range results {
		if len(r.Errors) > 0 {
			fmt.Fprintf(w, "║  %-10s %s ║\n", truncate(r.Symbol, 10), padRight(truncate("失败: "+strings.Join(r.Errors, " | "), 58), 58))
			continue
		}
		action := string(r.NextAction)
		if action == "" {
			action = "-"
		}
		color, reset := "", ""
		if r.NextAction != "" && opt.Color {
			color, reset = "\033[33m", "\033[0m"
		}
		fmt.Fprintf(w, "║  %-10s %-10s %9.2f  %-6s %9s %9s  %s%-7s%s ║\n",
			truncate(r.Symbol, 10), r.LastDate, r.LastClose, r.PositionSide,
			priceOrDash(r.EntryPrice), priceOrDash(r.Stop), color, action, reset)
	}
	fmt.Fprintln(w, boxEnd)
}

// RenderRotation 轮动结果与换仓记录
func RenderRotation(w io.Writer, res *backtest.RotationResult, opt Options) {
	color, reset := colorByChange(res.TotalReturnPct, opt)
	fmt.Fprintln(w, boxTop)
	fmt.Fprintf(w, "║  轮动 %s / %s  %s ~ %s\n", res.Primary, res.Fallback, res.StartDate, res.EndDate)
	fmt.Fprintf(w, "║  最终权益 %.2f  收益 %s%.2f%%%s  回撤 %.2f%%  夏普 %.2f  当前持有 %s\n",
		res.FinalEquity, color, res.TotalReturnPct, reset, res.MaxDDPct, res.Sharpe, res.Holding)
	fmt.Fprintln(w, boxRow)
	for _, s := range res.Switches {
		from := s.From
		if from == "" {
			from = "现金"
		}
		j := "-"
		if s.J != nil {
			j = fmt.Sprintf("%.2f", *s.J)
		}
		fmt.Fprintf(w, "║  %s  %s -> %s  (%s, J=%s)\n", s.Time, from, s.To, s.Reason, j)
	}
	fmt.Fprintln(w, boxEnd)
}

// colorByChange 红涨绿跌
func colorByChange(change float64, opt Options) (string, string) {
	if !opt.Color {
		return "", ""
	}
	if change > 0 {
		return "\033[31m", "\033[0m"
	}
	if change < 0 {
		return "\033[32m", "\033[0m"
	}
	return "\033[37m", "\033[0m"
}

func priceOrDash(p float64) string {
	if p <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", p)
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return s
}

func padRight(s string, n int) string {
	if l := len([]rune(s)); l < n {
		return s + strings.Repeat(" ", n-l)
	}
	return s
}
