package backtest

import "time"

type Side string

const (
	SideFlat  Side = "flat"
	SideLong  Side = "long"
	SideShort Side = "short"
)

type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

type Instrument struct {
	Symbol     string
	LotSize    int64 // 最小交易单位（默认 1）
	AllowShort bool
}

type SignalAction string

const (
	SignalBuy   SignalAction = "buy"
	SignalSell  SignalAction = "sell"
	SignalShort SignalAction = "short"
	SignalCover SignalAction = "cover"
)

type Signal struct {
	Time   time.Time
	Action SignalAction
	Reason string
	// Stop 入场时的初始止损（可选）
	Stop float64
}

type Position struct {
	Side       Side
	Qty        float64
	EntryTime  time.Time
	EntryPrice float64
	EntryFee   float64
}

type Trade struct {
	Symbol      string  `json:"symbol"`
	Side        Side    `json:"side"`
	EntryTime   string  `json:"entry_time"`
	EntryPrice  float64 `json:"entry_price"`
	ExitTime    string  `json:"exit_time"`
	ExitPrice   float64 `json:"exit_price"`
	Qty         float64 `json:"qty"`
	GrossPnL    float64 `json:"gross_pnl"`
	NetPnL      float64 `json:"net_pnl"`
	ReturnPct   float64 `json:"return_pct"`
	ReasonEntry string  `json:"reason_entry"`
	ReasonExit  string  `json:"reason_exit"`
}

type Point struct {
	Time   string  `json:"time"`
	Equity float64 `json:"equity"`
}

// Stats 回测统计（收益、回撤、胜率、夏普）
type Stats struct {
	InitialCash    float64 `json:"initial_cash"`
	FinalEquity    float64 `json:"final_equity"`
	TotalReturnPct float64 `json:"total_return_pct"`
	MaxDDPct       float64 `json:"max_drawdown_pct"`
	WinRatePct     float64 `json:"win_rate_pct"`
	TotalTrades    int     `json:"total_trades"`
	Sharpe         float64 `json:"sharpe"`
}
