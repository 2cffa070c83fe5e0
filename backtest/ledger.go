package backtest

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// account 现金账户，用 decimal 记账避免长序列累加误差；轮动时多个 ledger 共用一个账户
type account struct {
	cash decimal.Decimal
}

func newAccount(initial float64) *account {
	return &account{cash: decimal.NewFromFloat(initial)}
}

func (a *account) Cash() float64 { return a.cash.InexactFloat64() }

func (a *account) add(x float64) { a.cash = a.cash.Add(decimal.NewFromFloat(x)) }

// ledger 单个标的的持仓与成交记录
type ledger struct {
	inst   Instrument
	cfg    RunConfig
	acct   *account
	pos    Position
	trades []Trade

	lastEntryReason string
}

func newLedger(inst Instrument, cfg RunConfig, acct *account) *ledger {
	if acct == nil {
		acct = newAccount(cfg.InitialCash)
	}
	return &ledger{
		inst: inst,
		cfg:  cfg,
		acct: acct,
		pos:  Position{Side: SideFlat},
	}
}

func (l *ledger) Cash() float64 { return l.acct.Cash() }

func (l *ledger) add(x float64) { l.acct.add(x) }

func (l *ledger) fee(notional float64) float64 {
	return notional * (l.cfg.CommissionBps / 10000.0)
}

// execute 在 t 时刻以 open 价执行信号（含滑点），无法执行的信号被忽略
func (l *ledger) execute(sig *Signal, t time.Time, open float64) {
	price := applySlippage(open, l.cfg.SlippageBps, sig.Action)
	if price <= 0 {
		return
	}

	switch sig.Action {
	case SignalBuy, SignalShort:
		if l.pos.Side != SideFlat {
			return
		}
		side := SideLong
		if sig.Action == SignalShort {
			if !l.inst.AllowShort {
				return
			}
			side = SideShort
		}
		qty := sizeQty(l.Cash(), price, l.cfg.PositionPct, l.inst.LotSize, l.cfg.CommissionBps)
		if qty <= 0 {
			return
		}
		notional := price * qty
		fee := l.fee(notional)
		if side == SideLong {
			l.add(-(notional + fee))
		} else {
			l.add(notional - fee)
		}
		l.pos = Position{Side: side, Qty: qty, EntryTime: t, EntryPrice: price, EntryFee: fee}
		l.lastEntryReason = sig.Reason

	case SignalSell:
		if l.pos.Side == SideLong {
			l.close(t, price, sig.Reason)
		}
	case SignalCover:
		if l.pos.Side == SideShort {
			l.close(t, price, sig.Reason)
		}
	}
}

func (l *ledger) close(t time.Time, price float64, reason string) {
	notional := price * l.pos.Qty
	fee := l.fee(notional)
	if l.pos.Side == SideLong {
		l.add(notional - fee)
	} else {
		l.add(-(notional + fee))
	}
	l.trades = append(l.trades, closeTrade(l.inst, l.pos, t, price, fee, l.lastEntryReason, reason))
	l.pos = Position{Side: SideFlat}
}

// equity 按收盘价盯市
func (l *ledger) equity(closePrice float64) float64 {
	eq := l.Cash()
	if l.pos.Side == SideFlat || l.pos.Qty <= 0 || closePrice <= 0 {
		return eq
	}
	if l.pos.Side == SideLong {
		return eq + closePrice*l.pos.Qty
	}
	return eq - closePrice*l.pos.Qty
}

func applySlippage(price, bps float64, action SignalAction) float64 {
	if price <= 0 || bps <= 0 {
		return price
	}
	x := bps / 10000.0
	switch action {
	case SignalBuy, SignalCover:
		return price * (1 + x)
	case SignalSell, SignalShort:
		return price * (1 - x)
	default:
		return price
	}
}

// sizeQty 按资金比例计算可成交数量（含手续费，按 lot 向下取整）
func sizeQty(cash, price, pct float64, lot int64, commissionBps float64) float64 {
	if cash <= 0 || price <= 0 || pct <= 0 {
		return 0
	}
	if lot <= 0 {
		lot = 1
	}
	unit := price * (1 + commissionBps/10000.0)
	q := math.Floor(cash * pct / unit / float64(lot))
	return q * float64(lot)
}

func settlePnL(pos Position, exitPrice float64) float64 {
	if pos.Side == SideFlat || pos.Qty <= 0 || exitPrice <= 0 {
		return 0
	}
	d := 1.0
	if pos.Side == SideShort {
		d = -1
	}
	return (exitPrice - pos.EntryPrice) * d * pos.Qty
}

func closeTrade(inst Instrument, pos Position, exitTime time.Time, exitPrice float64, exitFee float64, entryReason, exitReason string) Trade {
	gross := settlePnL(pos, exitPrice)
	net := gross - pos.EntryFee - exitFee
	retPct := 0.0
	if pos.EntryPrice > 0 {
		retPct = (exitPrice - pos.EntryPrice) / pos.EntryPrice * 100.0
		if pos.Side == SideShort {
			retPct = -retPct
		}
	}
	return Trade{
		Symbol:      inst.Symbol,
		Side:        pos.Side,
		EntryTime:   pos.EntryTime.Format("2006-01-02"),
		EntryPrice:  round2(pos.EntryPrice),
		ExitTime:    exitTime.Format("2006-01-02"),
		ExitPrice:   round2(exitPrice),
		Qty:         round2(pos.Qty),
		GrossPnL:    round2(gross),
		NetPnL:      round2(net),
		ReturnPct:   round2(retPct),
		ReasonEntry: entryReason,
		ReasonExit:  exitReason,
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
