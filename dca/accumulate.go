// Package dca simulates dollar-cost averaging: a fixed amount is invested at
// every sample of a price series and the position is marked to market.
package dca

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptySeries   = errors.New("dca: empty price series")
	ErrInvalidAmount = errors.New("dca: contribution amount must be positive")
	ErrInvalidPrice  = errors.New("dca: price must be positive")
	ErrUnordered     = errors.New("dca: timestamps must be strictly increasing")
	ErrZeroCost      = errors.New("dca: cumulative cost is zero")
)

const dateLayout = "2006-01-02"

// Sample is one closing price.
type Sample struct {
	Time  time.Time
	Price float64
}

// Row is the derived state after investing at one sample.
type Row struct {
	Time        time.Time `json:"time"`
	Price       float64   `json:"price"`
	Shares      float64   `json:"shares"`
	TotalShares float64   `json:"total_shares"`
	TotalValue  float64   `json:"total_value"`
	Spend       float64   `json:"spend"`
	Cost        float64   `json:"cost"`
	ReturnRatio float64   `json:"return_ratio"`
}

type Table struct {
	Name   string  `json:"name"`
	Symbol string  `json:"symbol,omitempty"`
	Amount float64 `json:"amount"`
	Rows   []Row   `json:"rows"`
}

// Last returns the final row. The table is never empty when produced by
// Accumulate.
func (t *Table) Last() Row {
	return t.Rows[len(t.Rows)-1]
}

// ROI is the final value-to-cost multiple, rounded to cents: 1.25 means the
// position is worth 125% of what was paid in.
func (t *Table) ROI() float64 {
	if t == nil || len(t.Rows) == 0 {
		return 0
	}
	return decimal.NewFromFloat(t.Last().ReturnRatio).Round(2).Add(decimal.NewFromInt(1)).InexactFloat64()
}

// Accumulate invests amount at every sample in order.
//
// Inputs are validated up front; on any error no table is returned.
func Accumulate(series []Sample, amount float64) (*Table, error) {
	if len(series) == 0 {
		return nil, ErrEmptySeries
	}
	if !(amount > 0) || math.IsInf(amount, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidAmount, amount)
	}
	for i, s := range series {
		if !(s.Price > 0) || math.IsInf(s.Price, 0) {
			return nil, fmt.Errorf("%w: sample %d (%s) price %v", ErrInvalidPrice, i, s.Time.Format(dateLayout), s.Price)
		}
		if i > 0 && !s.Time.After(series[i-1].Time) {
			return nil, fmt.Errorf("%w: sample %d (%s)", ErrUnordered, i, s.Time.Format(dateLayout))
		}
	}

	amt := decimal.NewFromFloat(amount)
	totalShares := decimal.Zero
	cost := decimal.Zero

	rows := make([]Row, 0, len(series))
	for _, s := range series {
		price := decimal.NewFromFloat(s.Price)
		shares := divShares(amt, price, amount, s.Price)
		totalShares = totalShares.Add(shares)
		cost = cost.Add(amt)
		if cost.IsZero() {
			return nil, ErrZeroCost
		}
		value := totalShares.Mul(price)
		ratio := value.Sub(cost).Div(cost)

		rows = append(rows, Row{
			Time:        s.Time,
			Price:       s.Price,
			Shares:      shares.InexactFloat64(),
			TotalShares: totalShares.InexactFloat64(),
			TotalValue:  value.InexactFloat64(),
			Spend:       amount,
			Cost:        cost.InexactFloat64(),
			ReturnRatio: ratio.InexactFloat64(),
		})
	}

	return &Table{Amount: amount, Rows: rows}, nil
}

// divShares 按商的数量级扩展精度，价格远大于金额时份额不会被舍入为 0
func divShares(amt, price decimal.Decimal, amount, p float64) decimal.Decimal {
	prec := int32(decimal.DivisionPrecision)
	if mag := math.Ceil(math.Log10(p / amount)); mag > 0 {
		prec += int32(math.Min(mag, 400))
	}
	return amt.DivRound(price, prec)
}
