package chart

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type Candle struct {
	Time                   time.Time
	Open, High, Low, Close float64
}

// Level is a horizontal price line (stop, entry, band).
type Level struct {
	Price float64
	Label string
	Color string
	Dash  bool
}

// Marker is a labelled dot placed on the candle with the same date.
type Marker struct {
	Time  time.Time
	Price float64
	Label string
	Color string
}

func RenderCandlesSVG(title string, candles []Candle, levels []Level, markers []Marker, opt Options) ([]byte, error) {
	opt = opt.withDefaults()
	if len(candles) < 2 {
		return nil, fmt.Errorf("not enough bars: %d", len(candles))
	}

	minP, maxP := math.Inf(1), math.Inf(-1)
	for _, c := range candles {
		if c.Low > 0 {
			minP = math.Min(minP, c.Low)
		}
		if c.High > 0 {
			maxP = math.Max(maxP, c.High)
		}
	}
	for _, l := range levels {
		if l.Price > 0 {
			minP = math.Min(minP, l.Price)
			maxP = math.Max(maxP, l.Price)
		}
	}
	if maxP <= minP {
		return nil, fmt.Errorf("invalid price range")
	}
	f, ok := newFrame(opt, minP, maxP)
	if !ok {
		return nil, fmt.Errorf("invalid chart size")
	}

	step := f.w / float64(len(candles))
	cw := math.Max(1.0, step*0.65)
	xAt := func(i int) float64 {
		return f.left + (float64(i)+0.5)*step
	}

	const up, down = "#22c55e", "#ef4444"

	var b svgBuf
	b.open(opt)
	first, last := candles[0].Time, candles[len(candles)-1].Time
	b.header(f, title, first, last)
	b.grid(f)

	for i, c := range candles {
		x := xAt(i)
		col := up
		if c.Close < c.Open {
			col = down
		}
		yTop := math.Min(f.y(c.Open), f.y(c.Close))
		yBot := math.Max(f.y(c.Open), f.y(c.Close))
		if yBot-yTop < 1 {
			yBot = yTop + 1
		}
		// wick
		b.line(x, f.y(c.High), x, f.y(c.Low), col, 1, false)
		// body
		b.WriteString(`<rect x="` + fmtFloat(x-cw/2) + `" y="` + fmtFloat(yTop) + `" width="` + fmtFloat(cw) + `" height="` + fmtFloat(yBot-yTop) + `" fill="` + col + `" opacity="0.9"/>` + "\n")
	}

	for _, l := range levels {
		if l.Price <= 0 {
			continue
		}
		col := strings.TrimSpace(l.Color)
		if col == "" {
			col = "rgba(255,255,255,0.65)"
		}
		y := f.y(l.Price)
		b.line(f.left, y, f.left+f.w, y, col, 1.2, l.Dash)
		if label := strings.TrimSpace(l.Label); label != "" {
			b.text(f.left+6, y-4, col, 12, label+" "+fmtPrice(l.Price))
		}
	}

	for _, m := range markers {
		if m.Price <= 0 {
			continue
		}
		col := strings.TrimSpace(m.Color)
		if col == "" {
			col = "#38bdf8"
		}
		x := -1.0
		for i := range candles {
			if sameDay(candles[i].Time, m.Time) {
				x = xAt(i)
				break
			}
		}
		if x < 0 {
			continue
		}
		y := f.y(m.Price)
		b.WriteString(`<circle cx="` + fmtFloat(x) + `" cy="` + fmtFloat(y) + `" r="3.5" fill="` + col + `" />` + "\n")
		if label := strings.TrimSpace(m.Label); label != "" {
			b.text(x+6, y-6, col, 12, label)
		}
	}

	b.footer(f, first, last)
	b.close()
	return b.Bytes(), nil
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
