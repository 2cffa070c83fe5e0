package chart

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type Point struct {
	Time  time.Time
	Value float64
}

type Series struct {
	Label  string
	Color  string
	Dash   bool
	Points []Point
	// Note is printed next to the last point (e.g. "ROI: 1.85").
	Note string
}

// Palette cycles through when a series has no color.
var Palette = []string{"#3b82f6", "#22c55e", "#ef4444", "#06b6d4", "#d946ef", "#eab308"}

// RenderLinesSVG draws every series against a shared time axis. The axis spans
// the earliest to the latest point over all series.
func RenderLinesSVG(title string, series []Series, opt Options) ([]byte, error) {
	opt = opt.withDefaults()

	var first, last time.Time
	minV, maxV := math.Inf(1), math.Inf(-1)
	count := 0
	for _, s := range series {
		for _, p := range s.Points {
			if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
				continue
			}
			if count == 0 || p.Time.Before(first) {
				first = p.Time
			}
			if count == 0 || p.Time.After(last) {
				last = p.Time
			}
			minV = math.Min(minV, p.Value)
			maxV = math.Max(maxV, p.Value)
			count++
		}
	}
	if count < 2 || !last.After(first) {
		return nil, fmt.Errorf("not enough points: %d", count)
	}
	f, ok := newFrame(opt, minV, maxV)
	if !ok {
		return nil, fmt.Errorf("invalid chart size")
	}

	span := last.Sub(first).Seconds()
	xAt := func(t time.Time) float64 {
		return f.left + t.Sub(first).Seconds()/span*f.w
	}

	var b svgBuf
	b.open(opt)
	b.header(f, title, first, last)
	b.grid(f)

	legendY := f.top + 16
	for n, s := range series {
		col := strings.TrimSpace(s.Color)
		if col == "" {
			col = Palette[n%len(Palette)]
		}

		var pts strings.Builder
		var lastPt *Point
		for i := range s.Points {
			p := s.Points[i]
			if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
				continue
			}
			if pts.Len() > 0 {
				pts.WriteByte(' ')
			}
			pts.WriteString(fmtFloat(xAt(p.Time)) + "," + fmtFloat(f.y(p.Value)))
			lastPt = &s.Points[i]
		}
		if lastPt == nil {
			continue
		}
		style := ""
		if s.Dash {
			style = ` stroke-dasharray="6 6"`
		}
		b.WriteString(`<polyline fill="none" stroke="` + col + `" stroke-width="1.6"` + style + ` points="` + pts.String() + `"/>` + "\n")

		if label := strings.TrimSpace(s.Label); label != "" {
			b.line(f.left+10, legendY-4, f.left+30, legendY-4, col, 2, s.Dash)
			b.text(f.left+36, legendY, col, 12, label)
			legendY += 16
		}
		if note := strings.TrimSpace(s.Note); note != "" {
			x := xAt(lastPt.Time)
			y := f.y(lastPt.Value)
			b.WriteString(`<circle cx="` + fmtFloat(x) + `" cy="` + fmtFloat(y) + `" r="3" fill="` + col + `"/>` + "\n")
			b.text(math.Min(x+6, f.left+f.w-90), y-6, col, 12, note)
		}
	}

	b.footer(f, first, last)
	b.close()
	return b.Bytes(), nil
}
