// Package chart renders static SVG charts for reports: line charts for DCA
// cost/value and equity curves, candles with price overlays for backtests.
package chart

import (
	"bytes"
	"html"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	fontFamily = "ui-monospace, Menlo, Monaco, Consolas, monospace"
	colorBg    = "#0b1220"
	colorGrid  = "rgba(255,255,255,0.08)"
	colorText  = "rgba(255,255,255,0.85)"
)

type Options struct {
	Width  int
	Height int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 980
	}
	if o.Height <= 0 {
		o.Height = 520
	}
	return o
}

// frame is the plot area inside the margins.
type frame struct {
	left, top, w, h float64
	minV, maxV      float64
}

func newFrame(opt Options, minV, maxV float64) (frame, bool) {
	if math.IsInf(minV, 0) || math.IsInf(maxV, 0) || maxV < minV {
		return frame{}, false
	}
	pad := (maxV - minV) * 0.05
	if pad <= 0 {
		pad = math.Max(math.Abs(minV)*0.02, 1)
	}
	f := frame{
		left: 70, top: 24,
		w:    float64(opt.Width) - 70 - 20,
		h:    float64(opt.Height) - 24 - 40,
		minV: minV - pad,
		maxV: maxV + pad,
	}
	if f.w <= 10 || f.h <= 10 {
		return frame{}, false
	}
	return f, true
}

func (f frame) y(v float64) float64 {
	r := (v - f.minV) / (f.maxV - f.minV)
	r = math.Max(0, math.Min(1, r))
	return f.top + (1.0-r)*f.h
}

func (f frame) bottom() float64 { return f.top + f.h }

type svgBuf struct {
	bytes.Buffer
}

func (b *svgBuf) open(opt Options) {
	w, h := strconv.Itoa(opt.Width), strconv.Itoa(opt.Height)
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="` + w + `" height="` + h + `" viewBox="0 0 ` + w + ` ` + h + `">` + "\n")
	b.WriteString(`<rect x="0" y="0" width="100%" height="100%" fill="` + colorBg + `"/>` + "\n")
}

func (b *svgBuf) close() {
	b.WriteString(`</svg>` + "\n")
}

func (b *svgBuf) text(x, y float64, color string, size int, s string) {
	b.WriteString(`<text x="` + fmtFloat(x) + `" y="` + fmtFloat(y) + `" fill="` + color + `" font-size="` + strconv.Itoa(size) + `" font-family="` + fontFamily + `">` +
		html.EscapeString(s) + `</text>` + "\n")
}

func (b *svgBuf) line(x1, y1, x2, y2 float64, color string, width float64, dash bool) {
	style := ""
	if dash {
		style = ` stroke-dasharray="6 6"`
	}
	b.WriteString(`<line x1="` + fmtFloat(x1) + `" y1="` + fmtFloat(y1) + `" x2="` + fmtFloat(x2) + `" y2="` + fmtFloat(y2) + `" stroke="` + color + `" stroke-width="` + fmtFloat(width) + `"` + style + `/>` + "\n")
}

// grid draws 5 horizontal value lines with labels.
func (b *svgBuf) grid(f frame) {
	for k := 0; k <= 5; k++ {
		y := f.top + (float64(k)/5.0)*f.h
		b.line(f.left, y, f.left+f.w, y, colorGrid, 1, false)
		v := f.maxV - (float64(k)/5.0)*(f.maxV-f.minV)
		b.text(6, y+4, colorText, 12, fmtPrice(v))
	}
}

func (b *svgBuf) header(f frame, title string, first, last time.Time) {
	t := strings.TrimSpace(title)
	if t == "" {
		t = "UNKNOWN"
	}
	b.text(f.left, 16, colorText, 14, t+"  "+first.Format("2006-01-02")+" ~ "+last.Format("2006-01-02"))
}

func (b *svgBuf) footer(f frame, first, last time.Time) {
	y := f.bottom() + 40 - 12
	b.text(f.left, y, colorText, 12, first.Format("2006-01-02"))
	b.text(f.left+f.w-70, y, colorText, 12, last.Format("2006-01-02"))
}

func fmtFloat(x float64) string {
	// stable compact formatting for SVG attributes
	return strconv.FormatFloat(x, 'f', 2, 64)
}

func fmtPrice(p float64) string {
	if math.Abs(p) >= 1000 {
		return strconv.FormatFloat(p, 'f', 0, 64)
	}
	if math.Abs(p) >= 100 {
		return strconv.FormatFloat(p, 'f', 1, 64)
	}
	return strconv.FormatFloat(p, 'f', 2, 64)
}
