package dca

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/HHHHao-s/Strategy/chart"
)

// Series 返回 Cost 与 Total Value 两条曲线，末点标注 ROI
func Series(t *Table, color string) []chart.Series {
	cost := make([]chart.Point, len(t.Rows))
	value := make([]chart.Point, len(t.Rows))
	for i, r := range t.Rows {
		cost[i] = chart.Point{Time: r.Time, Value: r.Cost}
		value[i] = chart.Point{Time: r.Time, Value: r.TotalValue}
	}
	label := t.Symbol
	if label == "" {
		label = t.Name
	}
	return []chart.Series{
		{Label: label + " Cost", Color: color, Dash: true, Points: cost},
		{Label: label + " Total Value", Color: color, Points: value, Note: fmt.Sprintf("ROI: %.2f", t.ROI())},
	}
}

func RenderChart(t *Table) ([]byte, error) {
	return chart.RenderLinesSVG(t.Name, Series(t, chart.Palette[0]), chart.Options{})
}

// RenderCombinedChart 把所有成功的标的画在同一张图上
func RenderCombinedChart(rep *Report) ([]byte, error) {
	var all []chart.Series
	for i, res := range rep.OK() {
		all = append(all, Series(res.Table, chart.Palette[i%len(chart.Palette)])...)
	}
	p := rep.Plan
	title := fmt.Sprintf("%s-%s DCA %s", p.Start.Format(dateLayout), p.End.Format(dateLayout), p.Interval)
	return chart.RenderLinesSVG(title, all, chart.Options{Width: 1200, Height: 640})
}

// Export 写出 report.json、每个标的的 CSV（可选）与 SVG，以及合并图。
// 返回写出的文件路径。
func Export(rep *Report, outDir string, withCSV bool) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	var paths []string

	reportPath := filepath.Join(outDir, "report.json")
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(reportPath, b, 0o644); err != nil {
		return nil, err
	}
	paths = append(paths, reportPath)

	for _, res := range rep.OK() {
		base := sanitizeFilename(res.Table.Name)
		if withCSV {
			p := filepath.Join(outDir, base+".csv")
			if err := writeCSVFile(p, res.Table); err != nil {
				return paths, fmt.Errorf("%s: %w", res.Ticker, err)
			}
			paths = append(paths, p)
		}
		svg, err := RenderChart(res.Table)
		if err != nil {
			log.Printf("[WARN] chart %s: %v", res.Ticker, err)
			continue
		}
		p := filepath.Join(outDir, base+".svg")
		if err := os.WriteFile(p, svg, 0o644); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}

	if len(rep.OK()) > 1 {
		svg, err := RenderCombinedChart(rep)
		if err != nil {
			log.Printf("[WARN] combined chart: %v", err)
			return paths, nil
		}
		p := filepath.Join(outDir, "combined.svg")
		if err := os.WriteFile(p, svg, 0o644); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func writeCSVFile(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func sanitizeFilename(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}
