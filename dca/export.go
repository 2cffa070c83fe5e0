package dca

import (
	"encoding/csv"
	"io"
	"strconv"
)

var csvHeader = []string{"Date", "Price", "Shares", "Total Shares", "Total Value", "Spend", "Cost", "Return on Investment"}

// WriteCSV writes one line per row with a header.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range t.Rows {
		if err := cw.Write([]string{
			r.Time.Format(dateLayout),
			fmtNum(r.Price),
			fmtNum(r.Shares),
			fmtNum(r.TotalShares),
			fmtNum(r.TotalValue),
			fmtNum(r.Spend),
			fmtNum(r.Cost),
			fmtNum(r.ReturnRatio),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func fmtNum(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
