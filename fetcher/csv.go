package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/HHHHao-s/Strategy/trading"
)

// DefaultCSVDateLayout 与中证指数导出文件一致（20240102）
const DefaultCSVDateLayout = "20060102"

// ErrMalformedCSV 本地CSV格式错误
var ErrMalformedCSV = errors.New("malformed csv")

// CSVSource 本地CSV数据源，文件为 <Dir>/<symbol>.csv，
// 列顺序固定: date, open, high, low, close, volume
type CSVSource struct {
	Dir        string
	DateLayout string
	// Encoding 文件编码: utf-8(默认) | gbk | gb18030
	Encoding string
	Location *time.Location
}

// FetchKLines 读取本地文件并按 Query 截取、按周期聚合
func (s *CSVSource) FetchKLines(_ context.Context, symbol string, q Query) ([]KLine, error) {
	path := symbol
	if filepath.Ext(path) == "" {
		path = filepath.Join(s.Dir, symbol+".csv")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开CSV失败: %w", err)
	}
	defer f.Close()

	klines, err := s.Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	klines = filterRange(klines, Query{Start: q.Start, End: q.End})
	klines = Resample(klines, q.Interval)
	if q.Limit > 0 && len(klines) > q.Limit {
		klines = klines[len(klines)-q.Limit:]
	}
	return klines, nil
}

// Read 解析CSV内容。首行若为表头（date/日期）则跳过；日期或数字格式错误直接返回错误。
func (s *CSVSource) Read(r io.Reader) ([]KLine, error) {
	layout := s.DateLayout
	if layout == "" {
		layout = DefaultCSVDateLayout
	}
	loc := s.Location
	if loc == nil {
		loc = trading.CST
	}

	dec, err := decodeReader(r, s.Encoding)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(dec)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var klines []KLine
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedCSV, line, err)
		}
		if line == 1 && isHeader(rec) {
			continue
		}
		if len(rec) < 6 {
			return nil, fmt.Errorf("%w: line %d: want 6 columns, got %d", ErrMalformedCSV, line, len(rec))
		}

		t, err := time.ParseInLocation(layout, strings.TrimSpace(rec[0]), loc)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad date %q (layout %s)", ErrMalformedCSV, line, rec[0], layout)
		}
		var px [4]float64
		for i := range px {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: bad number %q", ErrMalformedCSV, line, rec[i+1])
			}
			px[i] = v
		}
		vol, err := parseVolume(rec[5])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad volume %q", ErrMalformedCSV, line, rec[5])
		}

		klines = append(klines, KLine{Time: t, Open: px[0], High: px[1], Low: px[2], Close: px[3], Volume: vol})
	}
	return klines, nil
}

func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		return r, nil
	case "gbk":
		return transform.NewReader(r, simplifiedchinese.GBK.NewDecoder()), nil
	case "gb18030":
		return transform.NewReader(r, simplifiedchinese.GB18030.NewDecoder()), nil
	}
	return nil, fmt.Errorf("unsupported csv encoding: %s", encoding)
}

func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	h := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(rec[0], "\ufeff")))
	switch h {
	case "date", "datetime", "time", "trade_date", "日期":
		return true
	}
	return false
}

// parseVolume 成交量可能带小数（指数文件常见），截断为整数
func parseVolume(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
