package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HHHHao-s/Strategy/trading"
)

const eastmoneyKLineURL = "https://push2his.eastmoney.com/api/qt/stock/kline/get"

// EastmoneySource 东方财富日/周/月K（A股、指数、ETF）
type EastmoneySource struct {
	client  *http.Client
	baseURL string
}

// NewEastmoneySource 创建东方财富数据源
func NewEastmoneySource() *EastmoneySource {
	return &EastmoneySource{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL: eastmoneyKLineURL,
	}
}

// secID 转换代码格式: sh600000 -> 1.600000, sz000001 -> 0.000001
func secID(code string) (string, error) {
	c := strings.ToLower(strings.TrimSpace(code))
	if len(c) <= 2 {
		return "", fmt.Errorf("股票代码格式错误: %s", code)
	}
	switch c[:2] {
	case "sh":
		return "1." + c[2:], nil
	case "sz":
		return "0." + c[2:], nil
	}
	return "", fmt.Errorf("未知的股票代码格式: %s", code)
}

func klt(iv trading.Interval) string {
	switch iv {
	case trading.Weekly:
		return "102"
	case trading.Monthly:
		return "103"
	default:
		return "101"
	}
}

// FetchKLines 获取K线数据（前复权）
// symbol: 股票代码（如 sh600000, sz000001, sh000300）
func (f *EastmoneySource) FetchKLines(ctx context.Context, symbol string, q Query) ([]KLine, error) {
	sid, err := secID(symbol)
	if err != nil {
		return nil, err
	}

	beg := "0"
	if !q.Start.IsZero() {
		beg = q.Start.Format("20060102")
	}
	end := "20500101"
	if !q.End.IsZero() {
		end = q.End.Format("20060102")
	}
	lmt := q.Limit
	if lmt <= 0 {
		lmt = 10000
	}

	url := fmt.Sprintf(
		"%s?secid=%s&fields1=f1,f2,f3,f4,f5,f6&fields2=f51,f52,f53,f54,f55,f56,f57&klt=%s&fqt=1&beg=%s&end=%s&lmt=%d",
		f.baseURL, sid, klt(q.Interval), beg, end, lmt,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Referer", "https://quote.eastmoney.com/")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eastmoney %s: http %d", symbol, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	klines, err := parseEastmoneyKLine(body)
	if err != nil {
		return nil, fmt.Errorf("eastmoney %s: %w", symbol, err)
	}
	return filterRange(klines, q), nil
}

// parseEastmoneyKLine 解析K线数据
func parseEastmoneyKLine(data []byte) ([]KLine, error) {
	var result struct {
		Data *struct {
			Klines []string `json:"klines"`
		} `json:"data"`
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	if result.Data == nil {
		return nil, fmt.Errorf("empty response")
	}

	klines := make([]KLine, 0, len(result.Data.Klines))
	for _, line := range result.Data.Klines {
		// 格式: 日期,开盘,收盘,最高,最低,成交量,成交额
		parts := strings.Split(line, ",")
		if len(parts) < 6 {
			return nil, fmt.Errorf("invalid kline %q: want at least 6 fields", line)
		}

		t, err := time.ParseInLocation("2006-01-02", parts[0], trading.CST)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", parts[0], err)
		}
		var px [4]float64
		for i := range px {
			v, err := strconv.ParseFloat(strings.TrimSpace(parts[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid number %q: %w", parts[0], parts[i+1], err)
			}
			px[i] = v
		}
		volume, err := parseVolume(parts[5])
		if err != nil {
			return nil, fmt.Errorf("%s: invalid volume %q: %w", parts[0], parts[5], err)
		}

		klines = append(klines, KLine{
			Time:   t,
			Open:   px[0],
			Close:  px[1],
			High:   px[2],
			Low:    px[3],
			Volume: volume,
		})
	}

	return klines, nil
}
