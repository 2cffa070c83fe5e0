package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/HHHHao-s/Strategy/trading"
)

const yahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// YahooSource Yahoo Finance 历史行情（美股/ETF，如 QQQ, VOO, TQQQ）
type YahooSource struct {
	client  *http.Client
	baseURL string
}

// NewYahooSource 创建 Yahoo 数据源
func NewYahooSource() *YahooSource {
	return &YahooSource{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL: yahooChartURL,
	}
}

type yahooChartResp struct {
	Chart struct {
		Result []struct {
			Meta struct {
				GMTOffset int `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchKLines 获取 [Start, End) 区间的K线，周期由 q.Interval 决定
func (f *YahooSource) FetchKLines(ctx context.Context, symbol string, q Query) ([]KLine, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return nil, fmt.Errorf("empty symbol")
	}
	iv := q.Interval
	if iv == "" {
		iv = trading.Daily
	}

	params := url.Values{}
	start := q.Start
	if start.IsZero() {
		start = time.Unix(0, 0)
	}
	end := q.End
	if end.IsZero() {
		end = time.Now()
	}
	params.Set("period1", strconv.FormatInt(start.Unix(), 10))
	params.Set("period2", strconv.FormatInt(end.Unix(), 10))
	params.Set("interval", iv.String())
	params.Set("events", "history")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+url.PathEscape(sym)+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	klines, err := parseYahooChart(body)
	if err != nil {
		return nil, fmt.Errorf("yahoo %s: %w", sym, err)
	}
	if resp.StatusCode != http.StatusOK && len(klines) == 0 {
		return nil, fmt.Errorf("yahoo %s: http %d", sym, resp.StatusCode)
	}
	return filterRange(klines, Query{Limit: q.Limit}), nil
}

// parseYahooChart 解析 chart 接口；收盘价为 null 的行（停牌/未收盘）跳过
func parseYahooChart(data []byte) ([]KLine, error) {
	var r yahooChartResp
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if r.Chart.Error != nil {
		return nil, fmt.Errorf("%s: %s", r.Chart.Error.Code, r.Chart.Error.Description)
	}
	if len(r.Chart.Result) == 0 {
		return nil, fmt.Errorf("empty result")
	}
	res := r.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return nil, nil
	}
	quote := res.Indicators.Quote[0]
	loc := time.FixedZone("", res.Meta.GMTOffset)

	at := func(xs []*float64, i int) float64 {
		if i < len(xs) && xs[i] != nil {
			return *xs[i]
		}
		return 0
	}

	klines := make([]KLine, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		c := at(quote.Close, i)
		if c <= 0 {
			continue
		}
		k := KLine{
			Time:  trading.StartOfDay(time.Unix(ts, 0).In(loc)),
			Open:  at(quote.Open, i),
			High:  at(quote.High, i),
			Low:   at(quote.Low, i),
			Close: c,
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			k.Volume = *quote.Volume[i]
		}
		klines = append(klines, k)
	}
	return klines, nil
}
