package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/HHHHao-s/Strategy/backtest"
	"github.com/HHHHao-s/Strategy/config"
	"github.com/HHHHao-s/Strategy/dca"
	"github.com/HHHHao-s/Strategy/fetcher"
	"github.com/HHHHao-s/Strategy/trading"
)

// Handler API处理器。每个请求独立计算，不共享可变状态。
type Handler struct {
	dcaCfg config.DCAConfig
	dca    *dca.Runner
	src    fetcher.Source

	bt    *backtest.RunConfig
	btRun *backtest.Runner

	startedAt time.Time
}

// NewHandler 创建处理器
func NewHandler(dcaCfg config.DCAConfig, src fetcher.Source, bt *backtest.RunConfig, btSrc fetcher.Source) *Handler {
	h := &Handler{
		dcaCfg:    dcaCfg,
		dca:       dca.NewRunner(src),
		src:       src,
		bt:        bt,
		startedAt: time.Now(),
	}
	if bt != nil {
		if btSrc == nil {
			btSrc = src
		}
		h.btRun = backtest.NewRunner(btSrc)
	}
	return h
}

// planFromQuery 以配置为默认值，查询参数覆盖
func (h *Handler) planFromQuery(c *gin.Context) (dca.Plan, error) {
	p := h.dcaCfg.Plan()
	if v := strings.TrimSpace(c.Query("tickers")); v != "" {
		p.Tickers = splitList(v)
	}
	if v := c.Query("start"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return p, err
		}
		p.Start = t
	}
	if v := c.Query("end"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return p, err
		}
		p.End = t
	}
	if v := c.Query("interval"); v != "" {
		iv, err := trading.ParseInterval(v)
		if err != nil {
			return p, err
		}
		p.Interval = iv
	}
	if v := c.Query("amount"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, err
		}
		p.Amount = f
	}
	return p, nil
}

// GetDCA 多标的定投模拟
func (h *Handler) GetDCA(c *gin.Context) {
	plan, err := h.planFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rep, err := h.dca.Run(c.Request.Context(), plan)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": rep,
	})
}

// GetDCAChart 单个标的的 Cost / Total Value 曲线（SVG）
func (h *Handler) GetDCAChart(c *gin.Context) {
	ticker := strings.TrimSpace(c.Param("ticker"))
	if ticker == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticker不能为空"})
		return
	}
	plan, err := h.planFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plan.Tickers = []string{ticker}

	rep, err := h.dca.Run(c.Request.Context(), plan)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ok := rep.OK()
	if len(ok) == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "未能获取该标的数据",
			"ticker": ticker,
			"errors": rep.Errors,
		})
		return
	}

	svg, err := dca.RenderChart(ok[0].Table)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/svg+xml", svg)
}

// GetBacktest 按回测配置运行，symbols 参数可覆盖标的
func (h *Handler) GetBacktest(c *gin.Context) {
	if h.bt == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "回测未配置"})
		return
	}
	cfg := *h.bt
	if v := strings.TrimSpace(c.Query("symbols")); v != "" {
		cfg.Instruments = nil
		for _, sym := range splitList(v) {
			cfg.Instruments = append(cfg.Instruments, backtest.Instrument{
				Symbol:     sym,
				LotSize:    cfg.LotSize,
				AllowShort: c.Query("allow_short") == "true",
			})
		}
	}

	results, err := h.btRun.Run(c.Request.Context(), cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for i := range results {
		if c.Query("curve") != "true" {
			results[i].EquityCurve = nil
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"code":     0,
		"strategy": cfg.StrategyType,
		"count":    len(results),
		"data":     results,
	})
}

// GetRotation KDJ 双标的轮动
func (h *Handler) GetRotation(c *gin.Context) {
	if h.bt == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "回测未配置"})
		return
	}
	cfg := *h.bt
	if v := c.Query("primary"); v != "" {
		cfg.Rotation.Primary = v
	}
	if v := c.Query("fallback"); v != "" {
		cfg.Rotation.Fallback = v
	}

	res, err := h.btRun.RunRotation(c.Request.Context(), cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if c.Query("curve") != "true" {
		res.EquityCurve = nil
	}
	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": res,
	})
}

// GetStatus 获取服务状态
func (h *Handler) GetStatus(c *gin.Context) {
	status := gin.H{
		"started_at": h.startedAt.Format(time.RFC3339),
		"uptime":     time.Since(h.startedAt).Round(time.Second).String(),
		"dca": gin.H{
			"source":   h.dcaCfg.Source,
			"tickers":  h.dcaCfg.Tickers,
			"interval": h.dcaCfg.Interval,
			"amount":   h.dcaCfg.Amount,
		},
		"backtest": h.bt != nil,
	}
	if h.bt != nil {
		status["strategy"] = h.bt.StrategyType
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": status,
	})
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
