package backtest

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HHHHao-s/Strategy/fetcher"
	"github.com/HHHHao-s/Strategy/trading"
)

const (
	StrategyBollingerWilliams = "bollinger_williams"
	StrategyKDJ               = "kdj"
)

type YAMLConfig struct {
	Backtest struct {
		Source        string   `yaml:"source"`
		CSVDir        string   `yaml:"csv_dir"`
		CSVDateFormat string   `yaml:"csv_date_format"`
		CSVEncoding   string   `yaml:"csv_encoding"`
		Interval      string   `yaml:"interval"`
		Days          int      `yaml:"days"`
		Start         string   `yaml:"start"`
		End           string   `yaml:"end"`
		InitialCash   float64  `yaml:"initial_cash"`
		PositionPct   float64  `yaml:"position_pct"`
		SlippageBps   *float64 `yaml:"slippage_bps"`
		CommissionBps *float64 `yaml:"commission_bps"`
		LotSize       int64    `yaml:"lot_size"`
		AllowShort    bool     `yaml:"allow_short"`
		MinBars       int      `yaml:"min_bars"`

		Instruments []string `yaml:"instruments"`
	} `yaml:"backtest"`

	Strategy struct {
		Type   string         `yaml:"type"`
		Params map[string]any `yaml:"params"`
	} `yaml:"strategy"`

	Rotation RotationConfig `yaml:"rotation"`
}

type RunConfig struct {
	Source        string
	CSVDir        string
	CSVDateFormat string
	CSVEncoding   string

	Interval      trading.Interval
	Days          int
	Start         time.Time
	End           time.Time
	InitialCash   float64
	PositionPct   float64
	SlippageBps   float64
	CommissionBps float64
	LotSize       int64
	MinBars       int

	Instruments  []Instrument
	StrategyType string
	Strategy     Strategy
	Rotation     RotationConfig

	// Scan-only options (not loaded from YAML)
	ScanChart     bool
	ScanChartDir  string
	ScanChartBars int
}

func DefaultRunConfig() RunConfig {
	return RunConfig{
		Source:        "yahoo",
		CSVDateFormat: fetcher.DefaultCSVDateLayout,
		Interval:      trading.Daily,
		InitialCash:   100_000,
		PositionPct:   1.0,
		SlippageBps:   0,
		CommissionBps: 10,
		LotSize:       1,
		MinBars:       50,
		StrategyType:  StrategyBollingerWilliams,
		Strategy:      NewBollingerWilliamsStrategy(BollingerWilliamsParams{}),
		Rotation: RotationConfig{
			Primary:  "000300perf",
			Fallback: "H30269perf",
		},
	}
}

// NewSource 按配置创建行情源
func (c RunConfig) NewSource() (fetcher.Source, error) {
	return fetcher.NewSource(c.Source, c.CSVDir, c.CSVDateFormat, c.CSVEncoding)
}

func LoadRunConfig(path string) (RunConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read config: %w", err)
	}
	return ParseRunConfig(raw)
}

func ParseRunConfig(raw []byte) (RunConfig, error) {
	var yc YAMLConfig
	if err := yaml.Unmarshal(raw, &yc); err != nil {
		return RunConfig{}, fmt.Errorf("parse yaml: %w", err)
	}

	cfg := DefaultRunConfig()
	bt := yc.Backtest

	if s := strings.TrimSpace(bt.Source); s != "" {
		cfg.Source = s
	}
	if bt.CSVDir != "" {
		cfg.CSVDir = bt.CSVDir
	}
	if bt.CSVDateFormat != "" {
		cfg.CSVDateFormat = bt.CSVDateFormat
	}
	cfg.CSVEncoding = bt.CSVEncoding
	if bt.Interval != "" {
		iv, err := trading.ParseInterval(bt.Interval)
		if err != nil {
			return RunConfig{}, fmt.Errorf("invalid backtest.interval: %w", err)
		}
		cfg.Interval = iv
	}
	if bt.Days > 0 {
		cfg.Days = bt.Days
	}
	if bt.InitialCash > 0 {
		cfg.InitialCash = bt.InitialCash
	}
	if bt.PositionPct > 0 && bt.PositionPct <= 1 {
		cfg.PositionPct = bt.PositionPct
	}
	if bt.SlippageBps != nil && *bt.SlippageBps >= 0 {
		cfg.SlippageBps = *bt.SlippageBps
	}
	if bt.CommissionBps != nil && *bt.CommissionBps >= 0 {
		cfg.CommissionBps = *bt.CommissionBps
	}
	if bt.LotSize > 0 {
		cfg.LotSize = bt.LotSize
	}
	if bt.MinBars > 0 {
		cfg.MinBars = bt.MinBars
	}

	for _, s := range bt.Instruments {
		sym := strings.TrimSpace(s)
		if sym == "" {
			continue
		}
		cfg.Instruments = append(cfg.Instruments, Instrument{
			Symbol:     sym,
			LotSize:    cfg.LotSize,
			AllowShort: bt.AllowShort,
		})
	}

	if bt.Start != "" {
		t, err := time.ParseInLocation("2006-01-02", bt.Start, time.Local)
		if err != nil {
			return RunConfig{}, fmt.Errorf("invalid backtest.start: %w", err)
		}
		cfg.Start = t
	}
	if bt.End != "" {
		t, err := time.ParseInLocation("2006-01-02", bt.End, time.Local)
		if err != nil {
			return RunConfig{}, fmt.Errorf("invalid backtest.end: %w", err)
		}
		cfg.End = t
	}

	switch yc.Strategy.Type {
	case "", StrategyBollingerWilliams:
		var p BollingerWilliamsParams
		if err := decodeParams(yc.Strategy.Params, &p); err != nil {
			return RunConfig{}, err
		}
		cfg.StrategyType = StrategyBollingerWilliams
		cfg.Strategy = NewBollingerWilliamsStrategy(p)
	case StrategyKDJ:
		var p KDJParams
		if err := decodeParams(yc.Strategy.Params, &p); err != nil {
			return RunConfig{}, err
		}
		cfg.StrategyType = StrategyKDJ
		cfg.Strategy = NewKDJStrategy(p)
	default:
		return RunConfig{}, fmt.Errorf("unknown strategy.type: %s", yc.Strategy.Type)
	}

	if yc.Rotation.Primary != "" {
		cfg.Rotation.Primary = yc.Rotation.Primary
	}
	if yc.Rotation.Fallback != "" {
		cfg.Rotation.Fallback = yc.Rotation.Fallback
	}
	cfg.Rotation.Params = yc.Rotation.Params.withDefaults()

	return cfg, nil
}

func decodeParams(m map[string]any, out any) error {
	if m == nil {
		return nil
	}
	b, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("strategy.params: %w", err)
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("strategy.params: %w", err)
	}
	return nil
}
