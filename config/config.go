package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/HHHHao-s/Strategy/dca"
	"github.com/HHHHao-s/Strategy/fetcher"
	"github.com/HHHHao-s/Strategy/trading"
)

const dateLayout = "2006-01-02"

// YAMLConfig YAML配置文件结构
type YAMLConfig struct {
	DCA struct {
		Source        string   `yaml:"source"`
		CSVDir        string   `yaml:"csv_dir"`
		CSVDateFormat string   `yaml:"csv_date_format"`
		CSVEncoding   string   `yaml:"csv_encoding"`
		Start         string   `yaml:"start"`
		End           string   `yaml:"end"`
		Interval      string   `yaml:"interval"`
		Amount        float64  `yaml:"amount"`
		Tickers       []string `yaml:"tickers"`
		ExportCSV     *bool    `yaml:"export_csv"`
		OutDir        string   `yaml:"out_dir"`
	} `yaml:"dca"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

// DCAConfig 定投模拟配置
type DCAConfig struct {
	// 行情源: yahoo | eastmoney | csv
	Source        string
	CSVDir        string
	CSVDateFormat string
	CSVEncoding   string

	Start    time.Time
	End      time.Time
	Interval trading.Interval
	// 每期投入金额
	Amount  float64
	Tickers []string

	ExportCSV bool
	OutDir    string
}

// Config 配置
type Config struct {
	// HTTP 服务端口
	Port int

	DCA DCAConfig
}

// Default 默认配置
func Default() Config {
	return Config{
		Port: 19527,
		DCA: DCAConfig{
			Source:        "yahoo",
			CSVDateFormat: fetcher.DefaultCSVDateLayout,
			Start:         time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
			End:           time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			Interval:      trading.Monthly,
			Amount:        1000,
			Tickers:       []string{"QQQ", "VOO"},
			ExportCSV:     true,
			OutDir:        "dca_output",
		},
	}
}

// Plan 转换为一次定投模拟计划
func (c DCAConfig) Plan() dca.Plan {
	return dca.Plan{
		Tickers:  append([]string(nil), c.Tickers...),
		Start:    c.Start,
		End:      c.End,
		Interval: c.Interval,
		Amount:   c.Amount,
	}
}

// NewSource 按配置创建行情源
func (c DCAConfig) NewSource() (fetcher.Source, error) {
	return fetcher.NewSource(c.Source, c.CSVDir, c.CSVDateFormat, c.CSVEncoding)
}

// LoadFromFile 从YAML文件加载配置
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse 解析YAML内容并叠加到默认配置上
func Parse(data []byte) (Config, error) {
	var yc YAMLConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg := Default()
	d := yc.DCA

	if s := strings.TrimSpace(d.Source); s != "" {
		cfg.DCA.Source = s
	}
	if d.CSVDir != "" {
		cfg.DCA.CSVDir = d.CSVDir
	}
	if d.CSVDateFormat != "" {
		cfg.DCA.CSVDateFormat = d.CSVDateFormat
	}
	cfg.DCA.CSVEncoding = d.CSVEncoding
	if d.Start != "" {
		t, err := time.Parse(dateLayout, d.Start)
		if err != nil {
			return Config{}, fmt.Errorf("invalid dca.start: %w", err)
		}
		cfg.DCA.Start = t
	}
	if d.End != "" {
		t, err := time.Parse(dateLayout, d.End)
		if err != nil {
			return Config{}, fmt.Errorf("invalid dca.end: %w", err)
		}
		cfg.DCA.End = t
	}
	if d.Interval != "" {
		iv, err := trading.ParseInterval(d.Interval)
		if err != nil {
			return Config{}, fmt.Errorf("invalid dca.interval: %w", err)
		}
		cfg.DCA.Interval = iv
	}
	if d.Amount < 0 {
		return Config{}, fmt.Errorf("invalid dca.amount: %v", d.Amount)
	}
	if d.Amount > 0 {
		cfg.DCA.Amount = d.Amount
	}
	if tickers := cleanTickers(d.Tickers); len(tickers) > 0 {
		cfg.DCA.Tickers = tickers
	}
	if d.ExportCSV != nil {
		cfg.DCA.ExportCSV = *d.ExportCSV
	}
	if d.OutDir != "" {
		cfg.DCA.OutDir = d.OutDir
	}

	// 服务配置
	if yc.Server.Port > 0 {
		cfg.Port = yc.Server.Port
	}

	return cfg, nil
}

// LoadEnv 加载 .env（文件不存在时忽略）
func LoadEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			log.Printf("[WARN] load %s: %v", p, err)
		}
	}
}

// GetConfig 获取配置 (优先级: 环境变量 > 配置文件 > 默认值)
func GetConfig(configPath string) *Config {
	cfg := Default()

	// 尝试从配置文件加载
	if configPath != "" {
		if c, err := LoadFromFile(configPath); err == nil {
			cfg = *c
		} else {
			log.Printf("[WARN] 无法加载配置文件 %s: %v", configPath, err)
		}
	}

	applyEnv(&cfg)
	return &cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("STRATEGY_DCA_AMOUNT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.DCA.Amount = f
		} else {
			log.Printf("[WARN] ignore STRATEGY_DCA_AMOUNT=%q", v)
		}
	}
	if v := os.Getenv("STRATEGY_DCA_TICKERS"); v != "" {
		if tickers := cleanTickers(strings.Split(v, ",")); len(tickers) > 0 {
			cfg.DCA.Tickers = tickers
		}
	}
	if v := os.Getenv("STRATEGY_DCA_SOURCE"); v != "" {
		cfg.DCA.Source = v
	}
	if v := os.Getenv("STRATEGY_DCA_INTERVAL"); v != "" {
		if iv, err := trading.ParseInterval(v); err == nil {
			cfg.DCA.Interval = iv
		} else {
			log.Printf("[WARN] ignore STRATEGY_DCA_INTERVAL: %v", err)
		}
	}
	if v := os.Getenv("STRATEGY_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Port = p
		} else {
			log.Printf("[WARN] ignore STRATEGY_PORT=%q", v)
		}
	}
}

func cleanTickers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
