package strategyctl

import (
	"flag"
	"fmt"
	"log"
	"os"
)

func Run(args []string) int {
	fs := flag.NewFlagSet("strategyctl", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		configPath string
		envPath    string

		dcaMode     bool
		dcaOutDir   string
		dcaTickers  string
		dcaStart    string
		dcaEnd      string
		dcaInterval string
		dcaAmount   float64
		dcaNoCSV    bool
		dcaJSON     bool

		backtestMode   bool
		backtestConfig string
		backtestOut    string
		backtestTrades string
		backtestCharts string

		scanMode       bool
		scanOut        string
		scanJSON       bool
		scanOnlySignal bool
		scanDays       int
		scanChart      bool
		scanChartDir   string
		scanChartBars  int

		rotateMode bool
		rotateOut  string
	)

	fs.StringVar(&configPath, "config", "", "配置文件路径(YAML格式)，默认优先使用 ./config.yaml")
	fs.StringVar(&envPath, "env", ".env", "环境变量文件（不存在时忽略）")

	fs.BoolVar(&dcaMode, "dca", false, "运行定投模拟并退出（输出汇总表、CSV 与 SVG 图）")
	fs.StringVar(&dcaOutDir, "dca-out-dir", "", "定投输出目录（覆盖 dca.out_dir）")
	fs.StringVar(&dcaTickers, "tickers", "", "逗号分隔的标的列表（覆盖 dca.tickers）")
	fs.StringVar(&dcaStart, "start", "", "开始日期 YYYY-MM-DD（覆盖 dca.start）")
	fs.StringVar(&dcaEnd, "end", "", "结束日期 YYYY-MM-DD，不含当天（覆盖 dca.end）")
	fs.StringVar(&dcaInterval, "interval", "", "周期 1d/1wk/1mo（覆盖 dca.interval）")
	fs.Float64Var(&dcaAmount, "amount", 0, "每期投入金额（覆盖 dca.amount）")
	fs.BoolVar(&dcaNoCSV, "no-csv", false, "不导出 CSV")
	fs.BoolVar(&dcaJSON, "dca-json", false, "以 JSON 输出定投结果到 stdout（默认表格）")

	fs.BoolVar(&backtestMode, "backtest", false, "运行回测并退出")
	fs.StringVar(&backtestConfig, "bt-config", "backtest.yaml", "回测/扫描/轮动配置文件路径(YAML格式)")
	fs.StringVar(&backtestOut, "bt-out", "", "回测输出JSON文件路径(默认终端表格)")
	fs.StringVar(&backtestTrades, "bt-trades", "", "回测成交明细 CSV 路径（可选）")
	fs.StringVar(&backtestCharts, "bt-chart-dir", "", "资金曲线 SVG 输出目录（可选）")

	fs.BoolVar(&scanMode, "scan", false, "扫描最新一根K线是否产生策略信号并退出（信号在收盘确认，下一根开盘执行）")
	fs.StringVar(&scanOut, "scan-out", "", "扫描输出路径（默认stdout）")
	fs.BoolVar(&scanJSON, "scan-json", false, "扫描输出使用 JSON 格式（默认表格文本）")
	fs.BoolVar(&scanOnlySignal, "scan-only-signal", false, "仅输出有信号的标的（错误信息仍输出）")
	fs.IntVar(&scanDays, "scan-days", 0, "扫描时覆盖日期窗口：最近 N 天（自然日窗口；结束日期默认今天）")
	fs.BoolVar(&scanChart, "scan-chart", false, "输出带入场/止损画线的K线图(SVG)")
	fs.StringVar(&scanChartDir, "scan-chart-dir", "runtime/scan_charts", "扫描图输出目录（配合 -scan-chart）")
	fs.IntVar(&scanChartBars, "scan-chart-bars", 220, "每个标的输出最近 N 根K线到图中（配合 -scan-chart）")

	fs.BoolVar(&rotateMode, "rotate", false, "运行 KDJ 双标的轮动回测并退出（rotation.primary / rotation.fallback）")
	fs.StringVar(&rotateOut, "rotate-out", "", "轮动结果JSON文件路径(默认终端表格)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	modes := 0
	for _, m := range []bool{dcaMode, backtestMode, scanMode, rotateMode} {
		if m {
			modes++
		}
	}
	if modes > 1 {
		log.Printf("[ERROR] -dca/-backtest/-scan/-rotate 只能选择一个\n")
		return 2
	}

	if dcaMode {
		opts := dcaOptions{
			ConfigPath: configPath,
			EnvPath:    envPath,
			OutDir:     dcaOutDir,
			Tickers:    dcaTickers,
			Start:      dcaStart,
			End:        dcaEnd,
			Interval:   dcaInterval,
			Amount:     dcaAmount,
			AmountSet:  flagPassed(fs, "amount"),
			NoCSV:      dcaNoCSV,
			JSON:       dcaJSON,
		}
		if err := runDCA(opts, os.Stdout); err != nil {
			log.Printf("[ERROR] 定投模拟失败: %v\n", err)
			return 1
		}
		return 0
	}

	if scanMode {
		if err := runScan(backtestConfig, scanOut, scanJSON, scanOnlySignal, scanDays, scanChart, scanChartDir, scanChartBars); err != nil {
			log.Printf("[ERROR] 扫描失败: %v\n", err)
			return 1
		}
		return 0
	}

	if backtestMode {
		if err := runBacktest(backtestConfig, backtestOut, backtestTrades, backtestCharts, os.Stdout); err != nil {
			log.Printf("[ERROR] 回测失败: %v\n", err)
			return 1
		}
		return 0
	}

	if rotateMode {
		if err := runRotate(backtestConfig, rotateOut, os.Stdout); err != nil {
			log.Printf("[ERROR] 轮动回测失败: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  strategy -serve [-config config.yaml] [-bt-config backtest.yaml]")
	fmt.Fprintln(os.Stderr, "  strategy -dca [-config config.yaml] [-tickers QQQ,VOO] [-start 2015-01-01] [-end 2025-01-01] [-interval 1mo] [-amount 1000]")
	fmt.Fprintln(os.Stderr, "  strategy -backtest -bt-config backtest.yaml [-bt-out runtime/report.json] [-bt-trades runtime/trades.csv]")
	fmt.Fprintln(os.Stderr, "  strategy -scan -bt-config backtest.yaml [-scan-days 365] [-scan-chart]")
	fmt.Fprintln(os.Stderr, "  strategy -rotate -bt-config backtest.yaml [-rotate-out runtime/rotation.json]")
	return 2
}

func flagPassed(fs *flag.FlagSet, name string) bool {
	passed := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}
