package strategyd

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/HHHHao-s/Strategy/api"
	"github.com/HHHHao-s/Strategy/backtest"
	"github.com/HHHHao-s/Strategy/config"
)

func Run(args []string) int {
	flags := flag.NewFlagSet("strategyd", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)

	var (
		configPath   string
		btConfigPath string
		envPath      string
	)

	flags.StringVar(&configPath, "config", "", "配置文件路径(YAML格式)，默认优先使用 ./config.yaml")
	flags.StringVar(&btConfigPath, "bt-config", "backtest.yaml", "回测配置文件路径，不存在时关闭 /api/backtest")
	flags.StringVar(&envPath, "env", ".env", ".env 文件路径")
	flags.Bool("serve", true, "启动 HTTP 服务（默认行为）")

	if err := flags.Parse(args); err != nil {
		return 2
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	config.LoadEnv(envPath)
	if configPath == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			configPath = "config.yaml"
		}
	}
	cfg := config.GetConfig(configPath)

	src, err := cfg.DCA.NewSource()
	if err != nil {
		log.Printf("[ERROR] %v\n", err)
		return 1
	}

	var btCfg *backtest.RunConfig
	btSrc := src
	if _, err := os.Stat(btConfigPath); err == nil {
		c, err := backtest.LoadRunConfig(btConfigPath)
		if err != nil {
			log.Printf("[ERROR] %v\n", err)
			return 1
		}
		if btSrc, err = c.NewSource(); err != nil {
			log.Printf("[ERROR] %v\n", err)
			return 1
		}
		btCfg = &c
	} else {
		log.Printf("[WARN] 未找到回测配置 %s，回测接口不可用\n", btConfigPath)
	}

	log.Println("=== 定投模拟 / 策略回测服务 (strategyd) ===")

	server := api.NewServer(cfg, src, btCfg, btSrc)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errCh:
		if err != nil {
			log.Printf("[ERROR] HTTP服务启动失败: %v\n", err)
			return 1
		}
		return 0
	}

	log.Println("正在关闭服务...")
	_ = server.Shutdown()
	log.Println("服务已关闭")
	return 0
}
