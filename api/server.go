package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/HHHHao-s/Strategy/backtest"
	"github.com/HHHHao-s/Strategy/config"
	"github.com/HHHHao-s/Strategy/fetcher"
)

// Server HTTP服务器
type Server struct {
	engine  *gin.Engine
	server  *http.Server
	handler *Handler
}

// NewServer 创建服务器。bt 为 nil 时回测接口返回 503。
func NewServer(cfg *config.Config, src fetcher.Source, bt *backtest.RunConfig, btSrc fetcher.Source) *Server {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(loggerMiddleware())

	s := &Server{
		engine:  engine,
		handler: NewHandler(cfg.DCA, src, bt, btSrc),
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Port),
			Handler: engine,
		},
	}

	s.setupRoutes()
	return s
}

// Engine 返回 gin 引擎（测试用）
func (s *Server) Engine() *gin.Engine { return s.engine }

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	handler := s.handler

	api := s.engine.Group("/api")
	{
		// 定投模拟
		api.GET("/dca", handler.GetDCA)
		api.GET("/dca/:ticker/chart.svg", handler.GetDCAChart)

		// 回测
		api.GET("/backtest", handler.GetBacktest)
		api.GET("/rotation", handler.GetRotation)

		// 服务状态
		api.GET("/status", handler.GetStatus)
	}

	// 健康检查
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Start 启动服务器
func (s *Server) Start() error {
	log.Printf("[API] 服务启动在 http://localhost%s\n", s.server.Addr)
	log.Println("[API] 可用接口:")
	log.Println("  GET /api/dca                    - 定投模拟（tickers/start/end/interval/amount）")
	log.Println("  GET /api/dca/:ticker/chart.svg  - 定投成本与市值曲线")
	log.Println("  GET /api/backtest               - 策略回测（symbols）")
	log.Println("  GET /api/rotation               - KDJ 双标的轮动")
	log.Println("  GET /api/status                 - 服务状态")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// loggerMiddleware 日志中间件
func loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		log.Printf("[API] %s %s %d %v\n", c.Request.Method, path, status, latency)
	}
}

// corsMiddleware CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
