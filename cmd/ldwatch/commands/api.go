package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/ldwatch/internal/api"
	"github.com/wonny/ldwatch/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 평가 트리거 및 결과 조회 엔드포인트 제공
- --with-scheduler 지정 시 월간 평가 스케줄러 동시 실행

Endpoints:
  GET  /health                                      - Health check
  POST /api/contracts/{contractID}/evaluations        - 평가 트리거
  GET  /api/contracts/{contractID}/evaluations/latest - 최근 평가 결과
  GET  /api/contracts/{contractID}/breaches           - 위반 기록 조회
  GET  /api/contracts/{contractID}/completeness       - 최근 완전성 스냅샷

Example:
  go run ./cmd/ldwatch api
  go run ./cmd/ldwatch api --port 8090 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "월간 평가 스케줄러 함께 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== ldwatch API Server ===")

	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Override port if flag is set
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Wire runtime
	a, err := newApp(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	log := a.log
	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// 3. Create handler & router
	evalHandler := handlers.NewEvaluationHandler(a.runner, a.breaches, a.snapshots, log)
	limiter := api.NewLimiter(cfg.API.RateLimit, cfg.API.RateBurst)
	router := api.NewRouter(evalHandler, a.health, limiter, log)

	// 4. Optional scheduler
	if apiWithScheduler && cfg.Scheduler.Enabled {
		sched, err := newScheduler(a)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
		log.Info("Scheduler started alongside API")
	}

	// 5. Create server
	server := api.New(cfg, log, router)

	// 6. Start server with graceful shutdown
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	log.Info("Shutting down server...")

	// Graceful shutdown; in-flight evaluations get the engine timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Engine.Timeout+30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
