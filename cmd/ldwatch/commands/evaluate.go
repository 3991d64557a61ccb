package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "계약 1건 준수 평가 실행",
	Long: `한 계약의 기간별 준수 평가를 즉시 실행합니다.

이 명령어는:
- 조항 로드 및 규칙 빌드
- 계측 데이터/면책 이벤트 로드
- 데이터 완전성 검사 및 이상 탐지
- 위반 기록 저장 및 알림 발행

기간은 반개구간 [start, end)이며 --month 또는 --start/--end로 지정합니다.

Example:
  go run ./cmd/ldwatch evaluate --contract 7d0c... --month 2024-01
  go run ./cmd/ldwatch evaluate --contract 7d0c... --start 2024-01-01 --end 2024-04-01 --json`,
	RunE: runEvaluate,
}

var (
	evalContract string
	evalMonth    string
	evalStart    string
	evalEnd      string
	evalJSON     bool
)

func init() {
	rootCmd.AddCommand(evaluateCmd)

	// Flags
	evaluateCmd.Flags().StringVar(&evalContract, "contract", "", "계약 ID (필수)")
	evaluateCmd.Flags().StringVar(&evalMonth, "month", "", "평가 월 (YYYY-MM)")
	evaluateCmd.Flags().StringVar(&evalStart, "start", "", "시작일 (YYYY-MM-DD, 포함)")
	evaluateCmd.Flags().StringVar(&evalEnd, "end", "", "종료일 (YYYY-MM-DD, 미포함)")
	evaluateCmd.Flags().BoolVar(&evalJSON, "json", false, "JSON으로 출력")
	_ = evaluateCmd.MarkFlagRequired("contract")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	start, end, err := parsePeriod(evalMonth, evalStart, evalEnd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.runner.Run(ctx, evalContract, start, end)
	if err != nil {
		return fmt.Errorf("evaluate contract %s: %w", evalContract, err)
	}

	out := cmd.OutOrStdout()
	if evalJSON {
		return PrintJSON(out, result)
	}
	PrintResult(out, result)
	return nil
}
