package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/ldwatch/internal/contracts"
	"github.com/wonny/ldwatch/internal/detector"
	"github.com/wonny/ldwatch/internal/quality"
	"github.com/wonny/ldwatch/internal/rulesconfig"
	"github.com/wonny/ldwatch/internal/timeseries"
	"github.com/wonny/ldwatch/pkg/database"
	"github.com/wonny/ldwatch/pkg/logger"
)

// detectCmd represents the detect command
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "이상 탐지 드라이런 (저장 없음)",
	Long: `프로젝트 계측 데이터에서 운영 이벤트를 탐지하고 완전성을 점검합니다.
결과는 출력만 하며 DB에 기록하지 않습니다.

Example:
  go run ./cmd/ldwatch detect --project P-001 --month 2024-01
  go run ./cmd/ldwatch detect --project P-001 --list-meters`,
	RunE: runDetect,
}

var (
	detectProject    string
	detectMeterType  string
	detectMonth      string
	detectStart      string
	detectEnd        string
	detectListMeters bool
)

func init() {
	rootCmd.AddCommand(detectCmd)

	// Flags
	detectCmd.Flags().StringVar(&detectProject, "project", "", "프로젝트 ID (필수)")
	detectCmd.Flags().StringVar(&detectMeterType, "meter-type", "", "계측 타입 (기본: ENGINE_METER_TYPE)")
	detectCmd.Flags().StringVar(&detectMonth, "month", "", "평가 월 (YYYY-MM)")
	detectCmd.Flags().StringVar(&detectStart, "start", "", "시작일 (YYYY-MM-DD, 포함)")
	detectCmd.Flags().StringVar(&detectEnd, "end", "", "종료일 (YYYY-MM-DD, 미포함)")
	detectCmd.Flags().BoolVar(&detectListMeters, "list-meters", false, "기록된 계측 타입만 조회")
	_ = detectCmd.MarkFlagRequired("project")
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	repo := timeseries.NewRepository(db.Pool)
	out := cmd.OutOrStdout()

	if detectListMeters {
		types, err := repo.ListMeterTypes(ctx, detectProject)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Meter types for %s:\n", detectProject)
		for _, t := range types {
			fmt.Fprintf(out, "   • %s\n", t)
		}
		return nil
	}

	start, end, err := parsePeriod(detectMonth, detectStart, detectEnd)
	if err != nil {
		return err
	}

	rcfg, err := rulesconfig.LoadOrDefault(cfg.Engine.RulesFile)
	if err != nil {
		return fmt.Errorf("load rules config: %w", err)
	}

	meterType := detectMeterType
	if meterType == "" {
		meterType = cfg.Engine.MeterTypeCode
	}

	readings, err := repo.LoadReadings(ctx, detectProject, meterType, start, end)
	if err != nil {
		return err
	}
	readings = contracts.AggregateByTimestamp(readings)

	report := quality.NewValidator(rcfg.QualityConfig()).Check(readings, start, end)
	events := detector.New(rcfg.DetectorConfig(), log.Component("detector")).Detect(detectProject, readings)

	PrintHeader(out, "Incident Detection (dry run)",
		[2]string{"Project", detectProject},
		[2]string{"Meter", meterType},
		[2]string{"Period", fmt.Sprintf("%s ~ %s", start.Format(dateLayout), end.Format(dateLayout))},
	)
	fmt.Fprintf(out, "Readings: %d, coverage %.2f%%, gaps %d\n", len(readings), report.CoveragePct, len(report.Gaps))
	if report.HasGaps() {
		for _, g := range report.Gaps {
			fmt.Fprintf(out, "   • %-8s %s ~ %s (%.1fh)\n", g.Kind, g.Start.UTC().Format(time.RFC3339), g.End.UTC().Format(time.RFC3339), g.Hours)
		}
	}
	fmt.Fprintln(out)

	if len(events) == 0 {
		PrintSuccess(out, "No incidents detected")
		return nil
	}

	widths := []int{18, 20, 20, 8, 8}
	PrintTableHeader(out, []string{"TYPE", "START", "END", "HOURS", "SEVERITY"}, widths)
	for _, e := range events {
		PrintTableRow(out, []string{
			e.EventTypeCode,
			e.TimeStart.UTC().Format(time.RFC3339),
			e.EndOr(end).UTC().Format(time.RFC3339),
			strconv.FormatFloat(e.DurationHours(end), 'f', 1, 64),
			strconv.Itoa(e.Severity),
		}, widths)
	}
	fmt.Fprintln(out)
	PrintWarning(out, fmt.Sprintf("%d incident(s) detected", len(events)))
	return nil
}
