package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/wonny/ldwatch/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// PrintHeader prints a formatted command header
func PrintHeader(w io.Writer, title string, pairs ...[2]string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
	fmt.Fprintf(w, "  %s\n", title)
	if len(pairs) > 0 {
		fmt.Fprintln(w, "───────────────────────────────────────────────────────────")
		for _, p := range pairs {
			fmt.Fprintf(w, "  %-10s: %s\n", p[0], p[1])
		}
	}
	fmt.Fprintln(w, "───────────────────────────────────────────────────────────")
}

// PrintSuccess prints a success message
func PrintSuccess(w io.Writer, message string) {
	fmt.Fprintf(w, "✅ %s\n", message)
}

// PrintWarning prints a warning message
func PrintWarning(w io.Writer, message string) {
	fmt.Fprintf(w, "⚠️  %s\n", message)
}

// PrintError prints an error message
func PrintError(w io.Writer, message string) {
	fmt.Fprintf(w, "❌ %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(w io.Writer, columns []string, widths []int) {
	PrintTableRow(w, columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Fprintln(w, strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(w io.Writer, values []string, widths []int) {
	for i, val := range values {
		fmt.Fprintf(w, "%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Fprint(w, "  ")
		}
	}
	fmt.Fprintln(w)
}

// PrintJSON prints v as indented JSON
func PrintJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var breachColumns = []string{"CLAUSE", "RULE", "SEVERITY", "VALUE", "THRESHOLD", "LD"}
var breachWidths = []int{36, 18, 8, 10, 10, 14}

// PrintResult renders an evaluation result as a summary table
func PrintResult(w io.Writer, r *contracts.EvaluationResult) {
	PrintHeader(w, "Compliance Evaluation",
		[2]string{"Run ID", r.RunID},
		[2]string{"Contract", r.ContractID},
		[2]string{"Period", fmt.Sprintf("%s ~ %s", r.PeriodStart.Format(dateLayout), r.PeriodEnd.Format(dateLayout))},
		[2]string{"Config", shortHash(r.ConfigHash)},
	)

	if r.Completeness != nil {
		fmt.Fprintf(w, "Data coverage: %.2f%% (%d/%d readings)\n",
			r.Completeness.CoveragePct, r.Completeness.ActualReadings, r.Completeness.ExpectedReadings)
	}
	fmt.Fprintf(w, "Clauses evaluated: %d, breaches: %d, persisted: %d\n\n",
		len(r.Evaluations), r.BreachCount(), r.PersistedCount())

	if r.BreachCount() > 0 {
		PrintTableHeader(w, breachColumns, breachWidths)
		for _, b := range r.Breaches {
			PrintTableRow(w, []string{
				b.ClauseID,
				b.RuleType,
				string(b.Severity),
				b.CalculatedValue.String(),
				b.ThresholdValue.String(),
				b.LDAmount.StringFixed(2),
			}, breachWidths)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "LD total: %s\n", r.LDTotal.StringFixed(2))

	if len(r.ProcessingNotes) > 0 {
		fmt.Fprintln(w, "\nProcessing notes:")
		for _, n := range r.ProcessingNotes {
			fmt.Fprintf(w, "   • %s\n", n)
		}
	}
	fmt.Fprintln(w)

	if r.BreachCount() == 0 {
		PrintSuccess(w, fmt.Sprintf("No breaches (%.2fs)", r.Duration.Seconds()))
	} else {
		PrintWarning(w, fmt.Sprintf("%d breach(es) detected (%.2fs)", r.BreachCount(), r.Duration.Seconds()))
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	if h == "" {
		return "-"
	}
	return h
}

// parsePeriod resolves --month or --start/--end into a half-open UTC range.
// Dates are YYYY-MM-DD or RFC3339; --month is YYYY-MM.
func parsePeriod(month, start, end string) (time.Time, time.Time, error) {
	if month != "" {
		if start != "" || end != "" {
			return time.Time{}, time.Time{}, fmt.Errorf("--month cannot be combined with --start/--end")
		}
		m, err := time.Parse(monthLayout, month)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --month %q: want YYYY-MM", month)
		}
		return m, m.AddDate(0, 1, 0), nil
	}

	if start == "" || end == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("either --month or both --start and --end are required")
	}
	s, err := parseTime(start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --start: %w", err)
	}
	e, err := parseTime(end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --end: %w", err)
	}
	if !e.After(s) {
		return time.Time{}, time.Time{}, fmt.Errorf("--end must be after --start")
	}
	return s, e, nil
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q: want YYYY-MM-DD or RFC3339", v)
	}
	return t, nil
}
