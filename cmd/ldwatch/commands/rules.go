package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wonny/ldwatch/internal/rulesconfig"
)

// rulesCmd represents the rules command
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "규칙 설정 파일 관리",
	Long: `규칙 설정(YAML)을 검증하고 해시를 계산합니다.
파일을 지정하지 않으면 내장 기본값을 사용합니다.

Subcommands:
  validate - 설정 검증 및 경고 출력
  hash     - 설정 해시 (평가 결과의 config_hash와 동일)
  show     - 카테고리 → 규칙 매핑 출력

Example:
  go run ./cmd/ldwatch rules validate config/rules/solar_ppa.yaml
  go run ./cmd/ldwatch rules hash config/rules/solar_ppa.yaml`,
}

var (
	rulesValidateCmd = &cobra.Command{
		Use:   "validate [file]",
		Short: "설정 검증",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRulesValidate,
	}

	rulesHashCmd = &cobra.Command{
		Use:   "hash [file]",
		Short: "설정 해시 출력",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRulesHash,
	}

	rulesShowCmd = &cobra.Command{
		Use:   "show [file]",
		Short: "카테고리 매핑 출력",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRulesShow,
	}
)

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
	rulesCmd.AddCommand(rulesHashCmd)
	rulesCmd.AddCommand(rulesShowCmd)
}

func loadRules(args []string) (*rulesconfig.Config, string, error) {
	if len(args) == 0 {
		return rulesconfig.Default(), "(built-in)", nil
	}
	cfg, _, err := rulesconfig.Load(args[0])
	if err != nil {
		return nil, args[0], fmt.Errorf("load %s: %w", args[0], err)
	}
	return cfg, args[0], nil
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, source, err := loadRules(args)
	if err != nil {
		PrintError(out, err.Error())
		return err
	}

	PrintSuccess(out, fmt.Sprintf("%s: ruleset %s v%s is valid", source, cfg.Meta.RulesetID, cfg.Meta.Version))
	warnings := rulesconfig.Warn(cfg)
	for _, w := range warnings {
		PrintWarning(out, fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}
	if len(warnings) == 0 {
		fmt.Fprintln(out, "No warnings")
	}
	return nil
}

func runRulesHash(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadRules(args)
	if err != nil {
		return err
	}
	hash, err := rulesconfig.Hash(cfg)
	if err != nil {
		return fmt.Errorf("hash rules config: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}

func runRulesShow(cmd *cobra.Command, args []string) error {
	cfg, source, err := loadRules(args)
	if err != nil {
		return err
	}
	printCategories(cmd.OutOrStdout(), source, cfg)
	return nil
}

func printCategories(w io.Writer, source string, cfg *rulesconfig.Config) {
	PrintHeader(w, "Category Mapping",
		[2]string{"Source", source},
		[2]string{"Ruleset", cfg.Meta.RulesetID},
	)

	codes := make([]string, 0, len(cfg.Categories))
	for code := range cfg.Categories {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	widths := []int{28, 22}
	PrintTableHeader(w, []string{"CATEGORY", "RULE"}, widths)
	for _, code := range codes {
		PrintTableRow(w, []string{code, cfg.Categories[code]}, widths)
	}
}
