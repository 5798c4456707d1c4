package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/market-intel/internal/export"
	"github.com/sells-group/market-intel/internal/model"
)

var (
	analyzeFormat string
	analyzeQuiet  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <market sector>",
	Short: "Run a full analysis for one market sector",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !validFormat(analyzeFormat) {
			return eris.Errorf("unknown format %q", analyzeFormat)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		sector := strings.Join(args, " ")
		var sub func(model.ProgressEvent)
		if !analyzeQuiet {
			sub = progressPrinter(cmd.ErrOrStderr())
		}

		result, err := env.Orchestrator.Run(ctx, sector, sub)
		if err != nil {
			return eris.Wrap(err, "analysis failed")
		}

		zap.L().Info("analysis complete",
			zap.String("run_id", result.RunID),
			zap.String("sector", result.MarketSector),
			zap.Int("companies", len(result.Scores)),
		)
		return renderResult(cmd.OutOrStdout(), result, analyzeFormat)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "table", "output format: table, json, yaml or csv")
	analyzeCmd.Flags().BoolVarP(&analyzeQuiet, "quiet", "q", false, "suppress progress lines")
	rootCmd.AddCommand(analyzeCmd)
}

func validFormat(f string) bool {
	switch f {
	case "table", "json", "yaml", "csv":
		return true
	}
	return false
}

// progressPrinter writes one line per progress event.
func progressPrinter(w io.Writer) func(model.ProgressEvent) {
	return func(e model.ProgressEvent) {
		prefix := string(e.Stage)
		if e.Substage != "" {
			prefix += "/" + e.Substage
		}
		fmt.Fprintf(w, "[%s] %s\n", prefix, e.Message)
	}
}

func renderResult(w io.Writer, result *model.AnalysisResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(result)
	case "csv":
		b, err := export.CSV(result.Scores)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	default:
		renderTable(w, result)
		return nil
	}
}

func renderTable(w io.Writer, result *model.AnalysisResult) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.Style().Format.Footer = text.FormatDefault
	tw.Style().Title.Format = text.FormatDefault
	tw.SetTitle(result.MarketSector)
	tw.AppendHeader(table.Row{"#", "Company", "Website", "Model", "Vision", "Execution", "Quadrant"})
	for i, s := range result.Scores {
		tw.AppendRow(table.Row{i + 1, s.Company, s.URL, s.Raw.BusinessModel, s.Vision, s.Execution, s.Quadrant})
	}
	threshold := 0
	if result.Charts != nil {
		threshold = result.Charts.Threshold
	}
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d companies", len(result.Scores)), "", "", "", "", fmt.Sprintf("threshold %d", threshold)})
	tw.Render()

	if u := result.Usage; u != nil && u.Calls > 0 {
		fmt.Fprintf(w, "LLM: %d calls, %d in / %d out tokens, ~$%.4f\n", u.Calls, u.InputTokens, u.OutputTokens, u.CostUSD)
	}
}
