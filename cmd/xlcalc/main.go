// Command xlcalc loads a workbook, recalculates it and prints values,
// lint findings or the dependency graph. It also offers an interactive REPL.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/javajack/xlcalc"
	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

type rootFlags struct {
	verbose  bool
	decimals int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{decimals: -1}
	rootCmd := &cobra.Command{
		Use:   "xlcalc",
		Short: "Spreadsheet formula engine",
		Long: `Recalculate spreadsheet formulas with cross-sheet references.

Commands:
  calc      Recalculate a workbook and print every cell value.
  lint      Report broken references, cycles and formula errors.
  describe  Print each formula with the cells it reads and is read by.
  repl      Edit a workbook interactively.

Input files:
  .json     Address map: {"Sheet1!A1": "=B1+1", "Sheet1!B1": 2}
  .xlsx     Excel workbook; formulas are read, cached values ignored

Examples:
  xlcalc calc budget.json
  xlcalc calc --json report.xlsx
  xlcalc lint report.xlsx`,
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log recalculation details to stderr")
	rootCmd.PersistentFlags().IntVar(&flags.decimals, "decimals", -1, "Show numbers with a fixed number of decimal places")

	rootCmd.AddCommand(
		newCalcCmd(flags),
		newLintCmd(flags),
		newDescribeCmd(flags),
		newReplCmd(flags),
	)
	return rootCmd
}

// options turns the global flags into workbook options.
func (f *rootFlags) options(stderr io.Writer) []xlcalc.Option {
	var opts []xlcalc.Option
	if f.verbose {
		handler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		opts = append(opts, xlcalc.WithLogger(slog.New(handler)))
	}
	if f.decimals >= 0 {
		opts = append(opts, xlcalc.WithFormatter(xlcalc.DecimalFormatter{Places: f.decimals, Thousands: true}))
	}
	return opts
}

func openWorkbook(cmd *cobra.Command, flags *rootFlags, path string) (*xlcalc.Workbook, error) {
	wb, err := xlcalc.Open(path, flags.options(cmd.ErrOrStderr())...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return wb, nil
}
