package main

import (
	"encoding/json"
	"fmt"

	"github.com/javajack/xlcalc"
	"github.com/spf13/cobra"
)

func newCalcCmd(flags *rootFlags) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "calc FILE",
		Short: "Recalculate a workbook and print every non-empty cell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := openWorkbook(cmd, flags, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, wb)
			}
			out := cmd.OutOrStdout()
			for c := range wb.Cells() {
				if c.Kind() == xlcalc.KindEmpty {
					continue
				}
				ref := c.Ref()
				text, err := wb.GetDisplayText(ref.Sheet, ref.Row, ref.Col)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%s\n", ref, text)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print an address to value JSON object")
	return cmd
}

func writeJSON(cmd *cobra.Command, wb *xlcalc.Workbook) error {
	values := make(map[string]any)
	for c := range wb.Cells() {
		if c.Kind() != xlcalc.KindEmpty {
			values[c.Ref().String()] = c.Value().Any()
		}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(values)
}
