package main

import (
	"fmt"

	"github.com/javajack/xlcalc"
	"github.com/spf13/cobra"
)

func newLintCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lint FILE",
		Short: "Report formula problems; exits non-zero when errors are found",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := openWorkbook(cmd, flags, args[0])
			if err != nil {
				return err
			}
			issues := wb.Validate()
			errs := 0
			for _, issue := range issues {
				fmt.Fprintln(cmd.OutOrStdout(), issue)
				if issue.Severity == xlcalc.SeverityError {
					errs++
				}
			}
			if errs > 0 {
				return fmt.Errorf("%d formula error(s)", errs)
			}
			if len(issues) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no issues")
			}
			return nil
		},
	}
}

func newDescribeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "describe FILE",
		Short: "Print every formula with its dependencies and dependents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := openWorkbook(cmd, flags, args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), wb.Describe())
			return nil
		},
	}
}
