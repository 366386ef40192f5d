package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"cronista/internal/check"
)

func checkCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run consistency checks over the collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the report as JSON")
	return cmd
}

func runCheck(jsonOut bool) error {
	_, h, st, err := loadProject()
	if err != nil {
		return err
	}
	cols, err := st.LoadAll()
	if err != nil {
		return err
	}

	report := check.New(h).Run(cols)

	if jsonOut {
		payload, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		fmt.Fprintln(os.Stdout, string(payload))
		if len(report.Issues) > 0 {
			return fmt.Errorf("%d issues found", len(report.Issues))
		}
		return nil
	}

	if len(report.Issues) == 0 {
		fmt.Fprintln(os.Stdout, "No issues found.")
		return nil
	}

	byCode := report.ByCode()
	codes := make([]string, 0, len(byCode))
	for code := range byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		issues := byCode[code]
		fmt.Fprintf(os.Stdout, "%s (%d):\n", code, len(issues))
		for _, issue := range issues {
			fmt.Fprintf(os.Stdout, "  - [%s] %s/%s: %s\n", issue.Severity, issue.Collection, issue.RecordID, issue.Message)
		}
	}

	errors := report.Errors()
	warnings := report.Warnings()
	fmt.Fprintf(os.Stdout, "\n%d errors, %d warnings\n", len(errors), len(warnings))
	return fmt.Errorf("%d issues found", len(report.Issues))
}
