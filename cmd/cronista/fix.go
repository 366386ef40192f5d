package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cronista/internal/normalize"
)

func fixCmd() *cobra.Command {
	var apply, rollsOnly, lawsOnly, typesOnly bool
	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Apply automated corrections (dry-run by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scopes := 0
			for _, v := range []bool{rollsOnly, lawsOnly, typesOnly} {
				if v {
					scopes++
				}
			}
			if scopes > 1 {
				return fmt.Errorf("at most one of --rolls-only, --laws-only, --types-only")
			}
			return runFix(apply, rollsOnly, lawsOnly, typesOnly)
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "Write fixes instead of previewing them")
	cmd.Flags().BoolVar(&rollsOnly, "rolls-only", false, "Only normalize roll records")
	cmd.Flags().BoolVar(&lawsOnly, "laws-only", false, "Only link law origins")
	cmd.Flags().BoolVar(&typesOnly, "types-only", false, "Only normalize event types")
	return cmd
}

func runFix(apply, rollsOnly, lawsOnly, typesOnly bool) error {
	_, h, st, err := loadProject()
	if err != nil {
		return err
	}
	cols, err := st.LoadAll()
	if err != nil {
		return err
	}

	var logger *zap.Logger
	if apply {
		logger, err = newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()
	}

	all := !rollsOnly && !lawsOnly && !typesOnly
	changed := 0

	if all || rollsOnly {
		result := normalize.New(h).Run(cols.Rolls)
		printRollResult(result)
		changed += len(result.Changes) + len(result.Dropped)
		if apply {
			normalize.Log(result, logger)
			if err := st.SaveRolls(cols.Rolls); err != nil {
				return err
			}
		}
	}

	if all || lawsOnly {
		n, err := fixLaws(st, cols, h, apply, logger)
		if err != nil {
			return err
		}
		changed += n
	}

	if all || typesOnly {
		fixes := normalize.NormalizeEventTypes(cols.Events, h)
		for _, f := range fixes {
			fmt.Fprintf(os.Stdout, "event %s: type %q -> %q\n", f.EventID, f.From, f.To)
		}
		changed += len(fixes)
		if apply && len(fixes) > 0 {
			for _, f := range fixes {
				logger.Info("event type normalized",
					zap.String("event", f.EventID),
					zap.String("from", f.From),
					zap.String("to", f.To),
				)
			}
			if err := st.SaveEvents(cols.Events); err != nil {
				return err
			}
		}
	}

	if changed == 0 {
		fmt.Fprintln(os.Stdout, "Nothing to fix.")
		return nil
	}
	if !apply {
		fmt.Fprintf(os.Stdout, "\n%d fixes previewed; re-run with --apply to write them.\n", changed)
	} else {
		fmt.Fprintf(os.Stdout, "\n%d fixes applied.\n", changed)
	}
	return nil
}

func printRollResult(result *normalize.Result) {
	for _, ch := range result.Changes {
		fmt.Fprintf(os.Stdout, "roll %s: %s %q -> %q\n", ch.RollID, ch.Field, ch.From, ch.To)
	}
	for _, id := range result.Dropped {
		fmt.Fprintf(os.Stdout, "roll %s: dropped (not a genuine stochastic draw)\n", id)
	}
	for _, err := range result.Errors {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
}
