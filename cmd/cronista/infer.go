package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"cronista/internal/infer"
)

func inferCmd() *cobra.Command {
	var apply bool
	var characterID string
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Derive character attributes from event history (dry-run by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfer(apply, characterID)
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "Write derived attributes instead of previewing them")
	cmd.Flags().StringVar(&characterID, "character", "", "Restrict inference to one character id")
	return cmd
}

func runInfer(apply bool, characterID string) error {
	_, h, st, err := loadProject()
	if err != nil {
		return err
	}
	cols, err := st.LoadAll()
	if err != nil {
		return err
	}

	engine := infer.New(h)
	var result *infer.Result
	if characterID != "" {
		result = engine.Run(cols, characterID)
	} else {
		result = engine.Run(cols)
	}

	if len(result.Diffs) == 0 {
		fmt.Fprintln(os.Stdout, "Nothing to infer.")
		return nil
	}

	for _, diff := range result.Diffs {
		fmt.Fprintf(os.Stdout, "%s:\n", diff.CharacterID)
		if diff.Location != "" {
			fmt.Fprintf(os.Stdout, "  location: %s\n", diff.Location)
		}
		if diff.CurrentTask != "" {
			fmt.Fprintf(os.Stdout, "  current_task: %s\n", diff.CurrentTask)
		}
		if len(diff.NewTraits) > 0 {
			fmt.Fprintf(os.Stdout, "  traits: +%s\n", strings.Join(diff.NewTraits, ", +"))
		}
		if len(diff.NewFactions) > 0 {
			fmt.Fprintf(os.Stdout, "  factions: +%s\n", strings.Join(diff.NewFactions, ", +"))
		}
	}

	if !apply {
		fmt.Fprintf(os.Stdout, "\n%d characters would change; re-run with --apply to write.\n", len(result.Diffs))
		return nil
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	applied := infer.Apply(cols, result, logger)
	if err := st.SaveCharacters(cols.Characters); err != nil {
		return err
	}
	if err := st.SaveFactions(cols.Factions); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\n%d characters updated.\n", applied)
	return nil
}
