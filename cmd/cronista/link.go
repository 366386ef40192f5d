package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cronista/internal/config"
	"cronista/internal/link"
	"cronista/internal/store"
)

func linkCmd() *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Resolve unlinked records",
	}
	laws := &cobra.Command{
		Use:   "laws",
		Short: "Link laws to their origin events (dry-run by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLinkLaws(apply)
		},
	}
	laws.Flags().BoolVar(&apply, "apply", false, "Write accepted linkages instead of previewing them")
	cmd.AddCommand(laws)
	return cmd
}

func runLinkLaws(apply bool) error {
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

	n, err := fixLaws(st, cols, h, apply, logger)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(os.Stdout, "No laws needed linking.")
	}
	return nil
}

// fixLaws runs the linkage engine and, in apply mode, writes the accepted
// matches back to laws.json. Shared by `link laws` and `fix --laws-only`.
func fixLaws(st *store.Store, cols *store.Collections, h *config.Heuristics, apply bool, logger *zap.Logger) (int, error) {
	result := link.New(h).Run(cols)

	for _, m := range result.Matches {
		fmt.Fprintf(os.Stdout, "law %s -> event %s (score %d: date=%d enacted_by=%d proposed_by=%d title=%d tags=%d type=%d), %d related\n",
			m.LawID, m.EventID, m.Breakdown.Total,
			m.Breakdown.DateExact, m.Breakdown.EnactedBy, m.Breakdown.ProposedBy,
			m.Breakdown.TitleOverlap, m.Breakdown.TagOverlap, m.Breakdown.PrivilegedType,
			len(m.RelatedEvents),
		)
	}
	for _, u := range result.Unresolved {
		if u.BestEvent == "" {
			fmt.Fprintf(os.Stdout, "law %s: unresolved (no candidates)\n", u.LawID)
			continue
		}
		fmt.Fprintf(os.Stdout, "law %s: unresolved (best %s scored %d, threshold %d)\n", u.LawID, u.BestEvent, u.BestScore, h.Linkage.Threshold)
	}

	if !apply {
		return len(result.Matches), nil
	}

	applied := link.Apply(cols, result, logger)
	if applied > 0 {
		if err := st.SaveLaws(cols.Laws); err != nil {
			return 0, err
		}
	}
	return applied, nil
}
