package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"cronista/internal/partition"
)

func partitionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "partition",
		Short: "Maintain the per-chapter partitioned form of the events collection",
	}
	cmd.AddCommand(partitionSplitCmd())
	cmd.AddCommand(partitionMergeCmd())
	cmd.AddCommand(partitionVerifyCmd())
	cmd.AddCommand(partitionStatusCmd())
	return cmd
}

func partitionSplitCmd() *cobra.Command {
	var force, dryRun bool
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split the monolithic events collection into per-chapter files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPartitionSplit(force, dryRun)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing partitions")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be written without writing")
	return cmd
}

func runPartitionSplit(force, dryRun bool) error {
	cfg, _, st, err := loadProject()
	if err != nil {
		return err
	}
	events, err := st.LoadEvents()
	if err != nil {
		return err
	}

	parts := partition.Split(events)
	keys := make([]string, 0, len(parts))
	for key := range parts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(os.Stdout, "events_%s.json: %d records\n", key, len(parts[key]))
	}

	if dryRun {
		fmt.Fprintf(os.Stdout, "\n%d partitions would be written to %s.\n", len(parts), cfg.Data.PartitionsDir)
		return nil
	}

	if err := partition.WriteSplit(cfg.Data.PartitionsDir, parts, events.Meta, force); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\n%d partitions written to %s.\n", len(parts), cfg.Data.PartitionsDir)
	return nil
}

func partitionMergeCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge the per-chapter partitions back into the monolithic collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPartitionMerge(dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be written without writing")
	return cmd
}

func runPartitionMerge(dryRun bool) error {
	cfg, _, st, err := loadProject()
	if err != nil {
		return err
	}

	parts, meta, err := partition.ReadPartitions(cfg.Data.PartitionsDir)
	if err != nil {
		return err
	}
	merged := partition.Merge(parts, meta)
	fmt.Fprintf(os.Stdout, "%d records from %d partitions\n", len(merged.Records), len(parts))

	if dryRun {
		fmt.Fprintln(os.Stdout, "Dry run; monolith not written.")
		return nil
	}

	if err := st.SaveEvents(merged); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, "Monolithic events collection written.")
	return nil
}

func partitionVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the monolith and partitions are equivalent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPartitionVerify()
		},
	}
}

func runPartitionVerify() error {
	cfg, _, st, err := loadProject()
	if err != nil {
		return err
	}
	events, err := st.LoadEvents()
	if err != nil {
		return err
	}
	parts, meta, err := partition.ReadPartitions(cfg.Data.PartitionsDir)
	if err != nil {
		return err
	}

	diffs := partition.Verify(events, partition.Merge(parts, meta))
	if len(diffs) == 0 {
		fmt.Fprintln(os.Stdout, "Monolith and partitions are equivalent.")
		return nil
	}
	for _, d := range diffs {
		fmt.Fprintf(os.Stdout, "  - %s %s: %s\n", d.RecordID, d.Field, d.Detail)
	}
	return fmt.Errorf("round-trip mismatch: %d differing fields", len(diffs))
}

func partitionStatusCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize monolith vs partitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPartitionStatus(jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the status as JSON")
	return cmd
}

func runPartitionStatus(jsonOut bool) error {
	cfg, _, st, err := loadProject()
	if err != nil {
		return err
	}
	events, err := st.LoadEvents()
	if err != nil {
		return err
	}
	parts, meta, err := partition.ReadPartitions(cfg.Data.PartitionsDir)
	if err != nil {
		return err
	}

	status := partition.Summarize(events, parts, meta)

	if jsonOut {
		payload, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding status: %w", err)
		}
		fmt.Fprintln(os.Stdout, string(payload))
		return nil
	}

	fmt.Fprintf(os.Stdout, "monolith: %d records\n", status.MonolithRecords)
	fmt.Fprintf(os.Stdout, "partitions: %d records in %d files\n", status.PartitionRecords, len(status.Partitions))
	keys := make([]string, 0, len(status.Partitions))
	for key := range status.Partitions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(os.Stdout, "  %s: %d\n", key, status.Partitions[key])
	}
	fmt.Fprintf(os.Stdout, "sidecar: %v\n", status.SidecarPresent)
	fmt.Fprintf(os.Stdout, "in sync: %v\n", status.InSync)
	return nil
}
