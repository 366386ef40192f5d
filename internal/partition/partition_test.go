package partition

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cronista/internal/store"
)

// fiftyEvents builds a monolith of 50 events across 5 chapters, ordered by
// chapter so the round trip reproduces it exactly.
func fiftyEvents() *store.Events {
	var records []store.Event
	for ch := 1; ch <= 5; ch++ {
		for i := 1; i <= 10; i++ {
			records = append(records, store.Event{
				ID:      fmt.Sprintf("ev_%02d_%02d", ch, i),
				Chapter: fmt.Sprintf("ch%02d", ch),
				Date:    fmt.Sprintf("1431-%02d-%02d", ch, i),
				Type:    "council",
				Summary: fmt.Sprintf("Chapter %d event %d.", ch, i),
			})
		}
	}
	return &store.Events{
		Meta:    &store.Meta{SchemaVersion: 1, NextID: 51},
		Records: records,
	}
}

func TestRoundTrip(t *testing.T) {
	original := fiftyEvents()

	parts := Split(original)
	if len(parts) != 5 {
		t.Fatalf("partitions = %d, want 5", len(parts))
	}
	merged := Merge(parts, original.Meta)

	if diff := cmp.Diff(original, merged); diff != "" {
		t.Fatalf("merge(split(x)) != x (-original +merged):\n%s", diff)
	}
	if diffs := Verify(original, merged); len(diffs) != 0 {
		t.Errorf("verify reported %d diffs on a clean round trip: %+v", len(diffs), diffs)
	}
}

func TestRoundTrip_OnDisk(t *testing.T) {
	original := fiftyEvents()
	dir := t.TempDir()

	if err := WriteSplit(dir, Split(original), original.Meta, false); err != nil {
		t.Fatalf("write split: %v", err)
	}

	parts, meta, err := ReadPartitions(dir)
	if err != nil {
		t.Fatalf("read partitions: %v", err)
	}
	merged := Merge(parts, meta)

	if diff := cmp.Diff(original, merged); diff != "" {
		t.Fatalf("on-disk round trip mismatch (-original +merged):\n%s", diff)
	}
}

func TestWriteSplit_RefusesOverwrite(t *testing.T) {
	original := fiftyEvents()
	dir := t.TempDir()

	if err := WriteSplit(dir, Split(original), original.Meta, false); err != nil {
		t.Fatalf("first write: %v", err)
	}
	err := WriteSplit(dir, Split(original), original.Meta, false)
	if !errors.Is(err, ErrPartitionsExist) {
		t.Fatalf("err = %v, want ErrPartitionsExist", err)
	}
	if err := WriteSplit(dir, Split(original), original.Meta, true); err != nil {
		t.Fatalf("forced write: %v", err)
	}
}

// A forced re-split must not leave partitions of vanished chapters behind,
// or the next merge resurrects their records.
func TestWriteSplit_ForceRemovesStalePartitions(t *testing.T) {
	dir := t.TempDir()
	before := &store.Events{Records: []store.Event{
		{ID: "ev_001", Chapter: "ch01", Summary: "Kept."},
		{ID: "ev_002", Chapter: "ch02", Summary: "Later removed."},
	}}
	if err := WriteSplit(dir, Split(before), nil, false); err != nil {
		t.Fatalf("first write: %v", err)
	}

	after := &store.Events{Records: []store.Event{
		{ID: "ev_001", Chapter: "ch01", Summary: "Kept."},
	}}
	if err := WriteSplit(dir, Split(after), nil, true); err != nil {
		t.Fatalf("forced write: %v", err)
	}

	parts, meta, err := ReadPartitions(dir)
	if err != nil {
		t.Fatalf("read partitions: %v", err)
	}
	if len(parts) != 1 {
		t.Fatalf("partitions = %v, want only ch01", parts)
	}
	merged := Merge(parts, meta)
	if len(merged.Records) != 1 || merged.Records[0].ID != "ev_001" {
		t.Errorf("merged = %+v, removed record resurfaced", merged.Records)
	}
}

func TestSplit_EmptyChapterGrouped(t *testing.T) {
	col := &store.Events{Records: []store.Event{
		{ID: "ev_001", Chapter: "", Summary: "Orphan."},
		{ID: "ev_002", Chapter: "ch01", Summary: "Placed."},
	}}
	parts := Split(col)
	if len(parts["unassigned"]) != 1 {
		t.Errorf("unassigned partition = %+v", parts["unassigned"])
	}
}

func TestVerify_ReportsFieldDiffs(t *testing.T) {
	original := fiftyEvents()
	parts := Split(original)

	// Corrupt one field and drop one record from the partitions.
	parts["ch01"][0].Summary = "Rewritten by hand."
	parts["ch02"] = parts["ch02"][1:]

	merged := Merge(parts, original.Meta)
	diffs := Verify(original, merged)
	if len(diffs) == 0 {
		t.Fatal("expected diffs")
	}

	var sawSummary, sawMissing bool
	for _, d := range diffs {
		if d.RecordID == "ev_01_01" && d.Field != "" {
			sawSummary = true
		}
		if d.RecordID == "ev_02_01" && d.Detail == "missing from merged partitions" {
			sawMissing = true
		}
	}
	if !sawSummary {
		t.Errorf("summary diff not reported: %+v", diffs)
	}
	if !sawMissing {
		t.Errorf("missing record not reported: %+v", diffs)
	}
}

func TestVerify_MetaMismatch(t *testing.T) {
	original := fiftyEvents()
	merged := Merge(Split(original), &store.Meta{SchemaVersion: 1, NextID: 99})
	diffs := Verify(original, merged)
	if len(diffs) != 1 || diffs[0].Field != "meta" {
		t.Fatalf("diffs = %+v, want one meta diff", diffs)
	}
}

func TestSummarize(t *testing.T) {
	original := fiftyEvents()
	parts := Split(original)
	status := Summarize(original, parts, original.Meta)
	if status.MonolithRecords != 50 || status.PartitionRecords != 50 {
		t.Errorf("counts = %d/%d, want 50/50", status.MonolithRecords, status.PartitionRecords)
	}
	if !status.InSync || !status.SidecarPresent {
		t.Errorf("status = %+v", status)
	}
}
