package failure_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/wormhole/failure"
	"github.com/xraph/wormhole/store/memory"
)

func ctx() context.Context { return context.Background() }

func TestRecord(t *testing.T) {
	store := memory.New()
	svc := failure.NewService(store, nil)

	if err := svc.Record(ctx(), failure.OpEdit, "general", "200", "m1", errors.New("gateway timeout")); err != nil {
		t.Fatal(err)
	}

	entries, err := svc.List(ctx(), failure.ListOpts{Beam: "general"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Op != failure.OpEdit || e.ChannelID != "200" || e.SourceID != "m1" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Error != "gateway timeout" {
		t.Fatalf("error: got %q", e.Error)
	}
	if e.ID.Prefix() != "fail" {
		t.Fatalf("prefix: got %q", e.ID.Prefix())
	}

	got, err := svc.Get(ctx(), e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != e.ID {
		t.Fatal("ID mismatch")
	}

	count, _ := svc.Count(ctx())
	if count != 1 {
		t.Fatalf("count: got %d", count)
	}

	n, err := svc.Purge(ctx(), time.Now().Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("purged: got %d", n)
	}
}

func TestListOptsMatch(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)
	e := &failure.Entry{Beam: "general", ChannelID: "100", FailedAt: now}

	tests := []struct {
		name string
		opts failure.ListOpts
		want bool
	}{
		{"empty", failure.ListOpts{}, true},
		{"beam match", failure.ListOpts{Beam: "general"}, true},
		{"beam mismatch", failure.ListOpts{Beam: "art"}, false},
		{"channel mismatch", failure.ListOpts{ChannelID: "200"}, false},
		{"from", failure.ListOpts{From: &earlier}, true},
		{"to", failure.ListOpts{To: &earlier}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.Match(e); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}
