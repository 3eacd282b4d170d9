package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestLedger_RecordAndStats(t *testing.T) {
	l, err := OpenLedger(filepath.Join(t.TempDir(), "relays.db"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	ctx := context.Background()
	entries := []RelayEntry{
		{Filename: "image.png", SourceURL: "https://sinch.example/m.png", Direction: "sinch-to-front", Size: 100},
		{Filename: "y.png", SourceURL: "https://front.example/y.png", Direction: "front-to-sinch", Size: 250},
	}
	for _, e := range entries {
		if err := l.Record(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Relays != 2 {
		t.Errorf("expected 2 relays, got %d", stats.Relays)
	}
	if stats.TotalBytes != 350 {
		t.Errorf("expected 350 bytes, got %d", stats.TotalBytes)
	}
}

func TestLedger_EmptyStats(t *testing.T) {
	l, err := OpenLedger(filepath.Join(t.TempDir(), "relays.db"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	stats, err := l.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Relays != 0 || stats.TotalBytes != 0 {
		t.Errorf("expected empty stats, got %+v", stats)
	}
}
