package asset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mesh.stl")
	other := filepath.Join(dir, "other.stl")
	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	changed := make(chan string, 16)
	done := make(chan error)
	go func() { done <- w.Run(ctx, func(p string) { changed <- p }) }()

	if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("solid"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case p := <-changed:
		abs, _ := filepath.Abs(path)
		if p != abs {
			t.Errorf("reported %q, want %q", p, abs)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	cancel()
	if err := <-done; err != nil {
		t.Error(err)
	}
}
