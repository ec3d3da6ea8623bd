package storage

import (
	"errors"
	"os"
	"testing"

	"github.com/starford/docvault/internal/apperr"
)

func TestMove(t *testing.T) {
	s := tempVault(t)
	mustWrite(t, s, "a.md", "a")

	got, err := s.Move(vid, "a.md", "archive")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if got != "/archive/a.md" {
		t.Errorf("Move = %q, want /archive/a.md", got)
	}
	if _, err := s.ReadText(vid, "a.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("source still present: %v", err)
	}
	if content, err := s.ReadText(vid, got); err != nil || content != "a" {
		t.Errorf("ReadText = %q, %v", content, err)
	}
}

func TestMoveFolder(t *testing.T) {
	s := tempVault(t)
	mustWrite(t, s, "docs/sub/b.md", "b")

	got, err := s.Move(vid, "/docs/sub", "/")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if got != "/sub" {
		t.Errorf("Move = %q, want /sub", got)
	}
	if content, err := s.ReadText(vid, "sub/b.md"); err != nil || content != "b" {
		t.Errorf("ReadText = %q, %v", content, err)
	}
}

func TestMoveConflictLeavesBothUntouched(t *testing.T) {
	s := tempVault(t)
	mustWrite(t, s, "a.md", "source")
	mustWrite(t, s, "dst/a.md", "existing")

	_, err := s.Move(vid, "a.md", "dst")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if content, _ := s.ReadText(vid, "a.md"); content != "source" {
		t.Errorf("source = %q", content)
	}
	if content, _ := s.ReadText(vid, "dst/a.md"); content != "existing" {
		t.Errorf("destination = %q", content)
	}
}

func TestMoveOntoItselfIsNoop(t *testing.T) {
	s := tempVault(t)
	mustWrite(t, s, "docs/a.md", "a")

	got, err := s.Move(vid, "docs/a.md", "docs")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if got != "/docs/a.md" {
		t.Errorf("Move = %q, want /docs/a.md", got)
	}
	if content, err := s.ReadText(vid, got); err != nil || content != "a" {
		t.Errorf("ReadText = %q, %v", content, err)
	}
}

func TestMoveIntoDescendantRejected(t *testing.T) {
	s := tempVault(t)
	mustWrite(t, s, "docs/a.md", "a")

	if _, err := s.Move(vid, "docs", "docs/inner"); err == nil {
		t.Fatal("expected error")
	}
	abs, _ := s.Resolve(vid, "docs/inner")
	if _, err := os.Stat(abs); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("destination created: %v", err)
	}
}

func TestMoveMissingSource(t *testing.T) {
	s := tempVault(t)
	if _, err := s.Move(vid, "ghost.md", "/"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRenameIfAbsent(t *testing.T) {
	dir := t.TempDir()
	a, b := dir+"/a", dir+"/b"
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte(p), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := renameIfAbsent(a, b); !errors.Is(err, os.ErrExist) {
		t.Errorf("expected ErrExist, got %v", err)
	}
	if err := renameIfAbsent(a, dir+"/c"); err != nil {
		t.Errorf("renameIfAbsent: %v", err)
	}
}
