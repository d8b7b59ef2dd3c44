package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"stagehand/internal/logs"
)

func writeLog(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "stagehand.log")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTailMissingFileIsEmpty(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "absent.log"), logs.TailOptions{Offset: -1, Limit: 10})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestTailReturnsLastLines(t *testing.T) {
	path := writeLog(t, t.TempDir(), "one\ntwo\nthree\nfour\nfive\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 3})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	want := []string{"three", "four", "five"}
	if len(result.Lines) != len(want) {
		t.Fatalf("expected %d lines, got %v", len(want), result.Lines)
	}
	for i, line := range want {
		if result.Lines[i] != line {
			t.Fatalf("line %d: expected %q, got %q", i, line, result.Lines[i])
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if result.Offset != info.Size() {
		t.Fatalf("expected offset %d, got %d", info.Size(), result.Offset)
	}
}

func TestTailResumesFromOffset(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "first\nsecond\n")

	initial, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 10})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("third\nfourth\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	next, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: initial.Offset, Limit: 10})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(next.Lines) != 2 || next.Lines[0] != "third" || next.Lines[1] != "fourth" {
		t.Fatalf("expected the appended lines, got %v", next.Lines)
	}
}

func TestTailZeroLimitSeeksToEnd(t *testing.T) {
	path := writeLog(t, t.TempDir(), "one\ntwo\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 0})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(result.Lines) != 0 {
		t.Fatalf("expected no lines, got %v", result.Lines)
	}
	if result.Offset == 0 {
		t.Fatal("expected offset at end of file")
	}
}

func TestTailFollowWaitsForNewLines(t *testing.T) {
	path := writeLog(t, t.TempDir(), "existing\n")

	initial, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 10})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}

	go func() {
		time.Sleep(150 * time.Millisecond)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = f.WriteString("late arrival\n")
	}()

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: initial.Offset, Limit: 10, Follow: true, Wait: 5 * time.Second})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(result.Lines) != 1 || result.Lines[0] != "late arrival" {
		t.Fatalf("expected the appended line, got %v", result.Lines)
	}
}
