// Package logs reads daemon log files for the jobs and daemon status
// commands. Tailing is file-based; callers poll with the returned offset.
package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	tailPollInterval = 200 * time.Millisecond
	maxLineBytes     = 1024 * 1024
)

// TailOptions control how much of a log file Tail returns. A negative
// Offset asks for the last Limit lines; a non-negative Offset resumes
// reading at that byte position.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
}

// TailResult carries the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from a log file. A missing file yields an empty result
// so callers can poll while the daemon is still creating it.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	opts.Wait = max(opts.Wait, 0)

	res, err := readTail(path, opts)
	if err != nil {
		return TailResult{}, err
	}
	if opts.Follow && opts.Wait > 0 && len(res.Lines) == 0 {
		return pollForLines(ctx, path, res.Offset, opts.Wait)
	}
	return res, nil
}

// readTail performs one read pass over the file per the options.
func readTail(path string, opts TailOptions) (TailResult, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return TailResult{}, fmt.Errorf("stat log file: %w", err)
	}
	if st.IsDir() {
		return TailResult{}, fmt.Errorf("log path %q is a directory", path)
	}

	switch {
	case opts.Offset < 0 && opts.Limit <= 0:
		// Tailing without a line budget just reports the end offset.
		end, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			return TailResult{}, fmt.Errorf("seek log file: %w", err)
		}
		return TailResult{Offset: end}, nil
	case opts.Offset < 0:
		return scanLines(f, opts.Limit)
	default:
		start := min(opts.Offset, st.Size())
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			return TailResult{}, fmt.Errorf("seek log file: %w", err)
		}
		return scanLines(f, 0)
	}
}

// scanLines reads complete lines from the file's current position, keeping
// only the trailing keep lines when keep is positive. The returned offset
// follows the last byte consumed.
func scanLines(f *os.File, keep int) (TailResult, error) {
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out []string
	for sc.Scan() {
		out = append(out, sc.Text())
		if keep > 0 && len(out) > keep {
			copy(out, out[1:])
			out = out[:keep]
		}
	}
	if err := sc.Err(); err != nil {
		return TailResult{}, fmt.Errorf("read log file: %w", err)
	}

	next, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return TailResult{}, fmt.Errorf("determine log offset: %w", err)
	}
	return TailResult{Lines: out, Offset: next}, nil
}

// pollForLines re-reads from offset until a line shows up, the wait
// elapses, or the context is cancelled.
func pollForLines(ctx context.Context, path string, offset int64, wait time.Duration) (TailResult, error) {
	stopAt := time.Now().Add(wait)
	tick := time.NewTicker(tailPollInterval)
	defer tick.Stop()

	for {
		res, err := readTail(path, TailOptions{Offset: offset})
		if err != nil {
			return TailResult{Offset: offset}, err
		}
		if len(res.Lines) > 0 || time.Now().After(stopAt) {
			return res, nil
		}

		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-tick.C:
		}
	}
}
