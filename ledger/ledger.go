// Package ledger keeps the append-only record of every submission ID the bot
// has ever drafted.
//
// A ledger file belongs to a single process. Two processes appending to the
// same file will not see each other's entries and may draft the same ID.
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Ledger is a file of drafted IDs plus an in-memory index of everything read
// from it or appended to it during this run.
type Ledger struct {
	path string
	file *os.File
	ids  map[int]struct{}
}

// Open opens the ledger at path, creating it (and its directory) if needed,
// and loads its entries.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	ids, err := Parse(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	l := &Ledger{
		path: path,
		file: file,
		ids:  make(map[int]struct{}, len(ids)),
	}
	for _, id := range ids {
		l.ids[id] = struct{}{}
	}

	return l, nil
}

// Parse reads ledger entries. Entries are decimal IDs separated by newlines;
// a trailing comma on each entry is accepted, as is the older format of
// several comma-separated IDs on one line. Tokens that aren't positive
// integers are skipped.
func Parse(r io.Reader) ([]int, error) {
	var ids []int

	// Legacy ledgers hold every ID on one line, so lines are unbounded.
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		fields := strings.FieldsFunc(line, func(c rune) bool {
			return c == ',' || c == ' ' || c == '\t' || c == '\r' || c == '\n'
		})
		for _, field := range fields {
			id, convErr := strconv.Atoi(field)
			if convErr != nil || id < 1 {
				continue
			}
			ids = append(ids, id)
		}

		if errors.Is(err, io.EOF) {
			return ids, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Path returns the ledger's file path.
func (l *Ledger) Path() string {
	return l.path
}

// Contains reports whether id has ever been drafted.
func (l *Ledger) Contains(id int) bool {
	_, ok := l.ids[id]
	return ok
}

// Append records id as drafted. The entry is synced to disk before Append
// returns so a restarted process will not draft it again.
func (l *Ledger) Append(id int) error {
	if l.Contains(id) {
		return nil
	}

	if _, err := fmt.Fprintf(l.file, "%d,\n", id); err != nil {
		return fmt.Errorf("failed to append to ledger: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync ledger: %w", err)
	}

	l.ids[id] = struct{}{}
	return nil
}

// Len returns the number of distinct drafted IDs.
func (l *Ledger) Len() int {
	return len(l.ids)
}

// Close closes the underlying file.
func (l *Ledger) Close() error {
	return l.file.Close()
}
