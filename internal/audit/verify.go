package audit

import (
	"encoding/json"
	"fmt"
	"os"
)

// ChainError reports the first entry that breaks the log's chain. Kind and
// Command come from the offending entry as written, so after tampering they
// show the altered text.
type ChainError struct {
	Line    int
	Seq     uint64
	Kind    string
	Command string
	Problem string
}

func (e *ChainError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Problem)
	}
	return fmt.Sprintf("line %d (seq %d, %s %q): %s", e.Line, e.Seq, e.Kind, e.Command, e.Problem)
}

// Verify reads the audit log and checks sequence numbers and the hash chain.
// A broken chain is reported as a *ChainError for the first bad entry.
func Verify(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	expectedPrev := genesisHash()
	var prevSeq uint64
	for i, line := range splitLines(data) {
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return &ChainError{Line: i + 1, Problem: "invalid JSON: " + err.Error()}
		}
		broken := func(format string, args ...any) error {
			return &ChainError{
				Line:    i + 1,
				Seq:     entry.Seq,
				Kind:    entry.Kind,
				Command: entry.Command,
				Problem: fmt.Sprintf(format, args...),
			}
		}
		switch computed := computeHash(entry); {
		case entry.Seq != prevSeq+1:
			return broken("sequence gap: expected %d", prevSeq+1)
		case entry.PrevHash != expectedPrev:
			return broken("prev_hash mismatch: expected %s, got %s", short(expectedPrev), short(entry.PrevHash))
		case entry.Hash != computed:
			return broken("hash mismatch: expected %s, got %s", short(computed), short(entry.Hash))
		}
		expectedPrev = entry.Hash
		prevSeq = entry.Seq
	}
	return nil
}

// Tail returns up to n of the most recent dispatches. Unparseable lines are
// skipped.
func Tail(path string, n int) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	lines := splitLines(data)
	n = max(0, min(n, len(lines)))

	entries := make([]Entry, 0, n)
	for _, line := range lines[len(lines)-n:] {
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func short(hash string) string {
	if len(hash) > 16 {
		return hash[:16] + "..."
	}
	return hash
}
