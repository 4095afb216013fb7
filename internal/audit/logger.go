package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const genesisInput = "neoshell-genesis"

// Logger is an append-only, hash-chained audit log writer. It is safe for
// concurrent use.
type Logger struct {
	mu       sync.Mutex
	path     string
	seq      uint64
	prevHash string
}

// NewLogger opens or creates an audit log at the given path and resumes the
// hash chain from its last entry.
func NewLogger(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}

	l := &Logger{path: path, prevHash: genesisHash()}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	if lines := splitLines(data); len(lines) > 0 {
		var last Entry
		if err := json.Unmarshal(lines[len(lines)-1], &last); err != nil {
			return nil, fmt.Errorf("audit log %s: last entry unreadable: %w", path, err)
		}
		l.seq = last.Seq
		l.prevHash = last.Hash
	}
	return l, nil
}

// Log appends one entry for r.
func (l *Logger) Log(r Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		Seq:      l.seq + 1,
		Time:     time.Now().UTC(),
		PrevHash: l.prevHash,
		Command:  r.Command,
		Kind:     r.Kind,
		Programs: r.Programs,
		ExitCode: r.ExitCode,
		Failure:  r.Failure,
		PID:      r.PID,
		Duration: float64(r.Duration.Microseconds()) / 1000.0,
		Cwd:      r.Cwd,
	}
	entry.Hash = computeHash(entry)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}

	// Advance the chain only once the entry is on disk.
	l.seq = entry.Seq
	l.prevHash = entry.Hash
	return nil
}

// Path returns the audit log file path.
func (l *Logger) Path() string {
	return l.path
}

func genesisHash() string {
	h := sha256.Sum256([]byte(genesisInput))
	return hex.EncodeToString(h[:])
}

func computeHash(e Entry) string {
	e.Hash = ""
	data, _ := json.Marshal(e)
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// splitLines returns the non-empty lines of data.
func splitLines(data []byte) [][]byte {
	var lines [][]byte
	for line := range bytes.SplitSeq(data, []byte{'\n'}) {
		if len(line) > 0 {
			lines = append(lines, line)
		}
	}
	return lines
}
