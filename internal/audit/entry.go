package audit

import "time"

// Record is what a caller reports about one dispatch.
type Record struct {
	Command  string        // raw command line
	Kind     string        // classification slug
	Programs []string      // argv[0] of each parsed stage, if known
	ExitCode int           // final stage status; -1 if never started
	Failure  string        // failure slug, "" on success
	PID      int           // background launches only
	Duration time.Duration // zero for background launches
	Cwd      string        // workspace the command ran in
}

// Entry is a single line of the audit log.
type Entry struct {
	Seq      uint64    `json:"seq"`
	Time     time.Time `json:"ts"`
	PrevHash string    `json:"prev_hash"`
	Command  string    `json:"command"`
	Kind     string    `json:"kind"`
	Programs []string  `json:"programs,omitempty"`
	ExitCode int       `json:"exit_code"`
	Failure  string    `json:"failure,omitempty"`
	PID      int       `json:"pid,omitempty"`
	Duration float64   `json:"duration_ms"`
	Cwd      string    `json:"cwd"`
	Hash     string    `json:"hash"` // SHA-256 of this entry with Hash empty
}
