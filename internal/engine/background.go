package engine

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/marcelocantos/neoshell/internal/pipeline"
)

// Handle identifies a launched background process.
type Handle struct {
	PID       int       `json:"pid"`
	Command   string    `json:"command"`
	StartedAt time.Time `json:"started_at"`
}

// Launcher starts detached processes and keeps a registry of those still
// running. It never exposes a process's output or exit status, and offers
// no way to stop one; the registry exists only so callers can list jobs.
type Launcher struct {
	shell string // "" executes parsed argv directly
	opts  pipeline.Options
	log   *slog.Logger

	mu   sync.Mutex
	jobs map[int]Handle
}

func newLauncher(shell string, opts pipeline.Options, log *slog.Logger) *Launcher {
	return &Launcher{shell: shell, opts: opts, log: log, jobs: make(map[int]Handle)}
}

// Launch strips one trailing & from cmdText and starts it. It returns as soon
// as the OS has created the process. With a shell configured the whole text
// is handed to it, so pipelines and redirects work in the background too;
// without one, only a single plain command can be launched.
func (l *Launcher) Launch(cmdText string) (Handle, error) {
	text := strings.TrimSpace(cmdText)
	text = strings.TrimSpace(strings.TrimSuffix(text, pipeline.OpBackground))
	if text == "" {
		return Handle{}, fmt.Errorf("%w: missing command before %q", pipeline.ErrSyntax, pipeline.OpBackground)
	}

	argv, err := l.argv(text)
	if err != nil {
		return Handle{}, err
	}

	cmd := pipeline.Detached(argv, l.opts)
	if err := cmd.Start(); err != nil {
		return Handle{}, &pipeline.StageError{Index: 0, Name: argv[0], Err: err}
	}

	h := Handle{PID: cmd.Process.Pid, Command: text, StartedAt: time.Now()}
	l.mu.Lock()
	l.jobs[h.PID] = h
	l.mu.Unlock()
	l.log.Info("background process started", "pid", h.PID, "command", text)

	go func() {
		err := cmd.Wait()
		l.mu.Lock()
		delete(l.jobs, h.PID)
		l.mu.Unlock()
		l.log.Debug("background process reaped", "pid", h.PID, "err", err)
	}()
	return h, nil
}

func (l *Launcher) argv(text string) ([]string, error) {
	if l.shell != "" {
		return []string{l.shell, "-c", text}, nil
	}
	p, err := pipeline.Parse(text)
	if err != nil {
		return nil, err
	}
	if len(p.Stages) > 1 || p.Redirected() {
		return nil, fmt.Errorf("%w: background pipelines and redirects require shell delegation", pipeline.ErrSyntax)
	}
	return p.Stages[0], nil
}

// Running lists processes launched by this launcher that have not yet
// exited, oldest first.
func (l *Launcher) Running() []Handle {
	l.mu.Lock()
	jobs := make([]Handle, 0, len(l.jobs))
	for _, h := range l.jobs {
		jobs = append(jobs, h)
	}
	l.mu.Unlock()

	slices.SortFunc(jobs, func(a, b Handle) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return a.PID - b.PID
	})
	return jobs
}
