package engine

import (
	"bufio"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"chess_review/internal/domain/review"
	errs "chess_review/internal/errors"
)

const handshakeTimeout = 10 * time.Second

// Session is one live UCI engine process. The process is spawned on
// acquire and terminated on release, so no engine state leaks across runs.
type Session struct {
	cmd   *exec.Cmd
	stdin *bufio.Writer
	out   chan string
	log   *zap.SugaredLogger
}

func startSession(path string, cfg review.AnalysisConfig, log *zap.SugaredLogger) (*Session, error) {
	cmd := exec.Command(path)

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdin: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("engine start: %w", err)
	}

	s := &Session{
		cmd:   cmd,
		stdin: bufio.NewWriter(stdinPipe),
		out:   make(chan string, 256),
		log:   log,
	}

	go s.readLoop(bufio.NewScanner(stdoutPipe))

	if err := s.handshake(cfg); err != nil {
		s.quit()
		return nil, err
	}
	return s, nil
}

func (s *Session) handshake(cfg review.AnalysisConfig) error {
	if err := s.send("uci"); err != nil {
		return err
	}
	if !s.waitFor("uciok", handshakeTimeout) {
		return errs.ErrEngineUnavailable
	}

	s.send(fmt.Sprintf("setoption name Threads value %d", cfg.Threads))
	s.send(fmt.Sprintf("setoption name Hash value %d", cfg.HashSizeMb))

	if err := s.send("isready"); err != nil {
		return err
	}
	if !s.waitFor("readyok", handshakeTimeout) {
		return errs.ErrEngineUnavailable
	}
	return nil
}

func (s *Session) readLoop(scanner *bufio.Scanner) {
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			s.log.Debugw("engine", "line", line)
			s.out <- line
		}
	}
	close(s.out)
}

func (s *Session) send(cmd string) error {
	if _, err := s.stdin.WriteString(cmd + "\n"); err != nil {
		return fmt.Errorf("engine write: %w", err)
	}
	return s.stdin.Flush()
}

func (s *Session) lines() <-chan string {
	return s.out
}

func (s *Session) waitFor(expected string, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		select {
		case line, ok := <-s.out:
			if !ok {
				return false
			}
			if strings.Contains(line, expected) {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

func (s *Session) quit() {
	s.send("quit")

	done := make(chan struct{})
	go func() {
		s.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.cmd.Process.Kill()
		<-done
	}
}

// Manager leases the single engine session. At most one owner holds the
// session at a time; every exit path of a run must call Release.
type Manager struct {
	path string
	log  *zap.SugaredLogger

	mu      sync.Mutex
	owner   string
	session *Session
}

func NewManager(path string, log *zap.SugaredLogger) *Manager {
	return &Manager{path: path, log: log}
}

// Acquire spawns the engine and returns a fresh evaluator whose cache is
// scoped to this lease. Threads are resolved here, once per run.
func (m *Manager) Acquire(ownerID string, cfg review.AnalysisConfig) (*Evaluator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.owner != "" {
		return nil, errs.ErrSessionBusy
	}

	if cfg.Threads == 0 {
		cfg.Threads = runtime.NumCPU()
	}

	session, err := startSession(m.path, cfg, m.log)
	if err != nil {
		return nil, err
	}

	m.owner = ownerID
	m.session = session
	m.log.Infow("engine session acquired", "owner", ownerID, "threads", cfg.Threads)

	return newEvaluator(session, cfg, m.log), nil
}

func (m *Manager) Release(ownerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.owner != ownerID || m.session == nil {
		return
	}
	m.session.quit()
	m.session = nil
	m.owner = ""
	m.log.Infow("engine session released", "owner", ownerID)
}
