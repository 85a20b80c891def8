package gource

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"gourcewall/internal/platform/logger"
	feeddom "gourcewall/internal/services/feed/domain"
)

// Process is one running renderer. Feed and Terminate are safe from any goroutine
type Process struct {
	id   string
	spec SpawnSpec
	cmd  *exec.Cmd
	log  logger.Logger

	stdin io.WriteCloser
	grace time.Duration
	loop  bool

	mu     sync.Mutex
	queue  [][]byte
	closed bool
	wake   chan struct{}
	stop   chan struct{}

	done    chan struct{}
	exitErr error

	termOnce sync.Once
	termErr  error
}

func newProcess(id string, spec SpawnSpec, cmd *exec.Cmd, grace time.Duration, loop bool, log logger.Logger) *Process {
	return &Process{
		id:    id,
		spec:  spec,
		cmd:   cmd,
		log:   log,
		grace: grace,
		loop:  loop,
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// start runs the waiter and, when stdin is piped, the writer. cmd must be started
func (p *Process) start() {
	go func() {
		err := p.cmd.Wait()
		p.mu.Lock()
		p.exitErr = err
		p.mu.Unlock()
		close(p.done)
		p.log.Debug().Err(err).Msg("renderer exited")
	}()
	if p.stdin != nil {
		go p.writer()
	}
}

// ID is the worker id carried in logs
func (p *Process) ID() string { return p.id }

// Key is the slot occupant this process renders
func (p *Process) Key() feeddom.EventKey { return p.spec.Key }

// Position is the grid cell
func (p *Process) Position() int { return p.spec.Position }

// Done is closed once the process has exited
func (p *Process) Done() <-chan struct{} { return p.done }

// ExitErr is the wait result; only meaningful after Done
func (p *Process) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// Feed queues history for the writer and returns immediately.
// Records are newline terminated so consecutive feeds never run together.
// Feeding a terminated or looping process does nothing
func (p *Process) Feed(history []byte) {
	if len(history) == 0 || p.loop {
		return
	}
	chunk := make([]byte, len(history), len(history)+1)
	copy(chunk, history)
	if chunk[len(chunk)-1] != '\n' {
		chunk = append(chunk, '\n')
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, chunk)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Pending reports queued bytes not yet handed to the process
func (p *Process) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.queue {
		n += len(c)
	}
	return n
}

func (p *Process) next() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || len(p.queue) == 0 {
		return nil, false
	}
	c := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return c, true
}

// writer drains the queue into stdin in order; the first write error ends it
func (p *Process) writer() {
	for {
		select {
		case <-p.stop:
			return
		case <-p.wake:
		}
		for {
			chunk, ok := p.next()
			if !ok {
				break
			}
			if _, err := p.stdin.Write(chunk); err != nil {
				p.log.Warn().Err(err).Msg("renderer stdin write failed; feeds stopped")
				p.mu.Lock()
				p.closed = true
				p.queue = nil
				p.mu.Unlock()
				return
			}
		}
	}
}

// Terminate stops feeding, closes stdin and sends SIGTERM, escalating to SIGKILL after the grace period.
// It does not wait for exit; watch Done. Repeated calls return the first result
func (p *Process) Terminate() error {
	p.termOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.queue = nil
		p.mu.Unlock()
		close(p.stop)

		if p.stdin != nil {
			_ = p.stdin.Close()
		}

		err := p.cmd.Process.Signal(syscall.SIGTERM)
		if err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.termErr = err
		}

		go func() {
			select {
			case <-p.done:
			case <-time.After(p.grace):
				p.log.Warn().Dur("grace", p.grace).Msg("renderer ignored SIGTERM; killing")
				_ = p.cmd.Process.Kill()
			}
		}()
		p.log.Info().Msg("renderer terminated")
	})
	return p.termErr
}
