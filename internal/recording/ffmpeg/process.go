// Package ffmpeg supervises external muxer and probe processes. The muxer
// reads SDP files from disk, pulls RTP off loopback UDP ports and writes the
// container file; this package owns its argument vector, diagnostic stream
// and termination protocol.
package ffmpeg

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/teleroom/sfu-recorder/internal/config"
)

// errorEscalation is how many diagnostic error lines the muxer may emit
// before the recording is considered failed.
const errorEscalation = 10

type Process struct {
	cfg  config.FFmpeg
	args []string
	log  *log.Entry

	cmd   *exec.Cmd
	stdin io.WriteCloser

	startedOnce sync.Once
	started     chan struct{}
	startedAt   time.Time

	exited  chan struct{}
	waitErr error

	errLines int
	onFatal  func(error)
}

func New(cfg config.FFmpeg, args []string, fields log.Fields) *Process {
	return &Process{
		cfg:     cfg,
		args:    args,
		log:     log.WithFields(fields),
		started: make(chan struct{}),
		exited:  make(chan struct{}),
	}
}

// OnFatal registers a handler fired (once) when the diagnostic stream reaches
// errorEscalation error lines. Process exit is not reported here; it is
// observed through Exited and Err. Must be set before Start.
func (p *Process) OnFatal(fn func(error)) { p.onFatal = fn }

// Args exposes the full argument vector, for logging and tests.
func (p *Process) Args() []string { return p.args }

func (p *Process) Start() error {
	p.cmd = exec.Command(p.cfg.Path, p.args...)
	p.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, "muxer stdin pipe")
	}
	p.stdin = stdin

	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return errors.Wrap(err, "muxer stderr pipe")
	}

	p.log.Debugf("%s %s", p.cfg.Path, strings.Join(p.args, " "))

	if err := p.cmd.Start(); err != nil {
		return errors.Wrapf(err, "failed to start %s", p.cfg.Path)
	}

	go p.scanStderr(stderr)
	go func() {
		p.waitErr = p.cmd.Wait()
		close(p.exited)
	}()

	return nil
}

// Started is closed once the muxer is observed processing frames.
func (p *Process) Started() <-chan struct{} { return p.started }

// StartedAt is the wall clock of the first observed frame; zero until then.
func (p *Process) StartedAt() time.Time { return p.startedAt }

// Exited is closed when the process has exited; Err holds the wait error.
func (p *Process) Exited() <-chan struct{} { return p.exited }

func (p *Process) Err() error { return p.waitErr }

// scanStderr consumes the muxer's line-oriented diagnostics. The first
// progress line marks "processing started"; error lines are warned about and
// escalate to a fatal callback when repeated.
func (p *Process) scanStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if isProgressLine(line) {
			p.startedOnce.Do(func() {
				p.startedAt = time.Now()
				p.log.Info("muxer started processing frames")
				close(p.started)
			})
			continue
		}

		if isErrorLine(line) {
			p.errLines++
			p.log.Warnf("muxer: %s", line)
			if p.errLines == errorEscalation && p.onFatal != nil {
				p.onFatal(errors.Errorf("muxer reported %d errors, last: %s", p.errLines, line))
			}
			continue
		}

		p.log.Trace(line)
	}
}

// isProgressLine reports whether a stderr line is a muxing progress report.
// Video outputs emit "frame=..." lines; audio-only outputs report "size="
// only.
func isProgressLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "frame=") || strings.HasPrefix(trimmed, "size=")
}

func isErrorLine(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "error") ||
		strings.Contains(line, "Invalid argument") ||
		strings.Contains(lower, "dropping frame")
}

// Stop terminates the muxer while preserving a valid output file:
//
//  1. wait briefly in case the process already exited,
//  2. write the graceful quit character to stdin and wait,
//  3. starve it of input (the caller closes consumers/endpoints) and wait,
//  4. signal the process group.
func (p *Process) Stop(ctx context.Context, starve func()) error {
	select {
	case <-p.exited:
		return p.waitErr
	case <-time.After(300 * time.Millisecond):
	}

	if p.stdin != nil {
		if _, err := io.WriteString(p.stdin, "q\n"); err != nil {
			p.log.Debugf("could not write quit to muxer stdin: %v", err)
		}
		_ = p.stdin.Close()
	}

	if p.waitExit(ctx, p.cfg.QuitTimeout) {
		return p.waitErr
	}

	p.log.Warn("muxer ignored graceful quit, starving inputs")
	if starve != nil {
		starve()
	}

	if p.waitExit(ctx, p.cfg.KillTimeout) {
		return p.waitErr
	}

	p.log.Warn("muxer still running, signalling process group")
	p.terminate()
	<-p.exited
	return p.waitErr
}

func (p *Process) waitExit(ctx context.Context, d time.Duration) bool {
	select {
	case <-p.exited:
		return true
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return false
	}
}

// terminate sends SIGTERM to the muxer's process group, then SIGKILL.
func (p *Process) terminate() {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(p.cmd.Process.Pid)
	if err != nil {
		_ = p.cmd.Process.Kill()
		return
	}
	_ = syscall.Kill(-pgid, syscall.SIGTERM)
	time.Sleep(2 * time.Second)
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
}
