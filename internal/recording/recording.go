package recording

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teleroom/sfu-recorder/internal/sfu"
)

type Mode string

const (
	ModePerParticipant Mode = "per-participant"
	ModeMixed          Mode = "mixed"
)

// Input describes one muxer ingest: the SDP file on disk and the loopback
// port the consumer's RTP is steered to.
type Input struct {
	Kind       sfu.MediaKind `json:"kind"`
	SDPPath    string        `json:"sdpPath"`
	Port       uint16        `json:"port"`
	ProducerID string        `json:"producerId"`
	PeerID     string        `json:"peerId"`
}

// Muxer is the slice of the supervised process the orchestrator drives; the
// ffmpeg package provides the real one, tests inject fakes.
type Muxer interface {
	OnFatal(fn func(error))
	Start() error
	Started() <-chan struct{}
	StartedAt() time.Time
	Exited() <-chan struct{}
	Err() error
	Stop(ctx context.Context, starve func()) error
}

// StopResult is what a completed stop reports back to the control surface.
type StopResult struct {
	FileName         string
	Path             string
	FileExists       bool
	Duration         time.Duration
	ExpectedDuration time.Duration
	Files            []string
}

// Recording owns the live resources of one recording: bindings, muxer
// processes, timers. It is mutated only by the orchestrator; stop is
// idempotent and a concurrent second stop receives the first one's result.
type Recording struct {
	ID   string
	Mode Mode
	Room string
	User string

	Inputs   []Input
	FilePath string // single output (mixed) or output directory (per-participant)
	SDPDir   string

	StartedAt time.Time

	bindings      []*Binding
	muxers        []muxerHandle
	stopKeyframes func()

	mu             sync.Mutex
	muxerStartedAt time.Time
	errored        error

	stopping int32
	stopOnce sync.Once
	stopped  chan struct{}
	result   *StopResult
}

type muxerHandle struct {
	muxer Muxer
	file  string
}

func newRecording(id string, mode Mode, room, user string) *Recording {
	return &Recording{
		ID:        id,
		Mode:      mode,
		Room:      room,
		User:      user,
		StartedAt: time.Now(),
		stopped:   make(chan struct{}),
	}
}

// Elapsed is the wall-clock age of the recording.
func (r *Recording) Elapsed() time.Duration {
	return time.Since(r.StartedAt)
}

// setMuxerStarted records the first observed frame instant; reports whether
// this call was the one that recorded it.
func (r *Recording) setMuxerStarted(t time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.muxerStartedAt.IsZero() {
		return false
	}
	r.muxerStartedAt = t
	return true
}

// MuxerStartedAt is the instant the muxer was first observed processing
// frames; zero if it never was.
func (r *Recording) MuxerStartedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.muxerStartedAt
}

// setError records the terminal error; reports whether this call was the one
// that recorded it.
func (r *Recording) setError(err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errored != nil {
		return false
	}
	r.errored = err
	return true
}

// markStopping flips the recording into its stop phase, so a muxer exit
// observed from here on is part of the shutdown, not a crash.
func (r *Recording) markStopping() {
	atomic.StoreInt32(&r.stopping, 1)
}

func (r *Recording) isStopping() bool {
	return atomic.LoadInt32(&r.stopping) == 1
}

// Err reports the terminal error of a failed recording, if any.
func (r *Recording) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errored
}

// closeBindings shuts all consumers and endpoints down; used both by the
// normal stop path and as the muxer's input-starvation callback.
func (r *Recording) closeBindings() {
	for _, b := range r.bindings {
		b.Close()
	}
}

var lastRecordingID int64

// NewRecordingID derives an identifier from the monotonic wall clock. Two
// concurrent starts can land on the same millisecond, so the last id is
// bumped forward instead of reused: repeated starts always get distinct ids.
func NewRecordingID() string {
	for {
		now := time.Now().UnixMilli()
		last := atomic.LoadInt64(&lastRecordingID)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastRecordingID, last, now) {
			return strconv.FormatInt(now, 10)
		}
	}
}
