package recording

import "github.com/pkg/errors"

// Error taxonomy surfaced to the control channel. Start-time errors are
// returned synchronously and leave no registry entry; runtime errors move the
// recording to a terminal state and emit a single recordingError event.
var (
	ErrRouterUnready       = errors.New("router is not ready")
	ErrNoInputs            = errors.New("no usable producers to record")
	ErrRouterCannotConsume = errors.New("router cannot consume producer")
	ErrResourceExhaustion  = errors.New("no free UDP port pair")
	ErrMuxerSpawn          = errors.New("muxer process could not be started")
	ErrMuxerCrash          = errors.New("muxer process exited unexpectedly")
	ErrOutputUnwritable    = errors.New("record directory is not writable")
	ErrNotFound            = errors.New("recording not found")
	ErrTimeout             = errors.New("recording exceeded stale threshold")
)
