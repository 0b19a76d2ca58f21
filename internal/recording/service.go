package recording

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/teleroom/sfu-recorder/internal/appstats"
	"github.com/teleroom/sfu-recorder/internal/config"
	"github.com/teleroom/sfu-recorder/internal/recording/ffmpeg"
	"github.com/teleroom/sfu-recorder/internal/sfu"
)

// Service orchestrates recordings: it owns the registry, the port allocator
// and the muxer/probe processes. One Service instance serves all rooms.
type Service struct {
	cfg   config.Recorder
	ff    config.FFmpeg
	ports *PortAllocator
	reg   *Registry
	caps  sfu.RtpCapabilities

	dirMode  os.FileMode
	fileMode os.FileMode

	// seams for tests: the real implementations spawn ffmpeg/ffprobe
	newMuxer func(args []string, fields log.Fields) Muxer
	probe    func(ctx context.Context, file string) (time.Duration, error)

	// onError receives runtime failures (muxer crash, all producers gone,
	// stale force-stop) so the control surface can emit recordingError.
	onError func(recID string, err error)

	// onProcessing fires when a recording's muxer is first observed
	// processing frames.
	onProcessing func(recID string)
}

func NewService(cfg config.Recorder, ff config.FFmpeg) *Service {
	s := &Service{
		cfg:      cfg,
		ff:       ff,
		ports:    NewPortAllocator(cfg.RTPPortMin, cfg.RTPPortMax, cfg.PortRetries),
		reg:      NewRegistry(),
		caps:     sfu.RecorderRtpCapabilities(),
		dirMode:  parseFileMode(cfg.DirFileMode, 0700),
		fileMode: parseFileMode(cfg.FileMode, 0600),
	}
	s.newMuxer = func(args []string, fields log.Fields) Muxer {
		return ffmpeg.New(ff, args, fields)
	}
	s.probe = func(ctx context.Context, file string) (time.Duration, error) {
		return ffmpeg.Probe(ctx, ff.ProbePath, file)
	}
	return s
}

func (s *Service) Registry() *Registry { return s.reg }

func (s *Service) SetOnError(fn func(recID string, err error)) { s.onError = fn }

func (s *Service) SetOnProcessing(fn func(recID string)) { s.onProcessing = fn }

// StartHealthCheck launches the periodic sweep that force-stops stale
// recordings.
func (s *Service) StartHealthCheck(ctx context.Context) {
	s.reg.StartHealthCheck(ctx, s.cfg.HealthCheckInterval, s.cfg.StaleTimeout, func(rec *Recording) {
		s.fail(rec, errors.Wrapf(ErrTimeout, "elapsed %s", rec.Elapsed().Round(time.Second)))
	})
}

// Status is the answer to a status request for one recording.
type Status struct {
	Active     bool
	Elapsed    time.Duration
	FileName   string
	InputCount int
}

func (s *Service) Status(recID string) (*Status, bool) {
	rec, ok := s.reg.Get(recID)
	if !ok {
		return nil, false
	}
	return &Status{
		Active:     rec.Err() == nil,
		Elapsed:    rec.Elapsed(),
		FileName:   rec.FilePath,
		InputCount: len(rec.Inputs),
	}, true
}

// selectProducers partitions the router's live producers, video first (the
// muxer input order the filter graph assumes). maxVideo caps how many video
// producers participate (the mixed tiling takes at most four); zero or
// negative means unlimited.
func selectProducers(router sfu.Router, maxVideo int) (videos, audios []sfu.Producer) {
	for _, p := range router.Producers() {
		if p.Closed() {
			continue
		}
		switch p.Kind() {
		case sfu.MediaKindVideo:
			if maxVideo <= 0 || len(videos) < maxVideo {
				videos = append(videos, p)
			}
		case sfu.MediaKindAudio:
			audios = append(audios, p)
		}
	}
	return videos, audios
}

func checkRouter(router sfu.Router) error {
	if router == nil || router.Closed() || len(router.RtpCapabilities().Codecs) == 0 {
		return ErrRouterUnready
	}
	return nil
}

// bindAll runs the binder over the selected producers. Capability mismatches
// skip the producer with a warning; any other binder error aborts the start
// and unwinds what was already bound.
func (s *Service) bindAll(router sfu.Router, producers []sfu.Producer, entry *log.Entry) ([]*Binding, error) {
	binder := &Binder{Ports: s.ports, Caps: s.caps}
	var bindings []*Binding

	for _, p := range producers {
		b, err := binder.Bind(router, p)
		if err != nil {
			if errors.Is(err, ErrRouterCannotConsume) {
				entry.WithField("producer", p.Id()).Warnf("skipping producer: %v", err)
				continue
			}
			for _, bound := range bindings {
				bound.Close()
			}
			return nil, err
		}
		bindings = append(bindings, b)
	}

	return bindings, nil
}

// armLifecycleWatchers wires the goroutines observing one recording: the
// muxer-started stamp, crash detection and producer-closure accounting.
func (s *Service) armLifecycleWatchers(rec *Recording, entry *log.Entry) {
	for _, h := range rec.muxers {
		h := h
		go func() {
			select {
			case <-h.muxer.Started():
				if rec.setMuxerStarted(h.muxer.StartedAt()) && s.onProcessing != nil {
					s.onProcessing(rec.ID)
				}
			case <-rec.stopped:
			}
		}()
		go func() {
			select {
			case <-h.muxer.Exited():
				if !rec.isStopping() {
					s.fail(rec, errors.Wrapf(ErrMuxerCrash, "%v", h.muxer.Err()))
				}
			case <-rec.stopped:
			}
		}()
	}

	// A producer may go away mid-recording; the muxer keeps writing the
	// surviving streams. Only the loss of every input ends the recording.
	remaining := int32(len(rec.bindings))
	for _, b := range rec.bindings {
		b := b
		b.Consumer.OnProducerClose(func() {
			entry.WithField("producer", b.Producer.Id()).
				Warn("producer closed mid-recording")
			if atomic.AddInt32(&remaining, -1) == 0 {
				s.fail(rec, errors.New("all producers closed"))
			}
		})
	}
}

// resumeAll transitions the paused consumers to flowing. Only called after
// the muxer process exists and holds its argument vector.
func resumeAll(rec *Recording, entry *log.Entry) {
	for _, b := range rec.bindings {
		if err := b.Consumer.Resume(); err != nil {
			entry.WithField("consumer", b.Consumer.Id()).
				Warnf("failed to resume consumer: %v", err)
		}
	}
}

func (rec *Recording) consumers() []sfu.Consumer {
	out := make([]sfu.Consumer, 0, len(rec.bindings))
	for _, b := range rec.bindings {
		out = append(out, b.Consumer)
	}
	return out
}

// fail moves a recording to its terminal errored state, reports it once and
// tears the resources down in the background.
func (s *Service) fail(rec *Recording, err error) {
	if !rec.setError(err) {
		return
	}
	log.WithField("recording", rec.ID).Errorf("recording failed: %v", err)
	appstats.OnRecordingError()

	if s.onError != nil {
		s.onError(rec.ID, err)
	}

	go func() {
		if _, stopErr := s.stop(context.Background(), rec, 0); stopErr != nil {
			log.WithField("recording", rec.ID).
				Errorf("cleanup of failed recording: %v", stopErr)
		}
	}()
}

// stop runs the shared shutdown sequence exactly once per recording; later
// and concurrent callers receive the first call's result. Order matters:
// the muxer is asked to finalize the container before consumers and
// endpoints disappear, and the registry entry goes away last.
func (s *Service) stop(ctx context.Context, rec *Recording, minFloor time.Duration) (*StopResult, error) {
	rec.stopOnce.Do(func() {
		defer close(rec.stopped)

		rec.markStopping()
		entry := log.WithField("recording", rec.ID)

		if minFloor > 0 {
			if hold := time.Until(rec.StartedAt.Add(minFloor)); hold > 0 {
				entry.Infof("holding stop for %s to honor the minimum runtime", hold.Round(time.Millisecond))
				select {
				case <-time.After(hold):
				case <-ctx.Done():
				}
			}
		}

		if rec.stopKeyframes != nil {
			rec.stopKeyframes()
		}

		for _, h := range rec.muxers {
			if err := h.muxer.Stop(ctx, rec.closeBindings); err != nil {
				entry.Debugf("muxer exit: %v", err)
			}
		}

		rec.closeBindings()

		result := &StopResult{
			FileName: rec.ID,
			Path:     rec.FilePath,
		}
		if !rec.MuxerStartedAt().IsZero() {
			result.ExpectedDuration = time.Since(rec.MuxerStartedAt())
		}

		for _, h := range rec.muxers {
			if _, err := os.Stat(h.file); err != nil {
				entry.Warnf("output file missing: %s", h.file)
				continue
			}
			result.Files = append(result.Files, h.file)

			if dur, err := s.probe(ctx, h.file); err != nil {
				entry.Warnf("probe failed for %s: %v", h.file, err)
			} else if dur > result.Duration {
				result.Duration = dur
			}
		}
		result.FileExists = len(result.Files) == len(rec.muxers) && len(rec.muxers) > 0

		if rec.Mode == ModeMixed {
			result.FileName = "mixed-" + rec.ID + ".mp4"
			if rec.SDPDir != "" {
				if err := os.RemoveAll(rec.SDPDir); err != nil {
					entry.Warnf("could not remove SDP directory: %v", err)
				}
			}
		} else {
			s.writeMetadata(rec, result, entry)
		}

		s.reg.Remove(rec.ID)
		appstats.OnRecordingStopped(rec.Elapsed())
		entry.WithField("duration", result.Duration).Info("recording stopped")

		rec.result = result
	})

	<-rec.stopped
	if rec.result == nil {
		return nil, errors.New("recording stop did not produce a result")
	}
	return rec.result, nil
}
