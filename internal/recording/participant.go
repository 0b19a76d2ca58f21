package recording

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/teleroom/sfu-recorder/internal/appstats"
	"github.com/teleroom/sfu-recorder/internal/sfu"
)

// StartPerParticipant records each producer into its own WebM file, one
// muxer process per producer, under <root>/per/<room>/<rec_id>/.
func (s *Service) StartPerParticipant(ctx context.Context, router sfu.Router, room, user string) (*Recording, error) {
	if err := checkRouter(router); err != nil {
		return nil, err
	}

	videos, audios := selectProducers(router, 0)
	if len(videos)+len(audios) == 0 {
		return nil, ErrNoInputs
	}

	id := NewRecordingID()
	rec := newRecording(id, ModePerParticipant, room, user)
	entry := log.WithField("recording", id).WithField("room", room)

	dir := filepath.Join(s.cfg.Directory, "per", room, id)
	if err := EnsureDirWritable(dir, s.dirMode); err != nil {
		return nil, err
	}
	rec.FilePath = dir
	rec.SDPDir = dir

	bindings, err := s.bindAll(router, append(videos, audios...), entry)
	if err != nil {
		return nil, err
	}
	if len(bindings) == 0 {
		return nil, ErrNoInputs
	}
	rec.bindings = bindings

	if _, err := s.writeSDPFiles(rec, entry); err != nil {
		rec.closeBindings()
		return nil, err
	}

	// One muxer per input, each writing its own container.
	for i, b := range rec.bindings {
		in := rec.Inputs[i]
		out := filepath.Join(dir, fmt.Sprintf("%s-%s-%s.webm", in.Kind, in.PeerID, in.ProducerID))

		var args []string
		if in.Kind == sfu.MediaKindVideo {
			args = ParticipantVideoArgs(s.ff.LogLevel, in.SDPPath, s.cfg.VideoBitrateKbps, s.cfg.FrameRate, out)
		} else {
			args = ParticipantAudioArgs(s.ff.LogLevel, in.SDPPath, s.cfg.AudioBitrateKbps, out)
		}

		mux := s.newMuxer(args, log.Fields{"recording": id, "producer": in.ProducerID})
		mux.OnFatal(func(err error) { s.fail(rec, err) })

		if err := mux.Start(); err != nil {
			for _, h := range rec.muxers {
				_ = h.muxer.Stop(ctx, nil)
			}
			rec.closeBindings()
			return nil, errors.Wrapf(ErrMuxerSpawn, "%v", err)
		}
		rec.muxers = append(rec.muxers, muxerHandle{muxer: mux, file: out})

		if err := b.Consumer.Resume(); err != nil {
			entry.WithField("consumer", b.Consumer.Id()).
				Warnf("failed to resume consumer: %v", err)
		}
	}

	rec.stopKeyframes = startKeyframePump(rec.consumers(), s.cfg.KeyframeInterval, entry)
	s.armLifecycleWatchers(rec, entry)

	s.reg.Add(rec)
	appstats.OnRecordingStarted()
	entry.WithField("inputs", len(rec.bindings)).Info("per-participant recording started")

	return rec, nil
}

// StopPerParticipant stops every per-producer muxer and writes the
// recording's metadata next to the produced files.
func (s *Service) StopPerParticipant(ctx context.Context, recID string) (*StopResult, error) {
	rec, ok := s.reg.Get(recID)
	if !ok || rec.Mode != ModePerParticipant {
		return nil, errors.Wrap(ErrNotFound, recID)
	}
	return s.stop(ctx, rec, 0)
}

// metadata is the sidecar written next to per-participant outputs.
type metadata struct {
	RecordingID string    `json:"recordingId"`
	Room        string    `json:"room"`
	User        string    `json:"user"`
	StartedAt   time.Time `json:"startedAt"`
	StoppedAt   time.Time `json:"stoppedAt"`
	Duration    float64   `json:"durationSeconds"`
	Files       []string  `json:"files"`
}

func (s *Service) writeMetadata(rec *Recording, result *StopResult, entry *log.Entry) {
	md := &metadata{
		RecordingID: rec.ID,
		Room:        rec.Room,
		User:        rec.User,
		StartedAt:   rec.StartedAt,
		StoppedAt:   time.Now(),
		Duration:    result.Duration.Seconds(),
		Files:       result.Files,
	}

	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		entry.Errorf("could not marshal metadata: %v", err)
		return
	}

	path := filepath.Join(rec.FilePath, "metadata.json")
	if err := os.WriteFile(path, data, s.fileMode); err != nil {
		entry.Errorf("could not write %s: %v", path, err)
		return
	}

	entry.WithField("path", path).Debug("wrote recording metadata")
}
