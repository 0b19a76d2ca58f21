package recording

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/teleroom/sfu-recorder/internal/appstats"
	"github.com/teleroom/sfu-recorder/internal/sfu"
)

// StartMixed records a whole room into one MP4: up to four video producers
// tiled into a grid and every audio producer mixed into a single track, all
// through one muxer process fed by per-input SDP files.
func (s *Service) StartMixed(ctx context.Context, router sfu.Router, room, user string, width, height int) (*Recording, error) {
	if err := checkRouter(router); err != nil {
		return nil, err
	}

	if width <= 0 {
		width = s.cfg.Width
	}
	if height <= 0 {
		height = s.cfg.Height
	}

	videos, audios := selectProducers(router, s.cfg.MaxVideoInputs)
	if len(videos)+len(audios) == 0 {
		return nil, ErrNoInputs
	}

	if err := EnsureDirWritable(s.cfg.Directory, s.dirMode); err != nil {
		return nil, err
	}

	id := NewRecordingID()
	rec := newRecording(id, ModeMixed, room, user)
	entry := log.WithField("recording", id).WithField("room", room)

	rec.SDPDir = filepath.Join(s.cfg.Directory, "sdp", id)
	if err := EnsureDirWritable(rec.SDPDir, s.dirMode); err != nil {
		return nil, err
	}

	// Video producers bind first: the filter graph addresses muxer inputs
	// by index and assumes video inputs come before audio inputs.
	bindings, err := s.bindAll(router, append(videos, audios...), entry)
	if err != nil {
		_ = os.RemoveAll(rec.SDPDir)
		return nil, err
	}
	if len(bindings) == 0 {
		_ = os.RemoveAll(rec.SDPDir)
		return nil, ErrNoInputs
	}
	rec.bindings = bindings

	sdpPaths, err := s.writeSDPFiles(rec, entry)
	if err != nil {
		rec.closeBindings()
		_ = os.RemoveAll(rec.SDPDir)
		return nil, err
	}

	v, a := 0, 0
	for _, b := range bindings {
		if b.Codec.Media() == sfu.MediaKindVideo {
			v++
		} else {
			a++
		}
	}

	graph := BuildFilterGraph(v, a, width, height, s.cfg.FrameRate)
	rec.FilePath = filepath.Join(s.cfg.Directory, "mixed-"+id+".mp4")

	args := MixedMuxerArgs(s.ff.LogLevel, sdpPaths, graph, s.cfg.FrameRate, s.cfg.AudioBitrateKbps, rec.FilePath)
	mux := s.newMuxer(args, log.Fields{"recording": id, "muxer": "mixed"})
	mux.OnFatal(func(err error) { s.fail(rec, err) })

	if err := mux.Start(); err != nil {
		rec.closeBindings()
		_ = os.RemoveAll(rec.SDPDir)
		return nil, errors.Wrapf(ErrMuxerSpawn, "%v", err)
	}
	rec.muxers = []muxerHandle{{muxer: mux, file: rec.FilePath}}

	resumeAll(rec, entry)
	rec.stopKeyframes = startKeyframePump(rec.consumers(), s.cfg.KeyframeInterval, entry)
	s.armLifecycleWatchers(rec, entry)

	s.reg.Add(rec)
	appstats.OnRecordingStarted()
	entry.WithField("inputs", len(bindings)).
		WithField("size", fmt.Sprintf("%dx%d", width, height)).
		Info("mixed recording started")

	return rec, nil
}

// StopMixed gracefully finalizes a mixed recording. Stop requests arriving
// right after start are held until the minimum runtime floor has passed.
func (s *Service) StopMixed(ctx context.Context, recID string) (*StopResult, error) {
	rec, ok := s.reg.Get(recID)
	if !ok || rec.Mode != ModeMixed {
		return nil, errors.Wrap(ErrNotFound, recID)
	}
	return s.stop(ctx, rec, s.cfg.MixedMinDuration)
}

// writeSDPFiles synthesizes and persists one SDP per binding and fills in
// the recording's input descriptors. Mixed mode names them v-/a-<producer>.
func (s *Service) writeSDPFiles(rec *Recording, entry *log.Entry) ([]string, error) {
	paths := make([]string, 0, len(rec.bindings))

	for _, b := range rec.bindings {
		text, err := SynthesizeSDP(b.Codec, b.Port)
		if err != nil {
			return nil, err
		}

		var name string
		if rec.Mode == ModeMixed {
			prefix := "a"
			if b.Codec.Media() == sfu.MediaKindVideo {
				prefix = "v"
			}
			name = fmt.Sprintf("%s-%s.sdp", prefix, b.Producer.Id())
		} else {
			name = fmt.Sprintf("%s-%s-%s.sdp", b.Codec.Media(), b.Producer.Peer(), b.Producer.Id())
		}

		path := filepath.Join(rec.SDPDir, name)
		if err := os.WriteFile(path, []byte(text), s.fileMode); err != nil {
			return nil, errors.Wrapf(ErrOutputUnwritable, "SDP write: %v", err)
		}

		entry.WithField("sdp", path).WithField("port", b.Port).Trace("wrote input SDP")

		paths = append(paths, path)
		rec.Inputs = append(rec.Inputs, Input{
			Kind:       b.Codec.Media(),
			SDPPath:    path,
			Port:       b.Port,
			ProducerID: b.Producer.Id(),
			PeerID:     b.Producer.Peer(),
		})
	}

	return paths, nil
}
