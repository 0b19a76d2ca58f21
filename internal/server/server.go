package server

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/teleroom/sfu-recorder/internal/appstats"
	"github.com/teleroom/sfu-recorder/internal/config"
	"github.com/teleroom/sfu-recorder/internal/pubsub"
	"github.com/teleroom/sfu-recorder/internal/pubsub/events"
	"github.com/teleroom/sfu-recorder/internal/recording"
	"github.com/teleroom/sfu-recorder/internal/sfu"
)

// Server is the control surface: it decodes start/stop/status requests off
// the pubsub channel, drives the recording service and emits lifecycle
// events back.
type Server struct {
	cfg     *config.Config
	pubsub  pubsub.PubSub
	svc     *recording.Service
	routers sfu.RouterProvider
}

func NewServer(cfg *config.Config, ps pubsub.PubSub, svc *recording.Service, routers sfu.RouterProvider) *Server {
	s := &Server{cfg: cfg, pubsub: ps, svc: svc, routers: routers}

	svc.SetOnError(func(recID string, err error) {
		s.PublishPubSub(events.NewRecordingError(recID, err.Error()))
	})
	svc.SetOnProcessing(func(recID string) {
		s.PublishPubSub(events.NewRecordingStateChanged(recID, events.StateProcessing))
	})

	return s
}

func (s *Server) HandlePubSub(ctx context.Context, msg []byte) {
	log.Trace(string(msg))
	event := events.Decode(msg)
	appstats.OnServerRequest(event.Id, event.IsValid())

	if !event.IsValid() {
		return
	}

	// Requests run off the subscription loop so that one recording's grace
	// windows and minimum-runtime floor never block another's.
	start := time.Now()
	go func() {
		defer appstats.ObserveRequestDuration(event.Id, time.Since(start))

		switch event.Id {
		case events.StartRecordingKey, events.StartMixedRecordingKey:
			s.handleStart(ctx, event.StartRecording())

		case events.StopRecordingKey, events.StopMixedRecordingKey:
			s.handleStop(ctx, event.StopRecording())

		case events.RecordingStatusKey:
			s.handleStatus(event.RecordingStatus())

		case events.GetRecorderStatusKey:
			s.PublishPubSub(events.NewRecorderStatus(s.cfg.App.Version, s.cfg.App.InstanceId))
		}
	}()
}

func (s *Server) handleStart(ctx context.Context, e *events.StartRecording) {
	if e == nil {
		return
	}

	entry := log.WithField("room", e.RoomId).WithField("op", e.Id)

	router, ok := s.routers.Router(e.RoomId)
	if !ok {
		entry.Warn("start requested but room has no router")
		s.PublishPubSub(e.Fail(recording.ErrRouterUnready))
		return
	}

	var rec *recording.Recording
	var err error
	if e.Mixed() {
		rec, err = s.svc.StartMixed(ctx, router, e.RoomId, e.UserId, e.Width, e.Height)
	} else {
		rec, err = s.svc.StartPerParticipant(ctx, router, e.RoomId, e.UserId)
	}

	if err != nil {
		entry.Errorf("start failed: %v", err)
		s.PublishPubSub(e.Fail(err))
		return
	}

	fileName := rec.ID
	if rec.Mode == recording.ModeMixed {
		fileName = "mixed-" + rec.ID + ".mp4"
	}

	s.PublishPubSub(e.Success(rec.ID, fileName, rec.FilePath))
	s.PublishPubSub(events.NewRecordingStarted(rec.ID, fileName))
	entry.WithField("recording", rec.ID).Info("recording start handled")
}

func (s *Server) handleStop(ctx context.Context, e *events.StopRecording) {
	if e == nil {
		return
	}

	entry := log.WithField("recording", e.RecordingId).WithField("op", e.Id)
	s.PublishPubSub(events.NewRecordingStateChanged(e.RecordingId, events.StateStopping))

	var result *recording.StopResult
	var err error
	if e.Mixed() {
		result, err = s.svc.StopMixed(ctx, e.RecordingId)
	} else {
		result, err = s.svc.StopPerParticipant(ctx, e.RecordingId)
	}

	if err != nil {
		entry.Warnf("stop failed: %v", err)
		s.PublishPubSub(e.Fail(err))
		return
	}

	s.PublishPubSub(e.Success(result.FileName, result.Path, result.FileExists,
		result.Duration, result.ExpectedDuration))
	s.PublishPubSub(events.NewRecordingStopped(e.RecordingId, result.FileName, result.Duration))
	entry.Info("recording stop handled")
}

func (s *Server) handleStatus(e *events.RecordingStatus) {
	if e == nil {
		return
	}

	status, ok := s.svc.Status(e.RecordingId)
	if !ok {
		s.PublishPubSub(e.Response(false, 0, "", 0))
		return
	}
	s.PublishPubSub(e.Response(status.Active, status.Elapsed, status.FileName, status.InputCount))
}

func (s *Server) PublishPubSub(msg interface{}) {
	j, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("failed to marshal pubsub message: %v", err)
		return
	}
	if err := s.pubsub.Publish(s.cfg.PubSub.Channels.Publish, j); err != nil {
		log.Errorf("failed to publish pubsub message: %v", err)
		return
	}
	appstats.OnServerResponse(messageId(msg))
}

func messageId(msg interface{}) string {
	switch v := msg.(type) {
	case *events.StartRecordingResponse:
		return v.Id
	case *events.StopRecordingResponse:
		return v.Id
	case *events.RecordingStatusResponse:
		return v.Id
	case *events.RecordingStarted:
		return v.Id
	case *events.RecordingStopped:
		return v.Id
	case *events.RecordingStateChanged:
		return v.Id
	case *events.RecordingError:
		return v.Id
	case *events.RecorderStatus:
		return v.Id
	default:
		return "unknown"
	}
}

func (s *Server) OnStart() error {
	log.Info("Application started. Version=", s.cfg.App.Version, " InstanceId=", s.cfg.App.InstanceId)
	s.PublishPubSub(events.NewRecorderStatus(s.cfg.App.Version, s.cfg.App.InstanceId))
	return nil
}

func (s *Server) Close() error {
	for _, rec := range s.svc.Registry().List() {
		if rec.Mode == recording.ModeMixed {
			_, _ = s.svc.StopMixed(context.Background(), rec.ID)
		} else {
			_, _ = s.svc.StopPerParticipant(context.Background(), rec.ID)
		}
	}
	return nil
}
