package events

import (
	"time"

	"github.com/AlekSi/pointer"
)

const (
	StartRecordingKey      = "startRecording"
	StopRecordingKey       = "stopRecording"
	StartMixedRecordingKey = "startMixedRecording"
	StopMixedRecordingKey  = "stopMixedRecording"
	RecordingStatusKey     = "recordingStatus"
	GetRecorderStatusKey   = "getRecorderStatus"

	StartRecordingResponseKey  = "startRecordingResponse"
	StopRecordingResponseKey   = "stopRecordingResponse"
	RecordingStatusResponseKey = "recordingStatusResponse"

	RecordingStartedKey      = "recordingStarted"
	RecordingStoppedKey      = "recordingStopped"
	RecordingStateChangedKey = "recordingStateChanged"
	RecordingErrorKey        = "recordingError"
	RecorderStatusKey        = "recorderStatus"
)

// Recording lifecycle states surfaced through recordingStateChanged.
const (
	StateStarting   = "starting"
	StateStopping   = "stopping"
	StateProcessing = "processing"
)

/*
startRecording / startMixedRecording (room server -> recorder)
```JSON5
{
	id: 'startMixedRecording',
	roomId: <String>,
	userId: <String>,
	width: <Number|undefined>,  // mixed only
	height: <Number|undefined>, // mixed only
}
```
*/

type StartRecording struct {
	Id     string `json:"id,omitempty"`
	RoomId string `json:"roomId,omitempty"`
	UserId string `json:"userId,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

func (e *StartRecording) Mixed() bool {
	return e.Id == StartMixedRecordingKey
}

func (e *StartRecording) Success(recordingId, fileName, path string) *StartRecordingResponse {
	return &StartRecordingResponse{
		Id:          responseKey(e.Id),
		RecordingId: recordingId,
		RoomId:      e.RoomId,
		Status:      "ok",
		FileName:    pointer.ToString(fileName),
		Path:        pointer.ToString(path),
	}
}

func (e *StartRecording) Fail(err error) *StartRecordingResponse {
	return &StartRecordingResponse{
		Id:     responseKey(e.Id),
		RoomId: e.RoomId,
		Status: "failed",
		Error:  pointer.ToString(err.Error()),
	}
}

func responseKey(id string) string {
	return id + "Response"
}

type StartRecordingResponse struct {
	Id          string  `json:"id,omitempty"`
	RecordingId string  `json:"recordingId,omitempty"`
	RoomId      string  `json:"roomId,omitempty"`
	Status      string  `json:"status,omitempty"`
	Error       *string `json:"error,omitempty"`
	FileName    *string `json:"fileName,omitempty"`
	Path        *string `json:"path,omitempty"`
}

/*
stopRecording / stopMixedRecording (room server -> recorder)
```JSON5
{
	id: 'stopMixedRecording',
	recordingId: <String>,
}
```
*/

type StopRecording struct {
	Id          string `json:"id,omitempty"`
	RecordingId string `json:"recordingId,omitempty"`
}

func (e *StopRecording) Mixed() bool {
	return e.Id == StopMixedRecordingKey
}

func (e *StopRecording) Success(fileName, path string, fileExists bool, duration, expected time.Duration) *StopRecordingResponse {
	r := &StopRecordingResponse{
		Id:          responseKey(e.Id),
		RecordingId: e.RecordingId,
		Status:      "ok",
		FileName:    fileName,
		Path:        path,
		FileExists:  fileExists,
		Duration:    duration.Seconds(),
	}
	if e.Mixed() {
		r.ExpectedDuration = pointer.ToFloat64(expected.Seconds())
	}
	return r
}

func (e *StopRecording) Fail(err error) *StopRecordingResponse {
	return &StopRecordingResponse{
		Id:          responseKey(e.Id),
		RecordingId: e.RecordingId,
		Status:      "failed",
		Error:       pointer.ToString(err.Error()),
	}
}

type StopRecordingResponse struct {
	Id               string   `json:"id,omitempty"`
	RecordingId      string   `json:"recordingId,omitempty"`
	Status           string   `json:"status,omitempty"`
	Error            *string  `json:"error,omitempty"`
	FileName         string   `json:"fileName,omitempty"`
	Path             string   `json:"path,omitempty"`
	FileExists       bool     `json:"fileExists"`
	Duration         float64  `json:"duration"`
	ExpectedDuration *float64 `json:"expectedDuration,omitempty"`
}

type RecordingStatus struct {
	Id          string `json:"id,omitempty"`
	RecordingId string `json:"recordingId,omitempty"`
}

func (e *RecordingStatus) Response(active bool, elapsed time.Duration, fileName string, inputs int) *RecordingStatusResponse {
	return &RecordingStatusResponse{
		Id:          RecordingStatusResponseKey,
		RecordingId: e.RecordingId,
		Active:      active,
		Elapsed:     elapsed.Seconds(),
		FileName:    fileName,
		InputCount:  inputs,
	}
}

type RecordingStatusResponse struct {
	Id          string  `json:"id,omitempty"`
	RecordingId string  `json:"recordingId,omitempty"`
	Active      bool    `json:"active"`
	Elapsed     float64 `json:"elapsed"`
	FileName    string  `json:"fileName,omitempty"`
	InputCount  int     `json:"inputCount"`
}

/*
Lifecycle events (recorder -> room server, fanned out to session members).
All carry the recording id and a wall-clock timestamp.
*/

type RecordingStarted struct {
	Id          string    `json:"id,omitempty"`
	RecordingId string    `json:"recordingId,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	FileName    string    `json:"fileName,omitempty"`
}

func NewRecordingStarted(recordingId, fileName string) *RecordingStarted {
	return &RecordingStarted{
		Id:          RecordingStartedKey,
		RecordingId: recordingId,
		Timestamp:   time.Now().UTC(),
		FileName:    fileName,
	}
}

type RecordingStopped struct {
	Id          string    `json:"id,omitempty"`
	RecordingId string    `json:"recordingId,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	FileName    string    `json:"fileName,omitempty"`
	Duration    float64   `json:"duration"`
}

func NewRecordingStopped(recordingId, fileName string, duration time.Duration) *RecordingStopped {
	return &RecordingStopped{
		Id:          RecordingStoppedKey,
		RecordingId: recordingId,
		Timestamp:   time.Now().UTC(),
		FileName:    fileName,
		Duration:    duration.Seconds(),
	}
}

type RecordingStateChanged struct {
	Id          string    `json:"id,omitempty"`
	RecordingId string    `json:"recordingId,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	State       string    `json:"state,omitempty"`
}

func NewRecordingStateChanged(recordingId, state string) *RecordingStateChanged {
	return &RecordingStateChanged{
		Id:          RecordingStateChangedKey,
		RecordingId: recordingId,
		Timestamp:   time.Now().UTC(),
		State:       state,
	}
}

type RecordingError struct {
	Id          string    `json:"id,omitempty"`
	RecordingId string    `json:"recordingId,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Message     string    `json:"message,omitempty"`
}

func NewRecordingError(recordingId, message string) *RecordingError {
	return &RecordingError{
		Id:          RecordingErrorKey,
		RecordingId: recordingId,
		Timestamp:   time.Now().UTC(),
		Message:     message,
	}
}

type RecorderStatus struct {
	Id         string    `json:"id,omitempty"`
	Version    string    `json:"version,omitempty"`
	InstanceId string    `json:"instanceId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewRecorderStatus(version, instanceId string) *RecorderStatus {
	return &RecorderStatus{
		Id:         RecorderStatusKey,
		Version:    version,
		InstanceId: instanceId,
		Timestamp:  time.Now().UTC(),
	}
}
