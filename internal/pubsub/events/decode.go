package events

import (
	"github.com/titanous/json5"
)

// Event is a decoded control-channel message. The payload is kept raw and
// re-decoded into the concrete request type by the typed accessors, which
// return nil when the id does not match. Messages are accepted in JSON5 so
// hand-written operator payloads with comments or trailing commas still
// parse.
type Event struct {
	Id string

	raw []byte
}

func Decode(message []byte) *Event {
	m := make(map[string]interface{})
	if err := json5.Unmarshal(message, &m); err != nil {
		return &Event{}
	}

	id, ok := m["id"].(string)
	if !ok {
		return &Event{}
	}

	return &Event{Id: id, raw: message}
}

func (e *Event) IsValid() bool {
	switch e.Id {
	case StartRecordingKey, StopRecordingKey,
		StartMixedRecordingKey, StopMixedRecordingKey,
		RecordingStatusKey, GetRecorderStatusKey:
		return true
	}
	return false
}

func (e *Event) StartRecording() *StartRecording {
	if e.Id != StartRecordingKey && e.Id != StartMixedRecordingKey {
		return nil
	}
	s := &StartRecording{}
	if err := json5.Unmarshal(e.raw, s); err != nil {
		return nil
	}
	return s
}

func (e *Event) StopRecording() *StopRecording {
	if e.Id != StopRecordingKey && e.Id != StopMixedRecordingKey {
		return nil
	}
	s := &StopRecording{}
	if err := json5.Unmarshal(e.raw, s); err != nil {
		return nil
	}
	return s
}

func (e *Event) RecordingStatus() *RecordingStatus {
	if e.Id != RecordingStatusKey {
		return nil
	}
	s := &RecordingStatus{}
	if err := json5.Unmarshal(e.raw, s); err != nil {
		return nil
	}
	return s
}
