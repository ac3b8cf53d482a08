package main

import (
	"encoding/json"
	"errors"
)

// Inbound event names.
const (
	EventJoin           = "join"
	EventLeaveRoom      = "leaveRoom"
	EventCodeChange     = "codeChange"
	EventTyping         = "typing"
	EventLanguageChange = "languageChange"
	EventCompileCode    = "compileCode"
)

// Outbound event names.
const (
	EventJoined         = "joined"
	EventUserJoined     = "userJoined"
	EventCodeUpdate     = "codeUpdate"
	EventUserTyping     = "userTyping"
	EventLanguageUpdate = "languageUpdate"
	EventCodeResponse   = "codeResponse"
	EventError          = "error"
)

// Envelope is the JSON frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinPayload struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
	Agenda   string `json:"agenda,omitempty"`
}

type CodeChangePayload struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

type TypingPayload struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

type LanguageChangePayload struct {
	RoomID   string `json:"roomId"`
	Language string `json:"language"`
}

type CompilePayload struct {
	RoomID   string `json:"roomId"`
	Code     string `json:"code"`
	Language string `json:"language"`
	Version  string `json:"version"`
}

// JoinedPayload acknowledges a join with the room as the joiner should
// first render it.
type JoinedPayload struct {
	RoomID   string   `json:"roomId"`
	Code     string   `json:"code"`
	Language Language `json:"language"`
	Agenda   string   `json:"agenda,omitempty"`
	Users    []string `json:"users"`
}

type UsersPayload struct {
	Users []string `json:"users"`
}

type CodeUpdatePayload struct {
	Code string `json:"code"`
}

type UserTypingPayload struct {
	UserName string `json:"userName"`
}

type LanguageUpdatePayload struct {
	Language Language `json:"language"`
}

type CodeResponsePayload struct {
	Output string `json:"output"`
}

type ErrorPayload struct {
	Event   string   `json:"event"`
	Code    string   `json:"code"`
	Kind    ExecKind `json:"kind,omitempty"`
	Message string   `json:"message"`
}

// encodeEvent renders an outbound frame. Payload types above always marshal,
// so a failure here is a programming error and yields nil.
func encodeEvent(event string, payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil
	}
	return frame
}

func decodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, errors.Join(ErrInvalidPayload, err)
	}
	if env.Event == "" {
		return Envelope{}, ErrInvalidPayload
	}
	return env, nil
}

func decodePayload(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return ErrInvalidPayload
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return errors.Join(ErrInvalidPayload, err)
	}
	return nil
}

func errorEvent(event string, err error) []byte {
	p := ErrorPayload{Event: event, Code: errorCode(err), Message: err.Error()}
	var ee *ExecutionError
	if errors.As(err, &ee) {
		p.Kind = ee.Kind
	}
	return encodeEvent(EventError, p)
}
