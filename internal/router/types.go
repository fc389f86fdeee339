package router

import (
	"encoding/json"
	"time"
)

// MessageType identifies the payload kind of a push frame.
type MessageType string

const (
	TypeRateUpdate       MessageType = "rate_update"
	TypeSignalUpdate     MessageType = "signal_update"
	TypePredictionUpdate MessageType = "prediction_update"
	TypeAlertCreated     MessageType = "alert_created"
	TypeJobProgress      MessageType = "job_progress"
)

// Envelope is the outer frame of every push message. Job channels send
// bare payloads with no type field; routers configured with a fallback
// type wrap those as Envelope{Type: fallback, Data: <whole frame>}.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Decode unmarshals the envelope payload into T.
func Decode[T any](env Envelope) (T, error) {
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
