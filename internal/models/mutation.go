package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MutationKind is the closed set of queued remote-write intents.
type MutationKind string

const (
	MutationSessionCreated     MutationKind = "session_created"
	MutationSessionUpdated     MutationKind = "session_updated"
	MutationSessionCompleted   MutationKind = "session_completed"
	MutationRoutineWeekUpdated MutationKind = "routine_week_updated"
)

// MutationPayload is the typed body of a mutation. Implementations:
// *SessionCreatedPayload, *SessionUpdatedPayload, *SessionHistoryPayload,
// *RoutineWeekPayload.
type MutationPayload interface {
	Kind() MutationKind
}

// SessionCreatedPayload mirrors a freshly started session to the remote.
type SessionCreatedPayload struct {
	Session TrainingSession `json:"session"`
}

// Kind implements MutationPayload.
func (*SessionCreatedPayload) Kind() MutationKind { return MutationSessionCreated }

// SessionUpdatedPayload mirrors an in-progress session snapshot to the remote.
type SessionUpdatedPayload struct {
	Session TrainingSession `json:"session"`
}

// Kind implements MutationPayload.
func (*SessionUpdatedPayload) Kind() MutationKind { return MutationSessionUpdated }

// OfflineMutation is a durably queued remote write.
type OfflineMutation struct {
	ID            uuid.UUID       `json:"id"`
	Seq           int64           `json:"seq"`
	Payload       MutationPayload `json:"payload"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
	IsSynced      bool            `json:"is_synced"`
	RetryCount    int             `json:"retry_count"`
	LastError     string          `json:"last_error,omitempty"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
}

// Kind returns the kind of the mutation's payload.
func (m OfflineMutation) Kind() MutationKind {
	return m.Payload.Kind()
}

// EncodePayload serializes a payload for storage alongside its kind.
func EncodePayload(p MutationPayload) (MutationKind, []byte, error) {
	if p == nil {
		return "", nil, fmt.Errorf("encoding mutation payload: nil payload")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", nil, fmt.Errorf("encoding %s payload: %w", p.Kind(), err)
	}
	return p.Kind(), data, nil
}

// DecodePayload restores the typed payload stored for kind.
func DecodePayload(kind MutationKind, data []byte) (MutationPayload, error) {
	var p MutationPayload
	switch kind {
	case MutationSessionCreated:
		p = &SessionCreatedPayload{}
	case MutationSessionUpdated:
		p = &SessionUpdatedPayload{}
	case MutationSessionCompleted:
		p = &SessionHistoryPayload{}
	case MutationRoutineWeekUpdated:
		p = &RoutineWeekPayload{}
	default:
		return nil, fmt.Errorf("unknown mutation kind %q", kind)
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", kind, err)
	}
	return p, nil
}
