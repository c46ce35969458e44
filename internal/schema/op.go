package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// OpKind identifies the remote call a pending operation replays.
type OpKind string

const (
	OpCompleteActivity    OpKind = "complete_activity"
	OpUpdateProfile       OpKind = "update_profile"
	OpCreateReminder      OpKind = "create_reminder"
	OpUpdateReminder      OpKind = "update_reminder"
	OpDeleteReminder      OpKind = "delete_reminder"
	OpToggleReminder      OpKind = "toggle_reminder"
	OpUpdateMetrics       OpKind = "update_metrics"
	OpAddWater            OpKind = "add_water"
	OpSetMood             OpKind = "set_mood"
	OpRegisterPushToken   OpKind = "register_push_token"
	OpUnregisterPushToken OpKind = "unregister_push_token"
)

// PendingOp is a mutation intent that reached the local store but has not
// been acknowledged by the remote service. Pending operations are replayed
// in strict insertion order; each one must be idempotent at the remote side
// for its entity id, because a replay pass that is interrupted part-way may
// resend an operation the server already applied.
type PendingOp struct {
	Kind      OpKind          `json:"kind"`
	TargetID  string          `json:"target_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewPendingOp builds a pending operation, serializing payload as JSON.
// A nil payload produces an operation with no body (e.g. delete, toggle).
func NewPendingOp(kind OpKind, targetID string, payload any) (PendingOp, error) {
	op := PendingOp{
		Kind:      kind,
		TargetID:  targetID,
		CreatedAt: time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return PendingOp{}, fmt.Errorf("failed to encode %s payload: %w", kind, err)
		}
		op.Payload = raw
	}
	return op, nil
}

// DecodePayload unmarshals the operation payload into out.
func (op *PendingOp) DecodePayload(out any) error {
	if len(op.Payload) == 0 {
		return fmt.Errorf("operation %s has no payload", op.Kind)
	}
	if err := json.Unmarshal(op.Payload, out); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", op.Kind, err)
	}
	return nil
}

// WaterPayload is the payload for OpAddWater.
type WaterPayload struct {
	Amount int `json:"amount"`
}

// MoodPayload is the payload for OpSetMood.
type MoodPayload struct {
	Mood string `json:"mood"`
}

// PushTokenPayload is the payload for push token registration operations.
type PushTokenPayload struct {
	Token    string `json:"token"`
	Platform string `json:"platform,omitempty"` // ios, android, web
}
