package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Reasons carried by recalculation requests.
const (
	ReasonEntryCreated      = "entry_created"
	ReasonEntryUpdated      = "entry_updated"
	ReasonEntryDeleted      = "entry_deleted"
	ReasonConfigurationSave = "configuration_saved"
	ReasonProvision         = "provision"
	ReasonManual            = "manual"
)

// RecalculateMessage asks the worker to rerun an owner's balance cascade.
// It carries no balances: the worker reads the current state from the store.
type RecalculateMessage struct {
	OwnerID   string    `json:"owner_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecalculateMessage creates a new recalculation request
func NewRecalculateMessage(ownerID, reason string) *RecalculateMessage {
	return &RecalculateMessage{
		OwnerID:   ownerID,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecalculateMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecalculateMessageFromJSON decodes a message and rejects one without owner.
func RecalculateMessageFromJSON(data []byte) (*RecalculateMessage, error) {
	var msg RecalculateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID == "" {
		return nil, errors.New("recalculate message without owner_id")
	}
	return &msg, nil
}
