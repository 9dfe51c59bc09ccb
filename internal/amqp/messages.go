package amqp

import (
	"encoding/json"
	"time"
)

// SubmissionSyncMessage announces that a stored submission changed. The
// worker reloads the row by ID; the remaining fields let it log and skip
// stale deliveries without a lookup.
type SubmissionSyncMessage struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	PeriodKey string    `json:"period_key"`
	VaultID   string    `json:"vault_id"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSubmissionSyncMessage(id, version int64, periodKey, vaultID string, amount float64) *SubmissionSyncMessage {
	return &SubmissionSyncMessage{
		ID:        id,
		Version:   version,
		PeriodKey: periodKey,
		VaultID:   vaultID,
		Amount:    amount,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SubmissionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SubmissionSyncMessageFromJSON(data []byte) (*SubmissionSyncMessage, error) {
	var msg SubmissionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
