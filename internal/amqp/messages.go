package amqp

import (
	"encoding/json"
	"time"
)

// RecordBackupMessage is a lightweight notification that a record needs
// backing up. It carries only the record id; the worker fetches the full
// record from the database so the queue never holds stale data.
type RecordBackupMessage struct {
	RecordID  string    `json:"recordId"`
	ProjectID string    `json:"projectId"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordBackupMessage(recordID, projectID string) *RecordBackupMessage {
	return &RecordBackupMessage{
		RecordID:  recordID,
		ProjectID: projectID,
		Timestamp: time.Now(),
	}
}

func (m *RecordBackupMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordBackupMessageFromJSON(data []byte) (*RecordBackupMessage, error) {
	var msg RecordBackupMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
