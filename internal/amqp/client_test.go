package amqp

import (
	"testing"
	"time"
)

func TestNewRecordBackupMessage(t *testing.T) {
	msg := NewRecordBackupMessage("r-123", "p-456")

	if msg.RecordID != "r-123" {
		t.Errorf("RecordID = %v, want r-123", msg.RecordID)
	}
	if msg.ProjectID != "p-456" {
		t.Errorf("ProjectID = %v, want p-456", msg.ProjectID)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestRecordBackupMessage_JSON(t *testing.T) {
	timestamp := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	msg := &RecordBackupMessage{
		RecordID:  "r-123",
		ProjectID: "p-456",
		Timestamp: timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsedMsg, err := RecordBackupMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("RecordBackupMessageFromJSON() error = %v", err)
	}

	if parsedMsg.RecordID != msg.RecordID {
		t.Errorf("Parsed RecordID = %v, want %v", parsedMsg.RecordID, msg.RecordID)
	}
	if parsedMsg.ProjectID != msg.ProjectID {
		t.Errorf("Parsed ProjectID = %v, want %v", parsedMsg.ProjectID, msg.ProjectID)
	}
	if !parsedMsg.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsedMsg.Timestamp, msg.Timestamp)
	}
}

func TestRecordBackupMessage_InvalidJSON(t *testing.T) {
	invalidJSON := []byte(`{"recordId": 42, "projectId": 1}`)

	if _, err := RecordBackupMessageFromJSON(invalidJSON); err == nil {
		t.Error("RecordBackupMessageFromJSON() should fail with invalid JSON")
	}
}
