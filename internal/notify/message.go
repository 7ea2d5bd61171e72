package notify

import "encoding/json"

// MessageVersion is bumped whenever Message changes shape.
const MessageVersion = 1

// Message announces that a video reached a terminal status.
type Message struct {
	RunID       string `json:"runId"`
	SessionID   string `json:"sessionId"`
	VideoID     string `json:"videoId"`
	FileName    string `json:"fileName"`
	Status      string `json:"status"`
	FailureCode string `json:"failureCode,omitempty"`
	OccurredAt  string `json:"occurredAt"`
	Version     int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
