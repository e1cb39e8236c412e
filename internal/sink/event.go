package sink

import (
	"encoding/json"
	"time"
)

// TextEvent is the wire form of a recognized text for network sinks
type TextEvent struct {
	InstanceID string    `json:"instanceId"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

func newTextEvent(instanceID, text string) TextEvent {
	return TextEvent{InstanceID: instanceID, Text: text, Timestamp: time.Now().UTC()}
}

func (e TextEvent) encode() ([]byte, error) {
	return json.Marshal(e)
}
