package model

import "encoding/json"

// WebSocket message types
const (
	WSMessageTypeStatus = "status"
	WSMessageTypeResult = "result"
	WSMessageTypePing   = "ping"
	WSMessageTypePong   = "pong"
)

type WSMessage struct {
	Type string `json:"type"`
}

// WSStatusMessage announces a job status transition to subscribers.
type WSStatusMessage struct {
	Type   string    `json:"type"`
	JobID  int64     `json:"jobId"`
	Status JobStatus `json:"status"`
}

// WSResultMessage carries the recorded result once a job reaches DONE.
type WSResultMessage struct {
	Type   string          `json:"type"`
	JobID  int64           `json:"jobId"`
	Result json.RawMessage `json:"result"`
}
