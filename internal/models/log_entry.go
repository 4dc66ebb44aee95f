package models

import "time"

// PipelineLogEntry is one task-keyed progress event emitted while a
// pipeline run moves through its stages. Entries are published to Kafka
// best-effort; losing one never affects the run itself.
type PipelineLogEntry struct {
	TaskID    string    `json:"task_id"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Count     int       `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
