package domain

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle of a remote verification or transcription job.
type JobStatus string

const (
	JobPending   JobStatus = "Pending"
	JobCompleted JobStatus = "Completed"
	JobFailed    JobStatus = "Failed"
)

// IsTerminal returns true once the job can no longer change.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// VerificationJob is a remote unit of work identified by JobID.
type VerificationJob struct {
	JobID         string          `json:"job_id"`
	SubmittedAt   time.Time       `json:"submitted_at"`
	Status        JobStatus       `json:"status"`
	Result        json.RawMessage `json:"result,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
}

// Verdict is the voice-biometric decision.
type Verdict struct {
	Authenticated bool     `json:"authenticated"`
	Confidence    *float64 `json:"confidence,omitempty"`
}

// AudioClip is a recorded utterance as uploaded by the client.
type AudioClip struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Default audio metadata for clips recorded by the mobile app.
const (
	DefaultAudioFilename    = "audio.m4a"
	DefaultAudioContentType = "audio/x-m4a"
)

// CommandResult reports which configured phrases a transcript contains.
type CommandResult struct {
	Transcript string   `json:"transcript"`
	Matched    []string `json:"matched"`
}
