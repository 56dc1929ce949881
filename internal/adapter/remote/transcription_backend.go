package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"secure-transfer-gateway/internal/core/domain"
	"secure-transfer-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// TranscriptionBackend drives an AssemblyAI-style speech-to-text API:
// upload the audio, submit a transcript job for the uploaded URL, then poll
// the transcript until it completes.
type TranscriptionBackend struct {
	client  HTTPClient
	baseURL string
	apiKey  string
}

// NewTranscriptionBackend creates a backend rooted at baseURL (for example
// https://api.assemblyai.com/v2).
func NewTranscriptionBackend(client HTTPClient, baseURL, apiKey string) *TranscriptionBackend {
	return &TranscriptionBackend{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL string `json:"audio_url"`
}

type transcriptResponse struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Text   *string `json:"text"`
	Error  string  `json:"error"`
}

// transcriptResult is stored as the job result of a completed transcript.
type transcriptResult struct {
	Text string `json:"text"`
}

// Submit uploads the clip and starts a transcript job.
func (b *TranscriptionBackend) Submit(ctx context.Context, clip domain.AudioClip) (string, error) {
	audioURL, err := b.upload(ctx, clip)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(transcriptRequest{AudioURL: audioURL})
	if err != nil {
		return "", apperror.ErrUploadFailed(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", apperror.ErrUploadFailed(err)
	}
	req.Header.Set("Content-Type", "application/json")
	b.authorize(req)

	var out transcriptResponse
	if err := doJSON(b.client, req, &out); err != nil {
		return "", classifySubmit(err)
	}
	if out.ID == "" {
		return "", apperror.ErrJobMalformedResponse(errors.New("missing transcript id"))
	}
	return out.ID, nil
}

func (b *TranscriptionBackend) upload(ctx context.Context, clip domain.AudioClip) (string, error) {
	body, contentType, err := audioForm(clip, nil)
	if err != nil {
		return "", apperror.ErrUploadFailed(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/upload", body)
	if err != nil {
		return "", apperror.ErrUploadFailed(err)
	}
	req.Header.Set("Content-Type", contentType)
	b.authorize(req)

	var out uploadResponse
	if err := doJSON(b.client, req, &out); err != nil {
		return "", classifySubmit(err)
	}
	if out.UploadURL == "" {
		return "", apperror.ErrJobMalformedResponse(errors.New("missing upload_url"))
	}
	return out.UploadURL, nil
}

// Poll fetches the transcript status.
func (b *TranscriptionBackend) Poll(ctx context.Context, jobID string) (*domain.VerificationJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/transcript/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}
	b.authorize(req)

	var out transcriptResponse
	if err := doJSON(b.client, req, &out); err != nil {
		if errors.Is(err, errDecode) {
			return nil, apperror.ErrJobMalformedResponse(err)
		}
		return nil, err
	}

	status, err := parseJobStatus(out.Status)
	if err != nil {
		return nil, apperror.ErrJobMalformedResponse(err)
	}
	job := &domain.VerificationJob{JobID: jobID, Status: status, FailureReason: out.Error}
	if status == domain.JobCompleted {
		if out.Text == nil {
			return nil, apperror.ErrJobMalformedResponse(errors.New("completed transcript without text"))
		}
		job.Result, _ = json.Marshal(transcriptResult{Text: *out.Text})
	}
	return job, nil
}

func (b *TranscriptionBackend) authorize(req *http.Request) {
	if b.apiKey != "" {
		req.Header.Set("Authorization", b.apiKey)
	}
}

// classifySubmit keeps transport and 5xx errors retryable for
// JobClient.Submit and marks everything else permanent.
func classifySubmit(err error) error {
	var se *statusError
	switch {
	case errors.Is(err, errDecode):
		return apperror.ErrJobMalformedResponse(err)
	case errors.As(err, &se) && se.Status >= 500:
		return err
	case errors.As(err, &se):
		return apperror.ErrUploadFailed(err)
	default:
		return err
	}
}

// Transcriber implements ports.Transcriber on top of a JobClient.
type Transcriber struct {
	jobs *JobClient[domain.AudioClip]
	log  zerolog.Logger
}

// NewTranscriber creates the transcription pipeline.
func NewTranscriber(jobs *JobClient[domain.AudioClip], log zerolog.Logger) *Transcriber {
	return &Transcriber{jobs: jobs, log: log}
}

// Transcribe uploads clip, waits for the transcript and returns its text.
func (t *Transcriber) Transcribe(ctx context.Context, clip domain.AudioClip) (string, error) {
	jobID, err := t.jobs.Submit(ctx, clip)
	if err != nil {
		return "", err
	}
	defer t.jobs.Forget(jobID)

	job, err := t.jobs.AwaitResult(ctx, jobID, 0, 0)
	if err != nil {
		return "", err
	}

	var res transcriptResult
	if err := json.Unmarshal(job.Result, &res); err != nil {
		return "", apperror.ErrJobMalformedResponse(err)
	}
	t.log.Debug().Str("job_id", jobID).Int("chars", len(res.Text)).Msg("transcript ready")
	return res.Text, nil
}
