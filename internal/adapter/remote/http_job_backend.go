package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"secure-transfer-gateway/internal/core/domain"
	"secure-transfer-gateway/pkg/apperror"
)

// VoiceSubmission is the payload of an asynchronous voice verification job.
type VoiceSubmission struct {
	Clip    domain.AudioClip
	Subject string
}

// HTTPJobBackend speaks a plain JSON job API:
//
//	POST {submitURL} (multipart file + user) -> {"id": "..."}
//	GET  {statusURL}/{id}                    -> {"status": "...", "result": {...}, "error": "..."}
type HTTPJobBackend struct {
	client    HTTPClient
	submitURL string
	statusURL string
}

// NewHTTPJobBackend creates a backend for the given endpoints.
func NewHTTPJobBackend(client HTTPClient, submitURL, statusURL string) *HTTPJobBackend {
	return &HTTPJobBackend{
		client:    client,
		submitURL: submitURL,
		statusURL: strings.TrimRight(statusURL, "/"),
	}
}

type submitResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// Submit uploads the clip and returns the remote job ID.
func (b *HTTPJobBackend) Submit(ctx context.Context, payload VoiceSubmission) (string, error) {
	body, contentType, err := audioForm(payload.Clip, map[string]string{"user": payload.Subject})
	if err != nil {
		return "", apperror.ErrUploadFailed(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.submitURL, body)
	if err != nil {
		return "", apperror.ErrUploadFailed(err)
	}
	req.Header.Set("Content-Type", contentType)

	var out submitResponse
	if err := doJSON(b.client, req, &out); err != nil {
		return "", classifySubmit(err)
	}
	if out.ID == "" {
		return "", apperror.ErrJobMalformedResponse(errors.New("missing id"))
	}
	return out.ID, nil
}

// Poll fetches the job's current status.
func (b *HTTPJobBackend) Poll(ctx context.Context, jobID string) (*domain.VerificationJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.statusURL+"/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}

	var out statusResponse
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
	return &domain.VerificationJob{
		JobID:         jobID,
		Status:        status,
		Result:        out.Result,
		FailureReason: out.Error,
	}, nil
}

// parseJobStatus maps the provider vocabularies onto JobStatus.
func parseJobStatus(s string) (domain.JobStatus, error) {
	switch strings.ToLower(s) {
	case "queued", "pending", "processing", "running":
		return domain.JobPending, nil
	case "completed", "succeeded", "done":
		return domain.JobCompleted, nil
	case "failed", "error":
		return domain.JobFailed, nil
	default:
		return "", fmt.Errorf("unknown job status %q", s)
	}
}
