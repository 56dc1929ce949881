package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"secure-transfer-gateway/internal/core/domain"
	"secure-transfer-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// Voice gateway modes.
const (
	VoiceModeSync  = "sync"
	VoiceModeAsync = "async"
)

const defaultVoiceTimeout = 30 * time.Second

// VoiceGatewayConfig configures the voice-biometric service client.
type VoiceGatewayConfig struct {
	Mode    string
	URL     string
	Timeout time.Duration
}

// VoiceGateway implements ports.VoiceAuthenticator. In sync mode the clip is
// posted and the verdict comes back in the response; in async mode it is
// submitted as a job and the verdict is read from the job result.
type VoiceGateway struct {
	client HTTPClient
	jobs   *JobClient[VoiceSubmission]
	cfg    VoiceGatewayConfig
	log    zerolog.Logger
}

// NewVoiceGateway creates a gateway. jobs is only used in async mode.
func NewVoiceGateway(client HTTPClient, jobs *JobClient[VoiceSubmission], cfg VoiceGatewayConfig, log zerolog.Logger) *VoiceGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultVoiceTimeout
	}
	if cfg.Mode == "" {
		cfg.Mode = VoiceModeSync
	}
	return &VoiceGateway{client: client, jobs: jobs, cfg: cfg, log: log}
}

type verdictResponse struct {
	Authenticated *bool    `json:"authenticated"`
	Confidence    *float64 `json:"confidence"`
}

// Authenticate asks the service whether clip was spoken by subjectID.
func (g *VoiceGateway) Authenticate(ctx context.Context, clip domain.AudioClip, subjectID string) (*domain.Verdict, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	var (
		verdict *domain.Verdict
		err     error
	)
	if g.cfg.Mode == VoiceModeAsync {
		verdict, err = g.authenticateAsync(callCtx, clip, subjectID)
	} else {
		verdict, err = g.authenticateSync(callCtx, clip, subjectID)
	}
	if err != nil {
		err = g.classify(ctx, callCtx, err)
		g.log.Warn().Err(err).Str("mode", g.cfg.Mode).Dur("elapsed", time.Since(start)).Msg("voice authentication failed")
		return nil, err
	}

	g.log.Info().
		Str("mode", g.cfg.Mode).
		Bool("authenticated", verdict.Authenticated).
		Dur("elapsed", time.Since(start)).
		Msg("voice verdict received")
	return verdict, nil
}

func (g *VoiceGateway) authenticateSync(ctx context.Context, clip domain.AudioClip, subjectID string) (*domain.Verdict, error) {
	body, contentType, err := audioForm(clip, map[string]string{"user": subjectID})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	var out verdictResponse
	if err := doJSON(g.client, req, &out); err != nil {
		return nil, err
	}
	return out.verdict()
}

func (g *VoiceGateway) authenticateAsync(ctx context.Context, clip domain.AudioClip, subjectID string) (*domain.Verdict, error) {
	if g.jobs == nil {
		return nil, errors.New("async voice mode without a job client")
	}
	jobID, err := g.jobs.Submit(ctx, VoiceSubmission{Clip: clip, Subject: subjectID})
	if err != nil {
		return nil, err
	}
	defer g.jobs.Forget(jobID)

	job, err := g.jobs.AwaitResult(ctx, jobID, 0, 0)
	if err != nil {
		return nil, err
	}

	var out verdictResponse
	if err := json.Unmarshal(job.Result, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", errDecode, err)
	}
	return out.verdict()
}

func (r verdictResponse) verdict() (*domain.Verdict, error) {
	if r.Authenticated == nil {
		return nil, fmt.Errorf("%w: missing authenticated field", errDecode)
	}
	return &domain.Verdict{Authenticated: *r.Authenticated, Confidence: r.Confidence}, nil
}

// classify maps a failure onto the voice error family. Cancellation by the
// caller is passed through untouched.
func (g *VoiceGateway) classify(parent, callCtx context.Context, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("voice authentication: %w", parent.Err())
	}

	var netErr net.Error
	switch {
	case errors.Is(callCtx.Err(), context.DeadlineExceeded),
		errors.Is(err, apperror.ErrPollTimeout("")),
		errors.As(err, &netErr) && netErr.Timeout():
		return apperror.ErrVoiceTimeout(err)
	case errors.Is(err, errDecode), errors.Is(err, apperror.ErrJobMalformedResponse(nil)):
		return apperror.ErrVoiceMalformedResponse(err)
	default:
		return apperror.ErrVoiceServiceUnavailable(err)
	}
}
