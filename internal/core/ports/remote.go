package ports

import (
	"context"

	"secure-transfer-gateway/internal/core/domain"
)

// BiometricCapability is the host-provided biometric primitive.
type BiometricCapability interface {
	HasHardware(ctx context.Context) (bool, error)
	IsEnrolled(ctx context.Context) (bool, error)
	// Challenge prompts the user and reports whether they passed.
	Challenge(ctx context.Context, prompt string) (bool, error)
}

// VoiceAuthenticator decides whether a voice sample belongs to subjectID.
type VoiceAuthenticator interface {
	Authenticate(ctx context.Context, clip domain.AudioClip, subjectID string) (*domain.Verdict, error)
}

// JobBackend speaks the submit/poll protocol of one remote job service.
// Poll returns the job's current status; Pending means "ask again later".
type JobBackend[P any] interface {
	Submit(ctx context.Context, payload P) (string, error)
	Poll(ctx context.Context, jobID string) (*domain.VerificationJob, error)
}

// Transcriber turns speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip domain.AudioClip) (string, error)
}
