package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"secure-transfer-gateway/internal/core/domain"
	"secure-transfer-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// MaxAudioBytes bounds an uploaded voice clip.
const MaxAudioBytes = 8 << 20

// readClip reads the multipart "file" field into an AudioClip.
func readClip(c *gin.Context) (domain.AudioClip, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.AudioClip{}, apperror.Validation("audio clip too large")
		}
		return domain.AudioClip{}, apperror.Validation("multipart field 'file' is required")
	}
	if fh.Size > MaxAudioBytes {
		return domain.AudioClip{}, apperror.Validation("audio clip too large")
	}

	f, err := fh.Open()
	if err != nil {
		return domain.AudioClip{}, apperror.ErrOperationFailed(fmt.Errorf("open upload: %w", err))
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxAudioBytes+1))
	if err != nil {
		return domain.AudioClip{}, apperror.ErrOperationFailed(fmt.Errorf("read upload: %w", err))
	}
	if len(data) == 0 {
		return domain.AudioClip{}, apperror.Validation("audio clip is empty")
	}
	if len(data) > MaxAudioBytes {
		return domain.AudioClip{}, apperror.Validation("audio clip too large")
	}

	return domain.AudioClip{
		Data:        data,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
	}, nil
}
