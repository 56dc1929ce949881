package remote

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"

	"secure-transfer-gateway/internal/core/domain"
)

// audioForm builds a multipart body with the clip under "file" plus any extra
// text fields. It returns the body and its Content-Type.
func audioForm(clip domain.AudioClip, fields map[string]string) (*bytes.Buffer, string, error) {
	filename := clip.Filename
	if filename == "" {
		filename = domain.DefaultAudioFilename
	}
	contentType := clip.ContentType
	if contentType == "" {
		contentType = domain.DefaultAudioContentType
	}

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(clip.Data); err != nil {
		return nil, "", err
	}

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}
