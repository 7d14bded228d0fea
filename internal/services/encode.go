package services

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"sort"
	"strings"

	"github.com/desertthunder/muzictl/internal/models"
	"github.com/desertthunder/muzictl/internal/shared"
)

// MaxUploads is the most files a multipart submission may carry.
const MaxUploads = 30

// encodeForm returns the request body and content type for form under enc.
func encodeForm(enc shared.Encoding, form *models.ImportForm) (io.Reader, string, error) {
	switch enc {
	case shared.EncodingURLEncoded:
		return strings.NewReader(form.Fields.Encode()), "application/x-www-form-urlencoded", nil
	case shared.EncodingMultipart:
		return encodeMultipart(form)
	case "":
		return nil, "", fmt.Errorf("%w: provider does not declare a request encoding", shared.ErrInvalidConfig)
	default:
		return nil, "", fmt.Errorf("%w: %q", shared.ErrUnknownEncoding, enc)
	}
}

func encodeMultipart(form *models.ImportForm) (io.Reader, string, error) {
	if len(form.Files) > MaxUploads {
		return nil, "", fmt.Errorf("%w: at most %d files per import, got %d", shared.ErrInvalidInput, MaxUploads, len(form.Files))
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(form.Fields))
	for k := range form.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, v := range form.Fields[k] {
			if err := w.WriteField(k, v); err != nil {
				return nil, "", fmt.Errorf("failed to write field %s: %w", k, err)
			}
		}
	}

	for _, f := range form.Files {
		part, err := w.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create part for %s: %w", f.Filename, err)
		}
		if f.Content == nil {
			continue
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", f.Filename, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
