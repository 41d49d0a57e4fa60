package cases

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	TitleMin       = 3
	TitleMax       = 200
	DescriptionMin = 10
	DescriptionMax = 5000

	DefaultMaxAttachmentBytes = 50 << 20
)

var allowedContentTypes = map[string]struct{}{
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"text/plain": {},
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
}

// NormalizeContentType lower-cases a MIME type and drops any parameters.
func NormalizeContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "image/jpg" {
		ct = "image/jpeg"
	}
	return ct
}

func AllowedContentType(ct string) bool {
	_, ok := allowedContentTypes[NormalizeContentType(ct)]
	return ok
}

type AttachmentInput struct {
	Filename    string `json:"filename"`
	URL         string `json:"file_url"`
	StorageKey  string `json:"storage_key,omitempty"`
	ContentType string `json:"content_type"`
	FileSize    int64  `json:"file_size"`
}

// UnmarshalJSON accepts the location as either "file_url" or "url".
func (a *AttachmentInput) UnmarshalJSON(b []byte) error {
	type plain AttachmentInput
	var aux struct {
		plain
		AltURL string `json:"url"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*a = AttachmentInput(aux.plain)
	if strings.TrimSpace(a.URL) == "" {
		a.URL = aux.AltURL
	}
	return nil
}

type CreateCaseInput struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Attachments []AttachmentInput `json:"attachments"`
}

// Validate trims the input in place and checks every rule before anything is written.
func (in *CreateCaseInput) Validate(maxAttachmentBytes int64) error {
	if maxAttachmentBytes <= 0 {
		maxAttachmentBytes = DefaultMaxAttachmentBytes
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if n := utf8.RuneCountInString(in.Title); n < TitleMin || n > TitleMax {
		return validationf("title must be between %d and %d characters", TitleMin, TitleMax)
	}
	if n := utf8.RuneCountInString(in.Description); n < DescriptionMin || n > DescriptionMax {
		return validationf("description must be between %d and %d characters", DescriptionMin, DescriptionMax)
	}
	for i := range in.Attachments {
		a := &in.Attachments[i]
		a.Filename = strings.TrimSpace(a.Filename)
		a.URL = strings.TrimSpace(a.URL)
		if a.Filename == "" {
			return validationf("attachment %d has no filename", i+1)
		}
		if a.URL == "" {
			return validationf("attachment %s has no url", a.Filename)
		}
		if a.FileSize < 0 {
			return validationf("attachment %s has a negative size", a.Filename)
		}
		if !AllowedContentType(a.ContentType) {
			return fmt.Errorf("%w: %s (%s)", ErrUnsupportedMedia, a.Filename, a.ContentType)
		}
		if a.FileSize > maxAttachmentBytes {
			return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrPayloadTooLarge, a.Filename, a.FileSize, maxAttachmentBytes)
		}
		a.ContentType = NormalizeContentType(a.ContentType)
	}
	return nil
}
