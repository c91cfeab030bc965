package domain

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Container represents the target output kind
type Container string

const (
	ContainerVideo Container = "video" // merged video+audio, mp4
	ContainerAudio Container = "audio" // audio only, transcoded to mp3
)

// ParseContainer parses a container name, accepting the "mp4"/"mp3" aliases
func ParseContainer(s string) (Container, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "video", "mp4":
		return ContainerVideo, nil
	case "audio", "mp3":
		return ContainerAudio, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidContainer, s)
	}
}

// DownloadRequest is a single user submission. It is never modified once built.
type DownloadRequest struct {
	URL       string    `json:"url" validate:"required"`
	Container Container `json:"container" validate:"required,oneof=video audio"`
	Quality   string    `json:"quality" validate:"required"`
}

// NewDownloadRequest creates a request with trimmed fields
func NewDownloadRequest(rawURL string, container Container, quality string) DownloadRequest {
	return DownloadRequest{
		URL:       strings.TrimSpace(rawURL),
		Container: container,
		Quality:   strings.TrimSpace(quality),
	}
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("media_url", validateMediaURL)
}

// Validate checks the request shape. Quality tokens are checked by the format selector;
// the URL only has to be present, yt-dlp decides what it can fetch.
func (r DownloadRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

// ValidateURL checks that the URL is an absolute http(s) URL. Used where users type URLs.
func (r DownloadRequest) ValidateURL() error {
	if err := validate.Var(r.URL, "required,media_url"); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidURL, r.URL)
	}
	return nil
}

func validateMediaURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
