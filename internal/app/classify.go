package app

import (
	"context"
	"errors"
	"strings"

	"github.com/jphed/youtube-video-music-downloader/internal/domain"
)

// transcoderHints are the words yt-dlp uses when a postprocessor cannot find its tools.
// yt-dlp exposes no structured error code for this, so the message is the only signal
// when the error is not already typed.
var transcoderHints = []string{"ffmpeg", "ffprobe"}

// Classify maps a fetch error to a failure result
func Classify(container domain.Container, err error) domain.JobResult {
	switch {
	case err == nil:
		return domain.JobResult{Success: true}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.Failed(domain.FailureCancelled, "Download cancelled")
	case container == domain.ContainerAudio && mentionsTranscoder(err):
		return domain.Failed(domain.FailureMissingTranscoder,
			"FFmpeg is required for MP3 conversion. Install ffmpeg and make sure ffmpeg and ffprobe are on PATH. ("+err.Error()+")")
	default:
		return domain.Failed(domain.FailureUnknown, err.Error())
	}
}

func mentionsTranscoder(err error) bool {
	if errors.Is(err, domain.ErrTranscoderMissing) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range transcoderHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
