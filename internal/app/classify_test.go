package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jphed/youtube-video-music-downloader/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		container domain.Container
		err       error
		kind      domain.FailureKind
	}{
		{"audio ffprobe message", domain.ContainerAudio, errors.New("ERROR: Postprocessing: ffprobe and ffmpeg not found"), domain.FailureMissingTranscoder},
		{"audio upper case", domain.ContainerAudio, errors.New("FFMPEG missing"), domain.FailureMissingTranscoder},
		{"audio typed", domain.ContainerAudio, fmt.Errorf("postprocess: %w", domain.ErrTranscoderMissing), domain.FailureMissingTranscoder},
		{"video mentions ffmpeg", domain.ContainerVideo, errors.New("ffmpeg exited with code 1"), domain.FailureUnknown},
		{"audio other error", domain.ContainerAudio, errors.New("HTTP Error 403: Forbidden"), domain.FailureUnknown},
		{"cancelled", domain.ContainerAudio, fmt.Errorf("download cancelled: %w", context.Canceled), domain.FailureCancelled},
		{"deadline", domain.ContainerVideo, context.DeadlineExceeded, domain.FailureCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Classify(tt.container, tt.err)

			assert.False(t, result.Success)
			assert.Equal(t, tt.kind, result.Kind)
			assert.NotEmpty(t, result.Detail)
		})
	}
}

func TestClassify_UnknownKeepsRawMessage(t *testing.T) {
	result := Classify(domain.ContainerVideo, errors.New("ERROR: [youtube] abc: Video unavailable"))

	assert.Equal(t, "ERROR: [youtube] abc: Video unavailable", result.Detail)
}

func TestClassify_Nil(t *testing.T) {
	assert.True(t, Classify(domain.ContainerAudio, nil).Success)
}
