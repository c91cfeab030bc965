package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobRecord(t *testing.T) {
	req := NewDownloadRequest(" https://www.youtube.com/watch?v=abc ", ContainerAudio, " 192k ")

	job := NewJobRecord(req)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc", job.URL)
	assert.Equal(t, ContainerAudio, job.Container)
	assert.Equal(t, "192k", job.Quality)
	assert.Equal(t, StatePlanning, job.State)
	assert.Nil(t, job.StartedAt)
}

func TestNewJobRecordWithID(t *testing.T) {
	job := NewJobRecordWithID("job-1", NewDownloadRequest("https://youtu.be/x", ContainerVideo, "best"))

	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, StatePlanning, job.State)
}

func TestJobRecord_MarkRunning(t *testing.T) {
	job := NewJobRecord(NewDownloadRequest("https://youtu.be/x", ContainerVideo, "1080p"))
	cfg := JobConfig{
		Plan:     FormatPlan{Selector: "best[height<=720]"},
		Tools:    ToolLocation{},
		Degraded: true,
	}

	job.MarkRunning(cfg)

	assert.Equal(t, StateRunning, job.State)
	assert.Equal(t, "best[height<=720]", job.Selector)
	assert.True(t, job.Degraded)
	assert.NotNil(t, job.StartedAt)
	assert.False(t, job.IsTerminal())
}

func TestJobRecord_MarkFinished(t *testing.T) {
	tests := []struct {
		name   string
		result JobResult
		state  JobState
	}{
		{"success", Succeeded("/out/a.mp3"), StateSucceeded},
		{"invalid input", Failed(FailureInvalidInput, "bad"), StateFailedInput},
		{"missing transcoder", Failed(FailureMissingTranscoder, "ffmpeg"), StateFailedMissingTool},
		{"unknown", Failed(FailureUnknown, "HTTP Error 403"), StateFailedUnknown},
		{"cancelled", Failed(FailureCancelled, "context canceled"), StateCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewJobRecord(NewDownloadRequest("https://youtu.be/x", ContainerAudio, "320k"))
			job.MarkFinished(tt.result)

			assert.Equal(t, tt.state, job.State)
			assert.Equal(t, tt.result.Kind, job.FailureKind)
			assert.Equal(t, tt.result.SavedPath, job.SavedPath)
			assert.NotNil(t, job.CompletedAt)
			assert.True(t, job.IsTerminal())
		})
	}
}

func TestParseContainer(t *testing.T) {
	tests := []struct {
		in      string
		want    Container
		wantErr bool
	}{
		{"video", ContainerVideo, false},
		{"MP4", ContainerVideo, false},
		{"audio", ContainerAudio, false},
		{" mp3 ", ContainerAudio, false},
		{"flac", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseContainer(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidContainer)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDownloadRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     DownloadRequest
		wantErr bool
	}{
		{"valid video", NewDownloadRequest("https://www.youtube.com/watch?v=abc", ContainerVideo, "720p"), false},
		{"valid audio", NewDownloadRequest("http://example.com/v/1", ContainerAudio, "128k"), false},
		{"missing url", NewDownloadRequest("", ContainerVideo, "720p"), true},
		{"bare token url", NewDownloadRequest("X", ContainerAudio, "192k"), false},
		{"bad container", DownloadRequest{URL: "https://a.b/c", Container: "gif", Quality: "best"}, true},
		{"missing quality", NewDownloadRequest("https://a.b/c", ContainerVideo, ""), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDownloadRequest_ValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https", "https://www.youtube.com/watch?v=abc", false},
		{"http", "http://example.com/v/1", false},
		{"missing", "", true},
		{"bare token", "X", true},
		{"non http scheme", "ftp://example.com/a", true},
		{"no host", "https://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDownloadRequest(tt.url, ContainerVideo, "best").ValidateURL()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidURL)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProgressEvent_Percent(t *testing.T) {
	assert.Equal(t, 0.0, DownloadingEvent(0, 50, 0, -1).Percent())
	assert.Equal(t, 50.0, DownloadingEvent(200, 100, 10, 3).Percent())
	assert.Equal(t, 100.0, DownloadingEvent(100, 150, 0, 0).Percent())
	assert.Equal(t, 100.0, FinishedEvent().Percent())
}

func TestFormatPlan_Flags(t *testing.T) {
	merged := FormatPlan{Selector: "bestvideo+bestaudio/best", MergeOutputFormat: "mp4"}
	assert.True(t, merged.RequiresMerge())
	assert.False(t, merged.RequiresTranscode())
	assert.Equal(t, "mp4", merged.OutputExtension())

	audio := FormatPlan{Selector: "bestaudio/best", PostProcessing: &PostProcessing{Codec: "mp3", BitrateKbps: 192}}
	assert.False(t, audio.RequiresMerge())
	assert.True(t, audio.RequiresTranscode())
	assert.Equal(t, "mp3", audio.OutputExtension())
}
