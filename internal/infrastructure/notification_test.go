package infrastructure

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/jphed/youtube-video-music-downloader/internal/domain"
)

type recordedCommand struct {
	name string
	args []string
}

func newTestNotifier(cfg domain.NotificationConfig, fail bool) (*NotificationService, *[]recordedCommand) {
	var calls []recordedCommand
	n := NewNotificationService(&cfg, zap.NewNop())
	n.run = func(name string, args ...string) error {
		calls = append(calls, recordedCommand{name: name, args: args})
		if fail {
			return errors.New("exit status 1")
		}
		return nil
	}
	return n, &calls
}

func TestNotificationService_Disabled(t *testing.T) {
	n, calls := newTestNotifier(domain.NotificationConfig{Enabled: false, Method: "notify-send"}, false)

	assert.NoError(t, n.Send("title", "message"))
	assert.Empty(t, *calls)
}

func TestNotificationService_NotifySend(t *testing.T) {
	n, calls := newTestNotifier(domain.NotificationConfig{Enabled: true, Method: "notify-send"}, false)

	n.NotifyJobFinished(domain.DownloadRequest{URL: "https://youtu.be/abc"}, domain.Succeeded("/out/My Song.mp3"))

	assert.Len(t, *calls, 1)
	assert.Equal(t, "notify-send", (*calls)[0].name)
	assert.Equal(t, []string{"--app-name=ytmd", "Download Completed", "Saved My Song.mp3"}, (*calls)[0].args)
}

func TestNotificationService_OSAScriptQuotes(t *testing.T) {
	n, calls := newTestNotifier(domain.NotificationConfig{Enabled: true, Method: "osascript"}, false)

	assert.NoError(t, n.Send(`Say "hi"`, `a\b`))

	assert.Len(t, *calls, 1)
	assert.Equal(t, []string{"-e", `display notification "a\\b" with title "Say \"hi\""`}, (*calls)[0].args)
}

func TestNotificationService_FailureTitles(t *testing.T) {
	tests := []struct {
		kind  domain.FailureKind
		title string
	}{
		{domain.FailureMissingTranscoder, "FFmpeg Required"},
		{domain.FailureCancelled, "Download Cancelled"},
		{domain.FailureUnknown, "Download Failed"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			n, calls := newTestNotifier(domain.NotificationConfig{Enabled: true, Method: "notify-send"}, true)

			n.NotifyJobFinished(domain.DownloadRequest{URL: "https://www.youtube.com/watch?v=0123456789abcdefghij"},
				domain.Failed(tt.kind, "x"))

			assert.Len(t, *calls, 1)
			assert.Equal(t, tt.title, (*calls)[0].args[1])
			assert.Equal(t, "https://www.youtube.com/watch?v=01234567...", (*calls)[0].args[2])
		})
	}
}

func TestNotificationService_UnknownMethod(t *testing.T) {
	n, calls := newTestNotifier(domain.NotificationConfig{Enabled: true, Method: "pigeon"}, false)

	assert.NoError(t, n.Send("t", "m"))
	assert.Empty(t, *calls)
}
