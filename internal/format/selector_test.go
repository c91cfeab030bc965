package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jphed/youtube-video-music-downloader/internal/domain"
)

func TestSelect_EverySupportedPairIsNonEmpty(t *testing.T) {
	for _, container := range []domain.Container{domain.ContainerVideo, domain.ContainerAudio} {
		for _, q := range Qualities(container) {
			t.Run(string(container)+"/"+q, func(t *testing.T) {
				plan, err := Select(container, q)
				require.NoError(t, err)
				assert.NotEmpty(t, plan.Selector)
			})
		}
	}
}

func TestSelect_Video(t *testing.T) {
	tests := []struct {
		quality  string
		selector string
	}{
		{"best", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"},
		{"1080p", "bestvideo[height<=1080][ext=mp4]+bestaudio[ext=m4a]/best[height<=1080][ext=mp4]/best[height<=1080]"},
		{"720p", "bestvideo[height<=720][ext=mp4]+bestaudio[ext=m4a]/best[height<=720][ext=mp4]/best[height<=720]"},
		{"480p", "bestvideo[height<=480][ext=mp4]+bestaudio[ext=m4a]/best[height<=480][ext=mp4]/best[height<=480]"},
		{"360p", "bestvideo[height<=360][ext=mp4]+bestaudio[ext=m4a]/best[height<=360][ext=mp4]/best[height<=360]"},
		{"Best", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"},
	}

	for _, tt := range tests {
		t.Run(tt.quality, func(t *testing.T) {
			plan, err := Select(domain.ContainerVideo, tt.quality)
			require.NoError(t, err)
			assert.Equal(t, tt.selector, plan.Selector)
			assert.Equal(t, "mp4", plan.MergeOutputFormat)
			assert.Nil(t, plan.PostProcessing)
			assert.True(t, plan.RequiresMerge())
		})
	}
}

func TestSelect_VideoAudioOnly(t *testing.T) {
	for _, label := range []string{"audio-only", "Audio-only (m4a)", "audio only", "m4a", " M4A "} {
		plan, err := Select(domain.ContainerVideo, label)
		require.NoError(t, err, label)
		assert.Equal(t, "bestaudio[ext=m4a]/bestaudio/best", plan.Selector)
		assert.False(t, plan.RequiresMerge())
		assert.NotContains(t, plan.Selector, "bestvideo")
	}
}

func TestSelect_Audio(t *testing.T) {
	tests := []struct {
		quality string
		kbps    int
	}{
		{"320k", 320},
		{"192k", 192},
		{"128k", 128},
		{"192kbps", 192},
		{" 320K ", 320},
	}

	for _, tt := range tests {
		t.Run(tt.quality, func(t *testing.T) {
			plan, err := Select(domain.ContainerAudio, tt.quality)
			require.NoError(t, err)
			assert.Equal(t, "bestaudio/best", plan.Selector)
			require.NotNil(t, plan.PostProcessing)
			assert.Equal(t, "mp3", plan.PostProcessing.Codec)
			assert.Equal(t, tt.kbps, plan.PostProcessing.BitrateKbps)
			assert.Equal(t, []string{"-ar", "44100"}, plan.PostProcessing.ExtraArgs)
			assert.Equal(t, "mp3", plan.OutputExtension())
		})
	}
}

func TestSelect_InvalidQuality(t *testing.T) {
	tests := []struct {
		container domain.Container
		quality   string
	}{
		{domain.ContainerVideo, "4k"},
		{domain.ContainerVideo, "320k"},
		{domain.ContainerVideo, ""},
		{domain.ContainerVideo, "audio-only 4k"},
		{domain.ContainerVideo, "audio onlyx"},
		{domain.ContainerAudio, "m4a"},
		{domain.ContainerAudio, "1080p"},
		{domain.ContainerAudio, "256k"},
		{domain.ContainerAudio, "best"},
	}

	for _, tt := range tests {
		t.Run(string(tt.container)+"/"+tt.quality, func(t *testing.T) {
			_, err := Select(tt.container, tt.quality)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidQuality)
		})
	}
}

func TestSelect_InvalidContainer(t *testing.T) {
	_, err := Select("gif", "best")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidContainer)
}

func TestProgressive(t *testing.T) {
	assert.Equal(t,
		"best[acodec!=none][vcodec!=none][ext=mp4][height<=480]/best[acodec!=none][vcodec!=none][height<=480]",
		Progressive(480))
	assert.Equal(t,
		"best[acodec!=none][vcodec!=none][ext=mp4]/best[acodec!=none][vcodec!=none]",
		Progressive(0))
}

func TestDegrade_CapsVideoAt720(t *testing.T) {
	tests := []struct {
		quality string
		ceiling string
	}{
		{"1080p", "[height<=720]"},
		{"720p", "[height<=720]"},
		{"480p", "[height<=480]"},
		{"360p", "[height<=360]"},
	}

	for _, tt := range tests {
		t.Run(tt.quality, func(t *testing.T) {
			req := domain.NewDownloadRequest("https://youtu.be/x", domain.ContainerVideo, tt.quality)
			plan, err := Select(req.Container, req.Quality)
			require.NoError(t, err)

			degraded, changed := Degrade(req, plan)

			assert.True(t, changed)
			assert.False(t, degraded.RequiresMerge())
			assert.Empty(t, degraded.MergeOutputFormat)
			for _, alt := range strings.Split(degraded.Selector, "/") {
				assert.Contains(t, alt, tt.ceiling)
				assert.Contains(t, alt, "[acodec!=none][vcodec!=none]")
			}
		})
	}
}

func TestDegrade_BestIsUncappedProgressive(t *testing.T) {
	req := domain.NewDownloadRequest("https://youtu.be/x", domain.ContainerVideo, "best")
	plan, _ := Select(req.Container, req.Quality)

	degraded, changed := Degrade(req, plan)

	assert.True(t, changed)
	assert.Equal(t, Progressive(0), degraded.Selector)
	assert.NotContains(t, degraded.Selector, "height")
}

func TestDegrade_LeavesAudioPlansAlone(t *testing.T) {
	videoAudio := domain.NewDownloadRequest("https://youtu.be/x", domain.ContainerVideo, "audio-only")
	plan, _ := Select(videoAudio.Container, videoAudio.Quality)
	degraded, changed := Degrade(videoAudio, plan)
	assert.False(t, changed)
	assert.Equal(t, plan, degraded)

	mp3 := domain.NewDownloadRequest("https://youtu.be/x", domain.ContainerAudio, "320k")
	plan, _ = Select(mp3.Container, mp3.Quality)
	degraded, changed = Degrade(mp3, plan)
	assert.False(t, changed)
	assert.Equal(t, plan, degraded)
}

func TestCeiling(t *testing.T) {
	assert.Equal(t, 1080, Ceiling("1080p"))
	assert.Equal(t, 360, Ceiling("360P"))
	assert.Equal(t, 0, Ceiling("best"))
	assert.Equal(t, 0, Ceiling("nonsense"))
}
