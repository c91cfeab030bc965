// Package format turns a (container, quality) choice into a yt-dlp format plan.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jphed/youtube-video-music-downloader/internal/domain"
)

// Canonical quality tokens
const (
	QualityBest      = "best"
	Quality1080p     = "1080p"
	Quality720p      = "720p"
	Quality480p      = "480p"
	Quality360p      = "360p"
	QualityAudioOnly = "audio-only"

	Bitrate320 = "320k"
	Bitrate192 = "192k"
	Bitrate128 = "128k"
)

// ProgressiveCeiling is the highest height commonly served as a single pre-muxed stream
const ProgressiveCeiling = 720

const (
	audioCodec      = "mp3"
	audioSampleRate = "44100"
	mergeContainer  = "mp4"
	progressiveBase = "best[acodec!=none][vcodec!=none]"
)

var videoCeilings = map[string]int{
	QualityBest:      0,
	Quality1080p:     1080,
	Quality720p:      720,
	Quality480p:      480,
	Quality360p:      360,
	QualityAudioOnly: 0,
}

// Labels accepted in place of the audio-only token
var videoAliases = map[string]string{
	"audio only":       QualityAudioOnly,
	"audio-only (m4a)": QualityAudioOnly,
	"m4a":              QualityAudioOnly,
}

var audioBitrates = map[string]int{
	Bitrate320: 320,
	Bitrate192: 192,
	Bitrate128: 128,
}

// VideoQualities lists the supported video tokens in display order
func VideoQualities() []string {
	return []string{QualityBest, Quality1080p, Quality720p, Quality480p, Quality360p, QualityAudioOnly}
}

// AudioQualities lists the supported audio tokens in display order
func AudioQualities() []string {
	return []string{Bitrate320, Bitrate192, Bitrate128}
}

// Qualities lists the supported tokens for a container
func Qualities(container domain.Container) []string {
	if container == domain.ContainerAudio {
		return AudioQualities()
	}
	return VideoQualities()
}

// Normalize maps a user supplied token, including the long UI labels, onto its canonical form
func Normalize(container domain.Container, quality string) (string, error) {
	q := strings.ToLower(strings.TrimSpace(quality))
	switch container {
	case domain.ContainerVideo:
		if alias, ok := videoAliases[q]; ok {
			q = alias
		}
		if _, ok := videoCeilings[q]; ok {
			return q, nil
		}
	case domain.ContainerAudio:
		if strings.HasSuffix(q, "kbps") {
			q = strings.TrimSuffix(q, "kbps") + "k"
		}
		if _, ok := audioBitrates[q]; ok {
			return q, nil
		}
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidContainer, container)
	}
	return "", fmt.Errorf("%w: %q for %s", domain.ErrInvalidQuality, quality, container)
}

// Select builds the format plan for a container and quality token
func Select(container domain.Container, quality string) (domain.FormatPlan, error) {
	q, err := Normalize(container, quality)
	if err != nil {
		return domain.FormatPlan{}, err
	}

	if container == domain.ContainerAudio {
		return domain.FormatPlan{
			Selector: "bestaudio/best",
			PostProcessing: &domain.PostProcessing{
				Codec:       audioCodec,
				BitrateKbps: audioBitrates[q],
				ExtraArgs:   []string{"-ar", audioSampleRate},
			},
		}, nil
	}

	if q == QualityAudioOnly {
		return domain.FormatPlan{Selector: "bestaudio[ext=m4a]/bestaudio/best"}, nil
	}

	return domain.FormatPlan{
		Selector:          mergedChain(videoCeilings[q]),
		MergeOutputFormat: mergeContainer,
	}, nil
}

// Ceiling returns the height limit of a video token; 0 means uncapped or not a video ceiling
func Ceiling(quality string) int {
	q, err := Normalize(domain.ContainerVideo, quality)
	if err != nil {
		return 0
	}
	return videoCeilings[q]
}

// mergedChain prefers separate mp4 video + m4a audio, then pre-muxed mp4, then anything
func mergedChain(ceiling int) string {
	h := ""
	if ceiling > 0 {
		h = fmt.Sprintf("[height<=%d]", ceiling)
	}
	return "bestvideo" + h + "[ext=mp4]+bestaudio[ext=m4a]" +
		"/best" + h + "[ext=mp4]" +
		"/best" + h
}

// Progressive returns a selector restricted to single streams carrying both audio and video.
// A ceiling of 0 leaves the height uncapped.
func Progressive(ceiling int) string {
	if ceiling <= 0 {
		return progressiveBase + "[ext=mp4]/" + progressiveBase
	}
	h := "[height<=" + strconv.Itoa(ceiling) + "]"
	return progressiveBase + "[ext=mp4]" + h + "/" + progressiveBase + h
}

// Degrade rewrites a plan so it can succeed without the transcoder. It reports whether the plan
// changed. Audio plans are returned untouched: extraction has no merge-free alternative.
func Degrade(req domain.DownloadRequest, plan domain.FormatPlan) (domain.FormatPlan, bool) {
	if req.Container != domain.ContainerVideo {
		return plan, false
	}
	q, err := Normalize(domain.ContainerVideo, req.Quality)
	if err != nil || q == QualityAudioOnly {
		return plan, false
	}

	ceiling := videoCeilings[q]
	if ceiling > ProgressiveCeiling {
		ceiling = ProgressiveCeiling
	}
	return domain.FormatPlan{Selector: Progressive(ceiling)}, true
}
