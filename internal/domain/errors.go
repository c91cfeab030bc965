package domain

import "errors"

var (
	ErrInvalidQuality    = errors.New("unsupported quality")
	ErrInvalidContainer  = errors.New("unsupported container")
	ErrInvalidURL        = errors.New("invalid URL, expected http(s)")
	ErrJobInFlight       = errors.New("a download is already running")
	ErrJobNotFound       = errors.New("job not found")
	ErrJobFinished       = errors.New("job already finished")
	ErrTranscoderMissing = errors.New("ffmpeg/ffprobe not available")
	ErrFetcherNotFound   = errors.New("yt-dlp executable not found")
)
