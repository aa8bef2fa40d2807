package media

import (
	"context"
	"errors"
	"time"
)

var (
	ErrFFmpegNotFound  = errors.New("media: ffmpeg not found in PATH")
	ErrFFprobeNotFound = errors.New("media: ffprobe not found in PATH")
	ErrTranscodeFailed = errors.New("media: transcoding failed")
	ErrThumbnailFailed = errors.New("media: thumbnail generation failed")
	ErrInvalidMedia    = errors.New("media: invalid or corrupted media file")
	ErrMediaTooLong    = errors.New("media: duration exceeds limit")
)

// Processor is the part of the video pipeline the worker depends on.
// FFmpegProcessor is the real implementation.
type Processor interface {
	// TranscodeMP4 converts the input into a web-ready H.264/AAC MP4.
	TranscodeMP4(ctx context.Context, inputPath, outputPath string) error

	// GenerateThumbnails writes periodic JPEG frames into outputDir and
	// returns their paths in frame order.
	GenerateThumbnails(ctx context.Context, inputPath, outputDir string) ([]string, error)

	// Probe extracts container and stream metadata.
	Probe(ctx context.Context, path string) (*Metadata, error)
}

// Metadata contains detailed media information from ffprobe.
type Metadata struct {
	Duration   float64 `json:"duration"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Bitrate    int64   `json:"bitrate"`
	VideoCodec string  `json:"video_codec"`
	AudioCodec string  `json:"audio_codec"`
	FrameRate  float64 `json:"frame_rate"`
	FileSize   int64   `json:"file_size"`
	Container  string  `json:"container"`
	HasAudio   bool    `json:"has_audio"`
}

// Config holds encoding settings for the pipeline.
type Config struct {
	FFmpegPath  string
	FFprobePath string

	// Transcode settings
	Preset       string // x264 preset: ultrafast .. veryslow
	AudioBitrate string // e.g. "128k"

	// Thumbnail settings
	ThumbnailInterval time.Duration // one frame per interval
	ThumbnailQuality  int           // ffmpeg -q:v scale, 1 (best) to 31

	// Limits. Zero means unlimited.
	MaxDuration time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		FFmpegPath:        "ffmpeg",
		FFprobePath:       "ffprobe",
		Preset:            "fast",
		AudioBitrate:      "128k",
		ThumbnailInterval: 10 * time.Second,
		ThumbnailQuality:  3,
	}
}

// Supported source content types.
var SupportedVideoTypes = []string{
	"video/mp4",
	"video/webm",
	"video/quicktime",
	"video/x-msvideo",
	"video/x-matroska",
	"video/mpeg",
	"video/ogg",
	"video/3gpp",
	"video/3gpp2",
}

func IsVideoType(contentType string) bool {
	for _, t := range SupportedVideoTypes {
		if t == contentType {
			return true
		}
	}
	return false
}
