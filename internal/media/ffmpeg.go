package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/reelworks/reelworks/internal/logger"
)

// FFmpegProcessor implements Processor by shelling out to ffmpeg and ffprobe.
type FFmpegProcessor struct {
	config *Config
}

var _ Processor = (*FFmpegProcessor)(nil)

func NewFFmpegProcessor(cfg *Config) (*FFmpegProcessor, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if _, err := exec.LookPath(cfg.FFmpegPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFFmpegNotFound, err)
	}

	if _, err := exec.LookPath(cfg.FFprobePath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFFprobeNotFound, err)
	}

	return &FFmpegProcessor{config: cfg}, nil
}

// TranscodeMP4 converts the input to H.264 video and AAC audio in an MP4
// container with the moov atom up front for web streaming.
func (p *FFmpegProcessor) TranscodeMP4(ctx context.Context, inputPath, outputPath string) error {
	log := logger.FromContext(ctx)
	start := time.Now()

	metadata, err := p.Probe(ctx, inputPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMedia, err)
	}

	if p.config.MaxDuration > 0 && metadata.Duration > p.config.MaxDuration.Seconds() {
		return fmt.Errorf("%w: video is %.0fs, max is %.0fs", ErrMediaTooLong, metadata.Duration, p.config.MaxDuration.Seconds())
	}

	args := p.buildTranscodeArgs(metadata, inputPath, outputPath)

	log.Debug("transcoding video", "input", inputPath, "output", outputPath, "preset", p.config.Preset)
	cmd := exec.CommandContext(ctx, p.config.FFmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: ffmpeg failed: %v, output: %s", ErrTranscodeFailed, err, string(output))
	}

	log.Debug("transcode completed", "input", inputPath, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// GenerateThumbnails writes one JPEG frame per configured interval as
// thumb_001.jpg, thumb_002.jpg, ... and returns the paths in frame order.
func (p *FFmpegProcessor) GenerateThumbnails(ctx context.Context, inputPath, outputDir string) ([]string, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	args := p.buildThumbnailArgs(inputPath, outputDir)

	log.Debug("generating thumbnails", "input", inputPath, "interval", p.config.ThumbnailInterval)
	cmd := exec.CommandContext(ctx, p.config.FFmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg failed: %v, output: %s", ErrThumbnailFailed, err, string(output))
	}

	thumbnails, err := filepath.Glob(filepath.Join(outputDir, "thumb_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("%w: glob failed: %v", ErrThumbnailFailed, err)
	}
	sort.Strings(thumbnails)

	log.Debug("thumbnails generated", "count", len(thumbnails), "duration_ms", time.Since(start).Milliseconds())
	return thumbnails, nil
}

func (p *FFmpegProcessor) buildTranscodeArgs(metadata *Metadata, inputPath, outputPath string) []string {
	args := []string{
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", p.config.Preset,
	}

	if metadata.HasAudio {
		args = append(args, "-c:a", "aac", "-b:a", p.config.AudioBitrate)
	} else {
		args = append(args, "-an")
	}

	args = append(args,
		"-movflags", "+faststart",
		"-y",
		outputPath,
	)

	return args
}

func (p *FFmpegProcessor) buildThumbnailArgs(inputPath, outputDir string) []string {
	interval := p.config.ThumbnailInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	return []string{
		"-i", inputPath,
		"-vf", fmt.Sprintf("fps=1/%d", int(interval.Seconds())),
		"-q:v", strconv.Itoa(p.config.ThumbnailQuality),
		"-y",
		filepath.Join(outputDir, "thumb_%03d.jpg"),
	}
}

// ffprobeOutput represents the JSON output from ffprobe.
type ffprobeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		BitRate    string `json:"bit_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
		BitRate  string `json:"bit_rate"`
		Name     string `json:"format_name"`
	} `json:"format"`
}

func (p *FFmpegProcessor) Probe(ctx context.Context, path string) (*Metadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, p.config.FFprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeOutput(output)
}

func parseProbeOutput(data []byte) (*Metadata, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	metadata := &Metadata{}

	if probe.Format.Duration != "" {
		if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			metadata.Duration = d
		}
	}

	if probe.Format.Size != "" {
		if s, err := strconv.ParseInt(probe.Format.Size, 10, 64); err == nil {
			metadata.FileSize = s
		}
	}

	if probe.Format.BitRate != "" {
		if b, err := strconv.ParseInt(probe.Format.BitRate, 10, 64); err == nil {
			metadata.Bitrate = b
		}
	}

	metadata.Container = strings.Split(probe.Format.Name, ",")[0]

	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			metadata.VideoCodec = stream.CodecName
			metadata.Width = stream.Width
			metadata.Height = stream.Height
			if stream.RFrameRate != "" {
				// Frame rates come as fractions, e.g. "30/1" or "30000/1001"
				parts := strings.Split(stream.RFrameRate, "/")
				if len(parts) == 2 {
					num, _ := strconv.ParseFloat(parts[0], 64)
					den, _ := strconv.ParseFloat(parts[1], 64)
					if den > 0 {
						metadata.FrameRate = num / den
					}
				}
			}
		case "audio":
			metadata.AudioCodec = stream.CodecName
			metadata.HasAudio = true
		}
	}

	return metadata, nil
}
