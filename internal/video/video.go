package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/mgpai22/subconv/internal/ffmpeg"
)

// subtitle stream of a container
type SubtitleStream struct {
	Index    int // position among the subtitle streams, as in -map 0:s:N
	Codec    string
	Language string
	Title    string
}

// text based codecs ffmpeg can convert to SubRip
var textCodecs = map[string]bool{
	"subrip":   true,
	"srt":      true,
	"ass":      true,
	"ssa":      true,
	"webvtt":   true,
	"mov_text": true,
	"text":     true,
	"microdvd": true,
	"mpl2":     true,
}

func (s SubtitleStream) IsText() bool {
	return textCodecs[s.Codec]
}

// JSON output from ffprobe
type ffprobeOutput struct {
	Streams []struct {
		CodecName string            `json:"codec_name"`
		Tags      map[string]string `json:"tags"`
	} `json:"streams"`
}

// lists the subtitle streams of a video file
func SubtitleStreams(ctx context.Context, videoPath string) ([]SubtitleStream, error) {
	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("video file not found: %s", videoPath)
	}

	ffprobePath, err := ffmpegbin.FFprobePath()
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "s",
		videoPath,
	)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseStreams(out.Bytes())
}

func parseStreams(data []byte) ([]SubtitleStream, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	streams := make([]SubtitleStream, len(probe.Streams))
	for i, s := range probe.Streams {
		streams[i] = SubtitleStream{
			Index:    i,
			Codec:    s.CodecName,
			Language: s.Tags["language"],
			Title:    s.Tags["title"],
		}
	}
	return streams, nil
}

// extractArgs builds the ffmpeg arguments that write subtitle stream n of
// videoPath to stdout as SubRip.
func extractArgs(videoPath string, n int) []string {
	return ffmpeg.Input(videoPath).
		Output("pipe:", ffmpeg.KwArgs{
			"map": fmt.Sprintf("0:s:%d", n),
			"f":   "srt",
		}).
		GetArgs()
}

// extracts subtitle stream n as SubRip text
func ExtractSubtitles(ctx context.Context, videoPath string, n int) (string, error) {
	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return "", fmt.Errorf("video file not found: %s", videoPath)
	}

	ffmpegPath, err := ffmpegbin.FFmpegPath()
	if err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, ffmpegPath, extractArgs(videoPath, n)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if i := strings.LastIndex(msg, "\n"); i >= 0 {
			msg = msg[i+1:]
		}
		return "", fmt.Errorf("ffmpeg extraction failed: %w: %s", err, msg)
	}

	return stdout.String(), nil
}
