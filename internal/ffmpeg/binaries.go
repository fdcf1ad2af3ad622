package ffmpeg

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
)

const (
	ffmpegEnv  = "SUBCONV_FFMPEG_PATH"
	ffprobeEnv = "SUBCONV_FFPROBE_PATH"
)

type BinaryPaths struct {
	FFmpeg  string
	FFprobe string
}

var (
	ensureOnce sync.Once
	ensureErr  error
	ensurePath BinaryPaths
)

// Ensure locates ffmpeg and ffprobe once per process: the SUBCONV_*_PATH
// variables win, otherwise both must be on PATH.
func Ensure() (BinaryPaths, error) {
	ensureOnce.Do(func() {
		ensurePath, ensureErr = locate(os.Getenv, exec.LookPath)
	})
	return ensurePath, ensureErr
}

func FFmpegPath() (string, error) {
	paths, err := Ensure()
	if err != nil {
		return "", err
	}
	return paths.FFmpeg, nil
}

func FFprobePath() (string, error) {
	paths, err := Ensure()
	if err != nil {
		return "", err
	}
	return paths.FFprobe, nil
}

func locate(getenv func(string) string, lookPath func(string) (string, error)) (BinaryPaths, error) {
	ffmpegPath, err := find("ffmpeg", getenv(ffmpegEnv), ffmpegEnv, lookPath)
	if err != nil {
		return BinaryPaths{}, err
	}
	ffprobePath, err := find("ffprobe", getenv(ffprobeEnv), ffprobeEnv, lookPath)
	if err != nil {
		return BinaryPaths{}, err
	}
	return BinaryPaths{FFmpeg: ffmpegPath, FFprobe: ffprobePath}, nil
}

func find(name, override, env string, lookPath func(string) (string, error)) (string, error) {
	if override != "" {
		if !fileExists(override) {
			return "", fmt.Errorf("%s=%s: file not found", env, override)
		}
		return override, nil
	}
	found, err := lookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found on PATH (set %s): %w", name, env, err)
	}
	return found, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
