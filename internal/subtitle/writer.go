package subtitle

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// writes the cues to path in format f, creating parent directories
func WriteFile(path string, f Format, cues []*Cue, meta Metadata) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s file: %w", f.Name(), err)
	}
	defer func() {
		_ = file.Close()
	}()

	writer := bufio.NewWriter(file)
	if err := f.Write(writer, cues, meta); err != nil {
		return err
	}
	return writer.Flush()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0755)
}

// parseClock builds a duration from clock fields; frac counts units
func parseClock(hours, minutes, seconds, frac string, unit time.Duration) (time.Duration, error) {
	var h int
	if hours != "" {
		var err error
		if h, err = strconv.Atoi(hours); err != nil {
			return 0, fmt.Errorf("hours %q: %w", hours, err)
		}
	}
	m, err := strconv.Atoi(minutes)
	if err != nil {
		return 0, fmt.Errorf("minutes %q: %w", minutes, err)
	}
	s, err := strconv.Atoi(seconds)
	if err != nil {
		return 0, fmt.Errorf("seconds %q: %w", seconds, err)
	}
	if m > 59 || s > 59 {
		return 0, fmt.Errorf("clock %s:%s:%s out of range", hours, minutes, seconds)
	}
	f, err := strconv.Atoi(frac)
	if err != nil {
		return 0, fmt.Errorf("fraction %q: %w", frac, err)
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(f)*unit, nil
}

func formatSRTTime(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	millis := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}

func formatVTTTime(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	millis := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, seconds, millis)
}

func formatASSTime(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	centis := (int(d.Milliseconds()) % 1000) / 10

	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, seconds, centis)
}
