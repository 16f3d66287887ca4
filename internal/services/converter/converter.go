// Package converter muxes synthesized audio into the final video container
// with cover art, tags, and a subtitle track, by invoking ffmpeg.
package converter

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"chaptercast/internal/config"
	"chaptercast/internal/logging"
	"chaptercast/internal/services"
)

// Tags carries the container metadata written into the output.
type Tags struct {
	Album       string
	Artist      string
	Title       string
	Genre       string
	Track       int
	Date        string
	Compilation bool
}

// Request describes one conversion. SubtitlePath and CoverPath are optional;
// missing inputs are skipped rather than failed.
type Request struct {
	AudioPath    string
	CoverPath    string
	SubtitlePath string
	OutputPath   string
	Tags         Tags
}

// Converter runs ffmpeg.
type Converter struct {
	binary  string
	bitrate int
	timeout time.Duration
	logger  *slog.Logger
}

// NewConverter builds a Converter from the converter config section.
func NewConverter(cfg config.Converter, logger *slog.Logger) *Converter {
	return &Converter{
		binary:  cfg.FFmpegBinary,
		bitrate: cfg.BitrateKbps,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:  logging.WithComponent(logger, "converter"),
	}
}

// Convert muxes the request's inputs into OutputPath.
func (c *Converter) Convert(ctx context.Context, req Request) error {
	if c.binary == "" {
		return services.Wrap(services.ErrConfiguration, "convert", "", "ffmpeg binary not configured", nil)
	}
	if _, err := os.Stat(req.AudioPath); err != nil {
		return services.Wrap(services.ErrNotFound, "convert", "audio input", req.AudioPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "convert", "prepare output dir", "", err)
	}

	args := []string{"-y", "-i", req.AudioPath}

	hasCover := req.CoverPath != "" && fileExists(req.CoverPath)
	if hasCover {
		args = append(args, "-i", req.CoverPath)
	}
	hasSubs := req.SubtitlePath != "" && fileExists(req.SubtitlePath)
	if hasSubs {
		args = append(args, "-i", req.SubtitlePath)
	}

	args = append(args, "-map", "0:a", "-c:a", "aac")
	if hasCover {
		args = append(args, "-map", "1:v", "-c:v", "mjpeg", "-disposition:v:0", "attached_pic")
	}
	if hasSubs {
		subIndex := 1
		if hasCover {
			subIndex = 2
		}
		args = append(args, "-map", fmt.Sprintf("%d:s", subIndex), "-c:s", "mov_text")
	}
	args = append(args, "-b:a", fmt.Sprintf("%dk", c.bitrate))
	args = append(args, tagArgs(req.Tags)...)
	args = append(args, req.OutputPath)

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, c.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	c.logger.Info("conversion started",
		slog.String("input", req.AudioPath),
		slog.String("output", req.OutputPath))
	if err := cmd.Run(); err != nil {
		return services.Wrap(services.ErrExternalTool, "convert", c.binary,
			lastLine(stderr.String()), err)
	}
	return nil
}

func tagArgs(tags Tags) []string {
	kv := map[string]string{
		"album":  tags.Album,
		"artist": tags.Artist,
		"title":  tags.Title,
		"genre":  tags.Genre,
		"date":   tags.Date,
	}
	if tags.Track > 0 {
		kv["track"] = fmt.Sprintf("%d", tags.Track)
	}
	if tags.Compilation {
		kv["compilation"] = "1"
	}
	keys := make([]string, 0, len(kv))
	for k, v := range kv {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		args = append(args, "-metadata", fmt.Sprintf("%s=%s", k, kv[k]))
	}
	return args
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func lastLine(s string) string {
	end := len(s)
	for end > 0 && (s[end-1] == '\n' || s[end-1] == '\r') {
		end--
	}
	start := end
	for start > 0 && s[start-1] != '\n' {
		start--
	}
	return s[start:end]
}

// Duration probes the duration of a synthesized audio file.
func (c *Converter) Duration(path string) (time.Duration, error) {
	return AudioDuration(path)
}

// AudioDuration reads the RIFF header of a WAV file and computes its
// duration from the data chunk size and byte rate.
func AudioDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		return 0, fmt.Errorf("read riff header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return 0, fmt.Errorf("%s is not a wav file", path)
	}

	var byteRate uint32
	for {
		chunk := make([]byte, 8)
		if _, err := io.ReadFull(f, chunk); err != nil {
			return 0, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			// A PCM fmt chunk is at least 16 bytes; anything shorter
			// cannot carry the byte rate.
			if size < 16 {
				return 0, fmt.Errorf("wav fmt chunk too short (%d bytes) in %s", size, path)
			}
			fmtChunk := make([]byte, size)
			if _, err := io.ReadFull(f, fmtChunk); err != nil {
				return 0, fmt.Errorf("read fmt chunk: %w", err)
			}
			byteRate = binary.LittleEndian.Uint32(fmtChunk[8:12])
		case "data":
			if byteRate == 0 {
				return 0, fmt.Errorf("wav data chunk before fmt chunk in %s", path)
			}
			seconds := float64(size) / float64(byteRate)
			return time.Duration(seconds * float64(time.Second)), nil
		default:
			if _, err := f.Seek(int64(size), io.SeekCurrent); err != nil {
				return 0, fmt.Errorf("skip %s chunk: %w", id, err)
			}
		}
	}
}
