package converter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WriteSubtitles composes an SRT file from chapter text: one cue per
// sentence, spaced evenly over the audio duration. Returns false when the
// text yields no sentences, in which case no file is written.
func WriteSubtitles(text string, audioDuration time.Duration, path string) (bool, error) {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return false, nil
	}

	per := audioDuration / time.Duration(len(sentences))
	var b strings.Builder
	for i, sentence := range sentences {
		start := time.Duration(i) * per
		end := time.Duration(i+1) * per
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, srtTimestamp(start), srtTimestamp(end), sentence)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

func splitSentences(text string) []string {
	var sentences []string
	for _, part := range strings.Split(text, ".") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}

func srtTimestamp(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d,%03d",
		ms/3_600_000, ms/60_000%60, ms/1_000%60, ms%1_000)
}
