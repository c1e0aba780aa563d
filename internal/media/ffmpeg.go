package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// FrameFilePattern is the ffmpeg output pattern for extracted frames.
// Frame numbering starts at 1.
const FrameFilePattern = "frame_%06d.jpg"

// ExtractAudio decodes a file's audio track to 16 kHz mono WAV, the
// format the transcription models expect.
func ExtractAudio(ctx context.Context, srcPath, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating audio directory: %w", err)
	}
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", srcPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		destPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("extracting audio: %w: %s", err, tail(out))
	}
	return nil
}

// ExtractFrames samples a video at one frame per interval into destDir
// using FrameFilePattern, and returns the extracted file paths in frame
// order.
func ExtractFrames(ctx context.Context, srcPath, destDir string, intervalSeconds float64) ([]string, error) {
	if intervalSeconds <= 0 {
		return nil, fmt.Errorf("frame interval must be positive, got %v", intervalSeconds)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating frames directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", srcPath,
		"-vf", fmt.Sprintf("fps=1/%g", intervalSeconds),
		"-q:v", "2",
		filepath.Join(destDir, FrameFilePattern))
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("extracting frames: %w: %s", err, tail(out))
	}
	return ListFrameFiles(destDir)
}

// ListFrameFiles returns the frame files already present in a directory
// in frame order. The pipeline uses this to resume without re-running
// ffmpeg.
func ListFrameFiles(destDir string) ([]string, error) {
	// frame_??????.jpg keeps the sibling *_grid.jpg thumbnails out of
	// the frame list.
	matches, err := filepath.Glob(filepath.Join(destDir, "frame_??????.jpg"))
	if err != nil {
		return nil, fmt.Errorf("listing frames: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// CutSegment copies one time range of a media file into destPath
// without re-encoding.
func CutSegment(ctx context.Context, srcPath, destPath string, startSeconds, durationSeconds float64) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating segment directory: %w", err)
	}
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-ss", strconv.FormatFloat(startSeconds, 'f', 3, 64),
		"-i", srcPath,
		"-t", strconv.FormatFloat(durationSeconds, 'f', 3, 64),
		"-c", "copy",
		destPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("cutting segment: %w: %s", err, tail(out))
	}
	return nil
}

// SpeechChunk is one non-silent region of an audio file, in seconds.
type SpeechChunk struct {
	Start float64
	End   float64
}

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*([\d.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*([\d.]+)`)
)

// DetectSpeech runs ffmpeg's silencedetect filter and inverts the
// silences into speech chunks. minSilence is the shortest gap treated
// as silence; threshold is in dB (e.g. -35).
func DetectSpeech(ctx context.Context, audioPath string, totalSeconds, minSilence float64, thresholdDB int) ([]SpeechChunk, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", audioPath,
		"-af", fmt.Sprintf("silencedetect=noise=%ddB:d=%g", thresholdDB, minSilence),
		"-f", "null",
		"-")
	// silencedetect logs to stderr; exit status is 0 either way.
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("detecting silence: %w: %s", err, tail(out))
	}
	return ParseSilences(string(out), totalSeconds), nil
}

// ParseSilences inverts silencedetect log output into speech chunks
// covering [0, totalSeconds].
func ParseSilences(log string, totalSeconds float64) []SpeechChunk {
	type silence struct{ start, end float64 }
	var silences []silence
	var pending *silence

	for _, line := range strings.Split(log, "\n") {
		if m := silenceStartRe.FindStringSubmatch(line); m != nil {
			start, err := strconv.ParseFloat(m[1], 64)
			if err == nil {
				pending = &silence{start: start, end: totalSeconds}
			}
			continue
		}
		if m := silenceEndRe.FindStringSubmatch(line); m != nil && pending != nil {
			if end, err := strconv.ParseFloat(m[1], 64); err == nil {
				pending.end = end
			}
			silences = append(silences, *pending)
			pending = nil
		}
	}
	if pending != nil {
		silences = append(silences, *pending)
	}

	var chunks []SpeechChunk
	cursor := 0.0
	for _, s := range silences {
		if s.start > cursor {
			chunks = append(chunks, SpeechChunk{Start: cursor, End: s.start})
		}
		if s.end > cursor {
			cursor = s.end
		}
	}
	if cursor < totalSeconds {
		chunks = append(chunks, SpeechChunk{Start: cursor, End: totalSeconds})
	}
	return chunks
}

// SplitLongChunks caps chunk duration at maxSeconds, splitting longer
// chunks evenly, and drops chunks shorter than minSeconds.
func SplitLongChunks(chunks []SpeechChunk, minSeconds, maxSeconds float64) []SpeechChunk {
	var out []SpeechChunk
	for _, c := range chunks {
		length := c.End - c.Start
		if length < minSeconds {
			continue
		}
		if length <= maxSeconds {
			out = append(out, c)
			continue
		}
		parts := int(length/maxSeconds) + 1
		step := length / float64(parts)
		for i := 0; i < parts; i++ {
			out = append(out, SpeechChunk{
				Start: c.Start + float64(i)*step,
				End:   c.Start + float64(i+1)*step,
			})
		}
	}
	return out
}

// HasBinary reports whether a tool (ffmpeg, ffprobe) is on PATH.
func HasBinary(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// tail trims command output to its last line for error messages.
func tail(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
