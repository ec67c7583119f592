package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NeleBiH/LIno-Sleep-tracker/internal/audio"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/segment"
)

// ClipInfo describes a stored clip file.
type ClipInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Duration float64   `json:"duration_s"`
	Created  time.Time `json:"created"`
}

// Writer stores finished clips in a directory as WAV files. It
// implements the clip sink consumed by the engine.
type Writer struct {
	dir    string
	logger *slog.Logger

	mu           sync.Mutex
	clipsWritten uint64
	bytesWritten uint64
}

// NewWriter creates the output directory if needed and returns a clip
// writer rooted there.
func NewWriter(dir string, logger *slog.Logger) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Writer{dir: dir, logger: logger}, nil
}

// WriteClip encodes the clip and writes it to a new file.
func (w *Writer) WriteClip(clip *segment.Clip) error {
	data, err := audio.EncodeWAV(clip.Samples, clip.SampleRate)
	if err != nil {
		return fmt.Errorf("failed to encode clip: %w", err)
	}

	name := fmt.Sprintf("%s_%s.wav",
		clip.StartedAt.Format("20060102_150405"),
		uuid.New().String()[:8],
	)
	path := filepath.Join(w.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write clip file: %w", err)
	}

	w.mu.Lock()
	w.clipsWritten++
	w.bytesWritten += uint64(len(data))
	w.mu.Unlock()

	w.logger.Info("Clip written",
		slog.String("file", name),
		slog.Float64("duration", clip.Duration.Seconds()),
		slog.Int("bytes", len(data)),
		slog.Bool("forced", clip.Forced),
	)
	return nil
}

// ListClips returns the stored clips sorted newest first. Duration is
// read from each file's header without loading the sample data.
func (w *Writer) ListClips() ([]ClipInfo, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	clips := make([]ClipInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".wav") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		duration, err := w.clipDuration(entry.Name())
		if err != nil {
			w.logger.Warn("Skipping unreadable clip",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		clips = append(clips, ClipInfo{
			Name:     entry.Name(),
			Size:     info.Size(),
			Duration: duration,
			Created:  info.ModTime(),
		})
	}

	sort.Slice(clips, func(i, j int) bool {
		return clips[i].Created.After(clips[j].Created)
	})
	return clips, nil
}

// DeleteClip removes a stored clip by file name. Path separators are
// rejected so callers cannot escape the output directory.
func (w *Writer) DeleteClip(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid clip name %q", name)
	}
	if !strings.HasSuffix(name, ".wav") {
		return fmt.Errorf("invalid clip name %q", name)
	}
	path := filepath.Join(w.dir, name)
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete clip: %w", err)
	}
	w.logger.Info("Clip deleted", slog.String("file", name))
	return nil
}

// Stats returns the number of clips and bytes written by this writer.
func (w *Writer) Stats() (clips, bytes uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.clipsWritten, w.bytesWritten
}

// Dir returns the output directory path.
func (w *Writer) Dir() string {
	return w.dir
}

func (w *Writer) clipDuration(name string) (float64, error) {
	f, err := os.Open(filepath.Join(w.dir, name))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	header := make([]byte, 44)
	if _, err := io.ReadFull(f, header); err != nil {
		return 0, err
	}
	return audio.WAVDuration(header)
}
