package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/mnazzaro/voice-client/internal/audio"
	"github.com/mnazzaro/voice-client/internal/segment"
)

// Filename layout: 20060102_150405_to_150405.wav[.gz]
const (
	startStamp = "20060102_150405"
	endStamp   = "150405"
)

// FileSink writes segments to WAV files in a single output directory.
type FileSink struct {
	dir        string
	sampleRate int
	gzipped    bool
	logger     *slog.Logger
}

// Recording describes one stored file for the monitoring API.
type Recording struct {
	Name  string `json:"name"`
	Bytes int64  `json:"bytes"`
}

// NewFileSink creates the output directory if needed and returns a sink.
func NewFileSink(dir string, sampleRate int, gzipped bool, logger *slog.Logger) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	return &FileSink{
		dir:        dir,
		sampleRate: sampleRate,
		gzipped:    gzipped,
		logger:     logger,
	}, nil
}

// Persist implements segment.Sink. The segment's frames are concatenated in
// order, encoded as mono 16-bit WAV and written atomically via a temp file
// rename.
func (fs *FileSink) Persist(seg *segment.Segment) error {
	if seg == nil || len(seg.Frames) == 0 {
		return fmt.Errorf("no recording data to save")
	}

	pcm := make([]byte, 0, seg.Bytes())
	for _, f := range seg.Frames {
		pcm = append(pcm, f...)
	}

	wav, err := audio.EncodeWAV(pcm, fs.sampleRate)
	if err != nil {
		return fmt.Errorf("failed to encode segment %s: %w", seg.ID, err)
	}

	name := fmt.Sprintf("%s_to_%s.wav",
		seg.StartTime.Format(startStamp),
		seg.EndTime.Format(endStamp),
	)
	if fs.gzipped {
		name += ".gz"
	}
	path := filepath.Join(fs.dir, name)

	if err := fs.writeFile(path, wav); err != nil {
		return err
	}

	fs.logger.Info("Recording saved",
		slog.String("file", path),
		slog.Int("wav_bytes", len(wav)),
	)

	return nil
}

func (fs *FileSink) writeFile(path string, wav []byte) error {
	tmp, err := os.CreateTemp(fs.dir, ".voice-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	writeErr := func() error {
		defer tmp.Close()

		if fs.gzipped {
			gz := gzip.NewWriter(tmp)
			if _, err := gz.Write(wav); err != nil {
				return fmt.Errorf("failed to write compressed audio: %w", err)
			}
			if err := gz.Close(); err != nil {
				return fmt.Errorf("failed to finish compressed audio: %w", err)
			}
			return nil
		}

		if _, err := tmp.Write(wav); err != nil {
			return fmt.Errorf("failed to write audio: %w", err)
		}
		return nil
	}()

	if writeErr != nil {
		os.Remove(tmpPath)
		return writeErr
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}

	return nil
}

// List returns the stored recordings sorted by name (chronological, given
// the timestamp naming).
func (fs *FileSink) List() ([]Recording, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	recordings := make([]Recording, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		recordings = append(recordings, Recording{
			Name:  e.Name(),
			Bytes: info.Size(),
		})
	}

	sort.Slice(recordings, func(i, j int) bool {
		return recordings[i].Name < recordings[j].Name
	})

	return recordings, nil
}

// Dir returns the output directory path.
func (fs *FileSink) Dir() string {
	return fs.dir
}
