package speech

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// FileSink writes every utterance into dir as a numbered file.
type FileSink struct {
	dir    string
	seq    atomic.Uint64
	logger *zap.Logger
}

func NewFileSink(dir string, logger *zap.Logger) (*FileSink, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("speech output directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create speech output directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSink{dir: dir, logger: logger}, nil
}

func (f *FileSink) Play(ctx context.Context, audio *Audio) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if audio == nil || len(audio.Data) == 0 {
		return fmt.Errorf("empty audio")
	}

	ext := strings.TrimSpace(audio.Format)
	if ext == "" {
		ext = "bin"
	}
	name := fmt.Sprintf("utterance-%04d.%s", f.seq.Add(1), ext)
	path := filepath.Join(f.dir, name)

	if err := os.WriteFile(path, audio.Data, 0o644); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	f.logger.Info("audio written", zap.String("path", path))
	return nil
}
