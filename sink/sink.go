// Package sink persists timestamped snapshots of task results.
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ecociel/beacon/domain"
	"github.com/ecociel/beacon/flatten"
)

// Sink appends one flattened snapshot. Sinks are independent side effects:
// a failing sink never suppresses the broker publish or other sinks.
type Sink interface {
	Record(ctx context.Context, topic string, fields []domain.Field) error
}

// JSONL appends records to <dir>/<topic>.jsonl, one JSON object per line.
// Topics contain "/" so each task gets its own file in a per-prefix
// directory tree; missing directories are created on first write. Each task
// owns its file exclusively, there is no cross-task locking.
type JSONL struct {
	dir string
	now func() time.Time
}

func NewJSONL(dir string) *JSONL {
	return &JSONL{dir: dir, now: time.Now}
}

func (s *JSONL) Record(ctx context.Context, topic string, fields []domain.Field) error {
	stamped := make([]domain.Field, 0, len(fields)+1)
	stamped = append(stamped, domain.Field{Key: "_time", Value: domain.Str(s.now().Format(time.RFC3339))})
	stamped = append(stamped, fields...)

	line, err := flatten.MarshalFields(stamped)
	if err != nil {
		return fmt.Errorf("marshal record for %s: %w", topic, err)
	}

	path := filepath.Join(s.dir, topic+".jsonl")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create record dir for %s: %w", topic, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open record file for %s: %w", topic, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append record for %s: %w", topic, err)
	}
	return nil
}
