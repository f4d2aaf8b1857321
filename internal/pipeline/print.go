package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/couchcryptid/globe40-course-data/internal/domain"
)

// PrintLoader writes each request as one JSON line. It is the dry-run sink.
type PrintLoader struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewPrintLoader returns a PrintLoader writing to w.
func NewPrintLoader(w io.Writer) *PrintLoader {
	return &PrintLoader{enc: json.NewEncoder(w)}
}

func (l *PrintLoader) Name() string { return "stdout" }

func (l *PrintLoader) Load(_ context.Context, req domain.RetrievalRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(req); err != nil {
		return fmt.Errorf("print request: %w", err)
	}
	return nil
}
