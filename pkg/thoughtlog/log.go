package thoughtlog

import (
	"os"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is one NDJSON line in the thought log.
type Record struct {
	MemoryType string         `json:"memoryType"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	RecordedAt time.Time      `json:"recordedAt"`
}

// Log appends thought records to a file, one JSON object per line.
// Writes are serialized; the file is opened lazily and kept open.
type Log struct {
	mu   sync.Mutex
	path string
	file *os.File
}

func New(path string) *Log {
	return &Log{path: path}
}

// Append writes one record. The timestamp is stamped here.
func (l *Log) Append(memoryType, content string, metadata map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		l.file = f
	}

	line, err := json.Marshal(&Record{
		MemoryType: memoryType,
		Content:    content,
		Metadata:   metadata,
		RecordedAt: time.Now(),
	})
	if err != nil {
		return err
	}

	_, err = l.file.Write(append(line, '\n'))
	return err
}

// Close releases the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
