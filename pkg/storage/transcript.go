package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Transcript is an append-only plain-text log of one conversation,
// one file per peer pair. Appends are serialized so concurrent
// callbacks from a session never interleave lines.
type Transcript struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// TranscriptName builds the per-pair file name. The pair is ordered
// so both sides log into the same name.
func TranscriptName(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("chat_%s_%s.txt", userA, userB)
}

// OpenTranscript opens (creating if needed) the transcript for a peer
// pair under dir.
func OpenTranscript(dir, userA, userB string) (*Transcript, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transcript dir: %v", err)
	}

	path := filepath.Join(dir, TranscriptName(userA, userB))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %v", err)
	}

	return &Transcript{file: file, path: path}, nil
}

// Path returns the transcript file location.
func (t *Transcript) Path() string {
	return t.path
}

// Append writes one timestamped chat line.
func (t *Transcript) Append(sender, body string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	line := fmt.Sprintf("%s | %s: %s\n", time.Now().Format("2006-01-02 15:04:05"), sender, body)
	_, err := t.file.WriteString(line)
	return err
}

// AppendEvent writes one timestamped non-message event, such as a
// file transfer or a retraction.
func (t *Transcript) AppendEvent(event string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	line := fmt.Sprintf("%s | * %s\n", time.Now().Format("2006-01-02 15:04:05"), event)
	_, err := t.file.WriteString(line)
	return err
}

// Close flushes and closes the transcript.
func (t *Transcript) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Close()
}
