// ABOUTME: Durable write-only summon queue with a filesystem backend
// ABOUTME: Each enqueue writes one uniquely named JSON file; consumption is out-of-process
package summon

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/opspulse/opspulse/metrics"
)

// Queue hands summon requests to out-of-process collaborators without
// blocking on a response. Implementations must not leak their storage
// details to callers; a broker-backed queue can replace the filesystem
// one behind this interface.
type Queue interface {
	// Enqueue persists the request and returns the identifier under
	// which it was stored.
	Enqueue(req *Request) (string, error)
}

// FileQueue writes one JSON document per request into a directory.
// Fire-and-forget: no read or ack path exists in-process, and a stale
// file is the collaborator's to delete or ignore.
type FileQueue struct {
	dir string

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewFileQueue creates the queue directory if missing and returns the
// queue. Creating the directory up front keeps enqueue-time failures to
// genuinely unwritable disks.
func NewFileQueue(dir string) (*FileQueue, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create queue directory: %w", err)
	}

	return &FileQueue{
		dir:     dir,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}, nil
}

// Enqueue writes the request as a uniquely named file. The name encodes
// target, context, and a monotonically increasing ULID disambiguator so
// two summons for the same collaborator and context never collide.
func (q *FileQueue) Enqueue(req *Request) (string, error) {
	q.mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(req.Timestamp), q.entropy).String()
	q.mu.Unlock()

	name := fmt.Sprintf("%s-%s-%s.json", slug(req.Target), slug(req.Context), id)
	path := filepath.Join(q.dir, name)

	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode summon request: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write summon request: %w", err)
	}
	metrics.SummonsWritten.Inc()

	return name, nil
}

// slug lowercases and strips a string down to filename-safe characters.
func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '_', r == '-', r == '/':
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "summon"
	}
	return out
}
