// Package id generates the daemon's identifiers. Every generated ID is
// a ULID carrying a short type prefix ("sess_01J..."), so logs stay
// readable and listings sort by creation time without extra bookkeeping.
//
// Registered applications may also carry caller-chosen IDs; those bypass
// this package entirely and are plain strings.
package id

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Prefixes identify what kind of object an ID names.
const (
	AppPrefix      = "app"
	SessionPrefix  = "sess"
	SnapshotPrefix = "snap"
	RequestPrefix  = "req"
)

// Typed wrappers keep the ID kinds from being mixed up in signatures.
type (
	AppID      string
	SessionID  string
	SnapshotID string
	RequestID  string
)

func (id AppID) String() string      { return string(id) }
func (id SessionID) String() string  { return string(id) }
func (id SnapshotID) String() string { return string(id) }
func (id RequestID) String() string  { return string(id) }

// Generator produces ULIDs from a guarded entropy source.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewGenerator builds a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

var (
	defaultGen  *Generator
	defaultOnce sync.Once
)

// Default returns the shared generator.
func Default() *Generator {
	defaultOnce.Do(func() { defaultGen = NewGenerator() })
	return defaultGen
}

// Generate returns a fresh ULID.
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString returns a fresh ULID in its 26-character text form.
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix returns "<prefix>_<ulid>".
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return prefix + "_" + g.GenerateString()
}

// NewAppID mints an ID for a registered application.
func NewAppID() AppID {
	return AppID(Default().GenerateWithPrefix(AppPrefix))
}

// NewSessionID mints an ID for a playback session.
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

// NewSnapshotID mints an ID for a progress snapshot.
func NewSnapshotID() SnapshotID {
	return SnapshotID(Default().GenerateWithPrefix(SnapshotPrefix))
}

// NewRequestID mints an ID for one API request.
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// Parse returns the ULID inside an ID, stripping a type prefix when one
// is present. Malformed encodings are rejected, not decoded best-effort.
func Parse(id string) (ulid.ULID, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	return ulid.ParseStrict(id)
}

// IsValid reports whether id holds a well-formed ULID, prefixed or not.
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// Timestamp recovers the creation time embedded in an ID.
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
