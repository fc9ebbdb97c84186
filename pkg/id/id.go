// Package id generates time-sortable record identifiers.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Record kinds used as id prefixes.
const (
	KindTransaction  = "txn"
	KindPending      = "pnd"
	KindNotification = "ntf"
)

var (
	mu      sync.Mutex
	entropy io.Reader
	now     = time.Now
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	// Monotonic keeps ids minted within one millisecond increasing.
	entropy = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a ULID string prefixed with kind, e.g. "txn_01J...".
// An empty kind returns the bare ULID.
func New(kind string) string {
	mu.Lock()
	defer mu.Unlock()

	v, err := ulid.New(ulid.Timestamp(now().UTC()), entropy)
	if err != nil {
		panic(err)
	}
	if kind == "" {
		return v.String()
	}
	return kind + "_" + v.String()
}

// Kind returns the prefix of an id produced by New, or "" when there is none.
func Kind(s string) string {
	i := strings.IndexByte(s, '_')
	if i <= 0 {
		return ""
	}
	return s[:i]
}

// Time extracts the creation time encoded in an id produced by New.
func Time(s string) (time.Time, error) {
	if i := strings.IndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	v, err := ulid.Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(v.Time()), nil
}
