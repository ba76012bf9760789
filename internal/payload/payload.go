// Package payload moves large base64 strings out of generated request bodies
// into side files that are loaded into global state at run time.
package payload

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
)

// DefaultMinLen is the shortest string treated as an embedded payload.
const DefaultMinLen = 1000

const hashLen = 12

// IsBase64 reports whether s looks like a standard base64 payload of at least
// minLen characters. minLen <= 0 uses DefaultMinLen.
func IsBase64(s string, minLen int) bool {
	if minLen <= 0 {
		minLen = DefaultMinLen
	}
	if len(s) < minLen || len(s)%4 != 0 {
		return false
	}
	pad := 0
	for i := len(s) - 1; i >= 0 && s[i] == '='; i-- {
		pad++
	}
	if pad > 2 {
		return false
	}
	for i := 0; i < len(s)-pad; i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '+', c == '/':
		default:
			return false
		}
	}
	return true
}

type Ref struct {
	Hash string
	File string
	Expr string
}

type File struct {
	Name    string
	Hash    string
	Size    int
	Content string
}

// Store deduplicates payloads by content hash. It is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	byHash map[string]int
	files  []File
}

func NewStore() *Store {
	return &Store{byHash: make(map[string]int)}
}

// Hoist registers value on first sight and returns the expression that reads
// it back; later sights of the same content reuse the first file.
func (s *Store) Hoist(value string) Ref {
	sum := sha256.Sum256([]byte(value))
	hash := hex.EncodeToString(sum[:])[:hashLen]
	ref := Ref{
		Hash: hash,
		File: "payload_" + hash + ".js",
		Expr: "load.global.payload_" + hash,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byHash == nil {
		s.byHash = make(map[string]int)
	}
	if _, ok := s.byHash[hash]; ok {
		return ref
	}
	s.byHash[hash] = len(s.files)
	s.files = append(s.files, File{
		Name:    ref.File,
		Hash:    hash,
		Size:    len(value),
		Content: ref.Expr + " = " + strconv.Quote(value) + ";\n",
	})
	return ref
}

// Files returns one entry per distinct payload in first-sight order.
func (s *Store) Files() []File {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]File, len(s.files))
	copy(out, s.files)
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}
