package permission

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrDuplicateCode is returned when two transactions share a code.
	ErrDuplicateCode = errors.New("transaction code already registered")
	// ErrDuplicateURL is returned when two transactions share a normalized URL.
	ErrDuplicateURL = errors.New("transaction url already registered")
)

// Registry indexes transactions by code and normalized URL and enforces that
// both are unique.
type Registry struct {
	mu     sync.RWMutex
	byCode map[string]Transaction
	byURL  map[string]string
	frozen bool
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		byCode: make(map[string]Transaction),
		byURL:  make(map[string]string),
	}
}

// Register validates and stores t. The stored URL is normalized.
func (r *Registry) Register(t Transaction) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return Transaction{}, errors.New("registry frozen")
	}

	t.Code = strings.TrimSpace(t.Code)
	if t.Code == "" {
		return Transaction{}, errors.New("transaction code cannot be empty")
	}
	if len(t.Code) > 20 {
		return Transaction{}, fmt.Errorf("transaction code %q longer than 20 characters", t.Code)
	}
	t.URL = NormalizePath(t.URL)
	if t.URL == "" {
		return Transaction{}, fmt.Errorf("transaction %q has no url", t.Code)
	}

	if _, exists := r.byCode[t.Code]; exists {
		return Transaction{}, fmt.Errorf("%w: %s", ErrDuplicateCode, t.Code)
	}
	if owner, exists := r.byURL[t.URL]; exists {
		return Transaction{}, fmt.Errorf("%w: %s (already %s)", ErrDuplicateURL, t.URL, owner)
	}

	r.byCode[t.Code] = t
	r.byURL[t.URL] = t.Code

	return t, nil
}

// ByURL returns the transaction registered for path.
func (r *Registry) ByURL(path string) (Transaction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.byURL[NormalizePath(path)]
	if !ok {
		return Transaction{}, false
	}
	return r.byCode[code], true
}

// ByCode returns the transaction registered under code.
func (r *Registry) ByCode(code string) (Transaction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byCode[code]
	return t, ok
}

// All returns every registered transaction ordered by Order, then Code.
func (r *Registry) All() []Transaction {
	r.mu.RLock()
	out := make([]Transaction, 0, len(r.byCode))
	for _, t := range r.byCode {
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered transactions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCode)
}
