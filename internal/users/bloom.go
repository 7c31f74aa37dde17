// ABOUTME: Bloom filter over registered usernames for fast availability checks
// ABOUTME: Answers "definitely free" or "probably taken" without a store round trip

package users

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	// filterCapacity is the minimum sizing estimate for the filter
	filterCapacity = 10000

	// filterFalsePositiveRate trades memory for accuracy, matching the
	// store-backed exactness guarantee at signup
	filterFalsePositiveRate = 0.01
)

// UsernameFilter is a concurrency-safe bloom filter of taken usernames.
type UsernameFilter struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewUsernameFilter builds a filter pre-populated with the given usernames.
func NewUsernameFilter(usernames []string) *UsernameFilter {
	capacity := uint(filterCapacity)
	if n := uint(2 * len(usernames)); n > capacity {
		capacity = n
	}

	filter := bloom.NewWithEstimates(capacity, filterFalsePositiveRate)
	for _, username := range usernames {
		filter.AddString(username)
	}
	return &UsernameFilter{filter: filter}
}

// Add records a username as taken.
func (f *UsernameFilter) Add(username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.AddString(username)
}

// MaybeTaken reports whether the username might be taken. False means
// definitely free; true may be a false positive.
func (f *UsernameFilter) MaybeTaken(username string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.TestString(username)
}
