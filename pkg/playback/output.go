package playback

import (
	"sync"
	"time"
)

// Sample identifies a decoded sample held by an Output.
type Sample int

// Voice identifies one playing (or pending) instance of a sample.
type Voice int

// PlayOptions controls when and where a sample starts.
// Delay postpones the start; Seek starts the sample already advanced by that amount.
type PlayOptions struct {
	Delay time.Duration
	Seek  time.Duration
}

// Output is the host audio capability the scheduler drives.
type Output interface {
	// Load decodes data and registers it under key. Loading the same key
	// again returns the sample registered first.
	Load(key string, data []byte) (Sample, error)
	// Play starts a sample and returns a handle that Stop accepts.
	Play(s Sample, opts PlayOptions) (Voice, error)
	// Stop cancels a pending start or silences a playing voice.
	Stop(v Voice)
}

// Bank maps chip numbers (the base-36 value of an event id) to loaded samples.
type Bank struct {
	samples map[int]Sample
	mu      sync.RWMutex
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{samples: make(map[int]Sample)}
}

// Bind registers the sample for a chip, replacing any earlier binding.
func (b *Bank) Bind(chip int, s Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples[chip] = s
}

// Lookup returns the sample bound to chip.
func (b *Bank) Lookup(chip int) (Sample, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.samples[chip]
	return s, ok
}

// Len returns the number of bound chips.
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// Reset drops every binding.
func (b *Bank) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = make(map[int]Sample)
}
