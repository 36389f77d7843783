package item

import (
	"strconv"
	"sync"
)

// Factory hands out items with identifiers of the form "<alias>_<seq>".
// Each class receives an alias number in order of first use, and a sequence
// counter starting at 1, so identifiers are stable for a given input order.
type Factory struct {
	mu      sync.Mutex
	aliases map[string]int
	counts  map[string]int
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{
		aliases: make(map[string]int),
		counts:  make(map[string]int),
	}
}

// Make creates a new item of the given class with a fresh identifier.
func (f *Factory) Make(className string) *Item {
	f.mu.Lock()
	alias, ok := f.aliases[className]
	if !ok {
		alias = len(f.aliases)
		f.aliases[className] = alias
	}
	f.counts[className]++
	seq := f.counts[className]
	f.mu.Unlock()

	id := strconv.Itoa(alias) + "_" + strconv.Itoa(seq)
	return New(id, className)
}

// Count reports how many items of the class this factory has made.
func (f *Factory) Count(className string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[className]
}
