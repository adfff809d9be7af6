package dispatch

import (
	"sort"
	"sync"
)

// Flags records what happened to one item. Only set flags are stored.
type Flags map[string]bool

// Set marks each name.
func (f Flags) Set(names ...string) {
	for _, n := range names {
		f[n] = true
	}
}

// Has reports whether name is set.
func (f Flags) Has(name string) bool {
	return f[name]
}

// Names lists the set flags in order.
func (f Flags) Names() []string {
	out := make([]string, 0, len(f))
	for n, set := range f {
		if set {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Result is the outcome of one item.
type Result struct {
	Name  string
	Flags Flags
}

// Results collects outcomes from concurrent workers.
type Results struct {
	mu    sync.Mutex
	items []Result
}

// Add appends an outcome.
func (r *Results) Add(name string, flags Flags) {
	if flags == nil {
		flags = Flags{}
	}
	r.mu.Lock()
	r.items = append(r.items, Result{Name: name, Flags: flags})
	r.mu.Unlock()
}

// All returns the outcomes sorted by name.
func (r *Results) All() []Result {
	r.mu.Lock()
	out := make([]Result, len(r.items))
	copy(out, r.items)
	r.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len is the number of outcomes.
func (r *Results) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// With lists the names of the items with flag set.
func (r *Results) With(flag string) []string {
	var out []string
	for _, res := range r.All() {
		if res.Flags.Has(flag) {
			out = append(out, res.Name)
		}
	}
	return out
}
