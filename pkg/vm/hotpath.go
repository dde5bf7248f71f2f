package vm

// Hot-path instruction cache.
//
// Every dispatch increments a per-address execution count. Each time the
// program counter crosses a multiple of the maintenance interval, addresses
// whose count exceeds the hot threshold get their instruction inserted into
// the cache, and subsequent fetches at those addresses use the cached entry
// directly. Programs are immutable once loaded, so a cached entry cannot go
// stale within a run; the cache is an optimization only and never changes
// program semantics.

// HotThreshold is the execution count above which an address is considered
// hot and its instruction is cached.
const HotThreshold = 1000

// MaintenanceInterval controls how often (in pc terms) the engine scans
// execution counts and promotes hot addresses into the cache.
const MaintenanceInterval = 1000

// hotPathCache holds per-address execution counts and cached instructions.
// Addresses range over [0, len(program)), so flat arrays indexed by pc are
// used instead of maps.
type hotPathCache struct {
	counts    []uint64
	cached    []*Instruction
	threshold uint64

	hits   uint64
	misses uint64
}

// newHotPathCache sizes the cache arena for a program of the given length.
// A zero threshold selects the default.
func newHotPathCache(programLen int, threshold uint64) *hotPathCache {
	if threshold == 0 {
		threshold = HotThreshold
	}
	return &hotPathCache{
		counts:    make([]uint64, programLen),
		cached:    make([]*Instruction, programLen),
		threshold: threshold,
	}
}

// record counts one dispatch at pc.
func (h *hotPathCache) record(pc int) {
	h.counts[pc]++
}

// lookup returns the cached instruction for pc, or nil on a miss.
func (h *hotPathCache) lookup(pc int) *Instruction {
	if in := h.cached[pc]; in != nil {
		h.hits++
		return in
	}
	h.misses++
	return nil
}

// maintain scans the execution counts and caches the instruction of every
// address whose count exceeds the hot threshold.
func (h *hotPathCache) maintain(program Program) {
	for pc, n := range h.counts {
		if n > h.threshold && h.cached[pc] == nil {
			in := program[pc]
			h.cached[pc] = &in
		}
	}
}

// HotPathStats holds aggregate statistics about the hot-path cache.
type HotPathStats struct {
	CachedAddresses int     // Addresses currently in the cache
	Hits            uint64  // Fetches served from the cache
	Misses          uint64  // Fetches that decoded the program directly
	HitRate         float64 // Hits as a percentage of all fetches
}

// stats summarizes the cache.
func (h *hotPathCache) stats() HotPathStats {
	var s HotPathStats
	for _, in := range h.cached {
		if in != nil {
			s.CachedAddresses++
		}
	}
	s.Hits = h.hits
	s.Misses = h.misses
	if total := h.hits + h.misses; total > 0 {
		s.HitRate = float64(h.hits) * 100 / float64(total)
	}
	return s
}

// executionCount returns the dispatch count recorded for pc, for
// introspection and tests.
func (h *hotPathCache) executionCount(pc int) uint64 {
	if pc < 0 || pc >= len(h.counts) {
		return 0
	}
	return h.counts[pc]
}
