package racecard

// StalenessDetector spots cached race card pages by comparing the current
// race's runner set against a bounded history of recent race-level sets.
// A genuinely fresh race shares few or no dogs with the races scraped just
// before it; a heavy overlap means the SPA served stale content.
type StalenessDetector struct {
	history   []map[string]struct{}
	size      int
	threshold float64
}

// NewStalenessDetector keeps the last size race sets and flags pages whose
// overlap ratio with any of them exceeds threshold.
func NewStalenessDetector(size int, threshold float64) *StalenessDetector {
	return &StalenessDetector{
		history:   make([]map[string]struct{}, 0, size),
		size:      size,
		threshold: threshold,
	}
}

// IsStale reports whether the runner set overlaps a recent race beyond the
// threshold. Empty input is never stale.
func (d *StalenessDetector) IsStale(dogs []string) bool {
	if len(dogs) == 0 || len(d.history) == 0 {
		return false
	}

	current := toSet(dogs)
	for _, recent := range d.history {
		overlap := 0
		for name := range current {
			if _, ok := recent[name]; ok {
				overlap++
			}
		}
		if float64(overlap)/float64(len(current)) > d.threshold {
			return true
		}
	}
	return false
}

// Record adds the race's runner set to the history, evicting the oldest
// entry once the bound is reached.
func (d *StalenessDetector) Record(dogs []string) {
	if len(dogs) == 0 {
		return
	}
	if len(d.history) >= d.size {
		d.history = d.history[1:]
	}
	d.history = append(d.history, toSet(dogs))
}

func toSet(dogs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(dogs))
	for _, name := range dogs {
		set[name] = struct{}{}
	}
	return set
}
