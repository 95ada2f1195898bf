package racecard

import "testing"

func TestStalenessFreshRaceNotFlagged(t *testing.T) {
	d := NewStalenessDetector(6, 0.5)
	d.Record([]string{"Swift Hostage", "Droopys Clue", "Savana Beau"})

	fresh := []string{"Ballymac Best", "Kilara Lion", "Coolavanny Aunty"}
	if d.IsStale(fresh) {
		t.Error("disjoint runner set must not be stale")
	}
}

func TestStalenessIdenticalRaceFlagged(t *testing.T) {
	d := NewStalenessDetector(6, 0.5)
	race := []string{"Swift Hostage", "Droopys Clue", "Savana Beau"}
	d.Record(race)

	if !d.IsStale(race) {
		t.Error("identical runner set must be stale")
	}
}

func TestStalenessThresholdBoundary(t *testing.T) {
	d := NewStalenessDetector(6, 0.5)
	d.Record([]string{"A", "B", "C", "D"})

	// 2 of 4 overlap: ratio exactly 0.5, not above the threshold.
	if d.IsStale([]string{"A", "B", "X", "Y"}) {
		t.Error("overlap ratio equal to threshold must not flag")
	}

	// 3 of 4 overlap: ratio 0.75 is above.
	if !d.IsStale([]string{"A", "B", "C", "Y"}) {
		t.Error("overlap ratio above threshold must flag")
	}
}

func TestStalenessHistoryBounded(t *testing.T) {
	d := NewStalenessDetector(2, 0.5)
	old := []string{"A", "B", "C"}
	d.Record(old)
	d.Record([]string{"D", "E", "F"})
	d.Record([]string{"G", "H", "I"})

	// The first race has been evicted from the window.
	if d.IsStale(old) {
		t.Error("evicted race set must no longer trigger staleness")
	}
}

func TestStalenessEmptyInput(t *testing.T) {
	d := NewStalenessDetector(6, 0.5)
	d.Record([]string{"A"})
	if d.IsStale(nil) {
		t.Error("empty runner set must not be stale")
	}
}
