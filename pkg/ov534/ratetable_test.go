package ov534

import "testing"

func tableContains(table []rateEntry, fps int) bool {
	for _, e := range table {
		if e.fps == fps {
			return true
		}
	}
	return false
}

func TestNormalizeFramerateReturnsTableMember(t *testing.T) {
	for _, res := range []Resolution{ResolutionVGA, ResolutionQVGA} {
		table := rateTableFor(res)
		for _, requested := range []int{1, 2, 5, 30, 60, 83, 100, 290, 1000} {
			got := NormalizeFramerate(requested, res)
			if !tableContains(table, got) {
				t.Fatalf("NormalizeFramerate(%d, %v) = %d, not present in its rate table", requested, res, got)
			}
		}
	}
}

func TestNormalizeFramerateMonotoneNonDecreasing(t *testing.T) {
	for _, res := range []Resolution{ResolutionVGA, ResolutionQVGA} {
		prev := NormalizeFramerate(1, res)
		for requested := 2; requested <= 300; requested++ {
			got := NormalizeFramerate(requested, res)
			if got < prev {
				t.Fatalf("NormalizeFramerate(%d, %v) = %d, less than NormalizeFramerate(%d) = %d", requested, res, got, requested-1, prev)
			}
			prev = got
		}
	}
}

func TestNormalizeFramerateBelowSmallestEntryFallsThrough(t *testing.T) {
	if got := NormalizeFramerate(1, ResolutionQVGA); got != 2 {
		t.Fatalf("NormalizeFramerate(1, QVGA) = %d, want 2 (the table's smallest entry)", got)
	}
	if got := NormalizeFramerate(1, ResolutionVGA); got != 2 {
		t.Fatalf("NormalizeFramerate(1, VGA) = %d, want 2 (the table's smallest entry)", got)
	}
}
