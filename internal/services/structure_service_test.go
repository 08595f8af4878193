package services

import (
	"sort"
	"testing"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
)

// applyMapping renumbers a slice of slot numbers the way the
// repository Renumber call would.
func applyMapping(order []int, mapping map[int]int) []int {
	out := make([]int, len(order))
	for i, n := range order {
		if to, ok := mapping[n]; ok {
			out[i] = to
		} else {
			out[i] = n
		}
	}
	return out
}

func TestSlotMoveMapping(t *testing.T) {
	tests := []struct {
		name     string
		numSlots int
		old      int
		target   int
		want     []int // question order by original slot identity
	}{
		// Moving slot 5 after slot 2 in a 6-slot quiz: the question
		// that was 5th becomes 3rd, 3 and 4 shift down.
		{name: "move up", numSlots: 6, old: 5, target: 3, want: []int{1, 2, 5, 3, 4, 6}},
		{name: "move down", numSlots: 6, old: 2, target: 5, want: []int{1, 3, 4, 5, 2, 6}},
		{name: "to first", numSlots: 4, old: 3, target: 1, want: []int{3, 1, 2, 4}},
		{name: "to last", numSlots: 4, old: 1, target: 4, want: []int{2, 3, 4, 1}},
		{name: "no move", numSlots: 3, old: 2, target: 2, want: []int{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapping := slotMoveMapping(tt.old, tt.target)

			// Start from identity order, renumber, then read back which
			// original slot sits at each position.
			original := make([]int, tt.numSlots)
			for i := range original {
				original[i] = i + 1
			}
			renumbered := applyMapping(original, mapping)

			// Contiguity: the new numbers are a permutation of 1..N.
			sorted := append([]int(nil), renumbered...)
			sort.Ints(sorted)
			for i, n := range sorted {
				if n != i+1 {
					t.Fatalf("renumbering broke contiguity: %v", renumbered)
				}
			}

			got := make([]int, tt.numSlots)
			for originalSlot, newNumber := range renumbered {
				got[newNumber-1] = originalSlot + 1
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("order after move = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestSlotMoveMapping_ContiguityRandomSizes(t *testing.T) {
	for numSlots := 2; numSlots <= 20; numSlots++ {
		for old := 1; old <= numSlots; old++ {
			for target := 1; target <= numSlots; target++ {
				mapping := slotMoveMapping(old, target)
				original := make([]int, numSlots)
				for i := range original {
					original[i] = i + 1
				}
				renumbered := applyMapping(original, mapping)
				seen := make(map[int]bool, numSlots)
				for _, n := range renumbered {
					if n < 1 || n > numSlots || seen[n] {
						t.Fatalf("N=%d old=%d target=%d: invalid renumbering %v", numSlots, old, target, renumbered)
					}
					seen[n] = true
				}
			}
		}
	}
}

func TestCompactPages(t *testing.T) {
	slot := func(number, page int) *models.QuizSlot {
		return &models.QuizSlot{SlotNumber: number, Page: page}
	}

	tests := []struct {
		name  string
		slots []*models.QuizSlot
		pages map[int]int
		want  map[int]int
	}{
		{
			name:  "already dense",
			slots: []*models.QuizSlot{slot(1, 1), slot(2, 1), slot(3, 2)},
			pages: map[int]int{1: 1, 2: 1, 3: 2},
			want:  map[int]int{},
		},
		{
			name:  "gap closed after removal",
			slots: []*models.QuizSlot{slot(1, 1), slot(2, 3), slot(3, 3)},
			pages: map[int]int{1: 1, 2: 3, 3: 3},
			want:  map[int]int{2: 2, 3: 2},
		},
		{
			name:  "pinned page splits a run",
			slots: []*models.QuizSlot{slot(1, 1), slot(2, 1), slot(3, 2)},
			pages: map[int]int{1: 1, 2: 9, 3: 2},
			want:  map[int]int{2: 2, 3: 3},
		},
		{
			name:  "everything on one page",
			slots: []*models.QuizSlot{slot(1, 2), slot(2, 2)},
			pages: map[int]int{1: 2, 2: 2},
			want:  map[int]int{1: 1, 2: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compactPages(tt.slots, tt.pages)
			if len(got) != len(tt.want) {
				t.Fatalf("compactPages() = %v, want %v", got, tt.want)
			}
			for slotNumber, page := range tt.want {
				if got[slotNumber] != page {
					t.Errorf("slot %d page = %d, want %d", slotNumber, got[slotNumber], page)
				}
			}
		})
	}
}

func TestSectionSizeAt(t *testing.T) {
	sections := []*models.QuizSection{
		{FirstSlot: 4, Heading: "Part two"},
		{FirstSlot: 1, Heading: "Part one"},
		{FirstSlot: 6, Heading: "Part three"},
	}

	tests := []struct {
		name       string
		slotNumber int
		want       int
	}{
		{name: "first section", slotNumber: 2, want: 3},
		{name: "middle section", slotNumber: 4, want: 2},
		{name: "last section runs to the end", slotNumber: 7, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sectionSizeAt(sections, 8, tt.slotNumber); got != tt.want {
				t.Errorf("sectionSizeAt(%d) = %d, want %d", tt.slotNumber, got, tt.want)
			}
		})
	}

	t.Run("no sections means one implicit section", func(t *testing.T) {
		if got := sectionSizeAt(nil, 5, 3); got != 5 {
			t.Errorf("sectionSizeAt() = %d, want 5", got)
		}
	})
}

func TestTotalMaxMarks(t *testing.T) {
	slots := []*models.QuizSlot{
		{SlotNumber: 1, MaxMark: 2.5},
		{SlotNumber: 2, MaxMark: 1},
		{SlotNumber: 3, MaxMark: 0},
	}
	if got := totalMaxMarks(slots); got != 3.5 {
		t.Errorf("totalMaxMarks() = %v, want 3.5", got)
	}
}
