package dataset

import (
	"reflect"
	"testing"
)

// TestNaturalLess tests numeric-aware ordering of filenames
func TestNaturalLess(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{"Numeric run", "img2.jpg", "img10.jpg", true},
		{"Numeric run reversed", "img10.jpg", "img2.jpg", false},
		{"Equal names", "img2.jpg", "img2.jpg", false},
		{"Case insensitive", "IMG2.jpg", "img10.jpg", true},
		{"Plain lexical", "apple.jpg", "banana.jpg", true},
		{"Leading zeros", "img002.jpg", "img10.jpg", true},
		{"Prefix shorter", "img.jpg", "img.jpg.bak", true},
		{"Digits before text", "1.jpg", "a.jpg", true},
		{"Multiple runs", "a1b2.jpg", "a1b10.jpg", true},
		{"Large numbers", "img123456789012345678901.jpg", "img123456789012345678902.jpg", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NaturalLess(tt.a, tt.b); got != tt.want {
				t.Errorf("NaturalLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// TestSortNatural tests that a full listing sorts deterministically
func TestSortNatural(t *testing.T) {
	names := []string{"img10.jpg", "img2.jpg", "IMG1.jpg", "cover.jpg", "img2.jpeg"}
	SortNatural(names)

	want := []string{"cover.jpg", "IMG1.jpg", "img2.jpeg", "img2.jpg", "img10.jpg"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("SortNatural() = %v, want %v", names, want)
	}

	// Sorting again must not change the order.
	again := make([]string, len(names))
	copy(again, names)
	SortNatural(again)
	if !reflect.DeepEqual(again, names) {
		t.Errorf("SortNatural() not stable: %v vs %v", again, names)
	}
}
