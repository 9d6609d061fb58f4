package source

import (
	"testing"
)

func TestSpan_Cover(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Span
		expected Span
	}{
		{
			name:     "disjoint spans",
			a:        Span{File: 1, Start: 10, End: 20},
			b:        Span{File: 1, Start: 30, End: 40},
			expected: Span{File: 1, Start: 10, End: 40},
		},
		{
			name:     "contained span",
			a:        Span{File: 1, Start: 10, End: 40},
			b:        Span{File: 1, Start: 15, End: 20},
			expected: Span{File: 1, Start: 10, End: 40},
		},
		{
			name:     "different files keep receiver",
			a:        Span{File: 1, Start: 10, End: 20},
			b:        Span{File: 2, Start: 0, End: 5},
			expected: Span{File: 1, Start: 10, End: 20},
		},
		{
			name:     "zero receiver adopts other",
			a:        Span{File: 3},
			b:        Span{File: 3, Start: 4, End: 9},
			expected: Span{File: 3, Start: 4, End: 9},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Cover(tt.b); got != tt.expected {
				t.Errorf("Cover() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSpan_String(t *testing.T) {
	s := Span{File: 2, Start: 5, End: 9}
	if got := s.String(); got != "2:5-9" {
		t.Fatalf("String() = %q", got)
	}
	if s.Len() != 4 || s.Empty() {
		t.Fatalf("unexpected length/emptiness for %v", s)
	}
}
