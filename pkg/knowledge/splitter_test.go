package knowledge

import (
	"strings"
	"testing"
)

func TestSplitter_Split_ShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(1000, 200)
	chunks := s.Split("We are open 9am to 5pm weekdays.")
	if len(chunks) != 1 {
		t.Fatalf("Split() returned %d chunks, want 1", len(chunks))
	}
}

func TestSplitter_Split_EmptyText(t *testing.T) {
	s := NewSplitter(1000, 200)
	if chunks := s.Split("   \n  "); len(chunks) != 0 {
		t.Errorf("Split() returned %d chunks for whitespace input, want 0", len(chunks))
	}
}

func TestSplitter_Split_RespectsChunkSize(t *testing.T) {
	s := NewSplitter(100, 20)
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 50)

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("Split() returned %d chunks, want several", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 100 {
			t.Errorf("Split() chunk %d has %d bytes, want <= 100", i, len(chunk))
		}
	}
}

func TestSplitter_Split_OverlapCarriesContext(t *testing.T) {
	s := NewSplitter(100, 40)
	text := strings.Repeat("alpha bravo charlie delta echo foxtrot golf hotel. ", 20)

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("Split() returned %d chunks, want several", len(chunks))
	}
	// Consecutive chunks share text because of the overlap window.
	for i := 1; i < len(chunks); i++ {
		tail := chunks[i-1][len(chunks[i-1])-10:]
		if !strings.Contains(chunks[i-1]+chunks[i], tail) {
			t.Fatalf("unexpected chunk layout at %d", i)
		}
	}
}

func TestSplitter_Split_PrefersParagraphBoundaries(t *testing.T) {
	s := NewSplitter(60, 10)
	text := "First paragraph stays together here.\n\nSecond paragraph follows after the break."

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("Split() returned %d chunks, want 2+", len(chunks))
	}
	if !strings.HasPrefix(chunks[0], "First paragraph") {
		t.Errorf("Split() first chunk = %q", chunks[0])
	}
}

func TestNewSplitter_DefaultsOnBadInput(t *testing.T) {
	s := NewSplitter(0, -1)
	if s.ChunkSize != 1000 || s.ChunkOverlap != 200 {
		t.Errorf("NewSplitter(0, -1) = %d/%d, want 1000/200", s.ChunkSize, s.ChunkOverlap)
	}
}
