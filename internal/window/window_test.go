package window

import (
	"testing"
	"time"

	"pricewatch/internal/model"
)

func sampleAt(sec int64, price float64) model.Sample {
	return model.Sample{TS: time.Unix(sec, 0).UTC(), Price: price}
}

func TestWindow_AppendOrdered(t *testing.T) {
	w := New(4)

	if !w.Append(sampleAt(1, 100)) {
		t.Fatal("append should succeed")
	}
	if !w.Append(sampleAt(2, 101)) {
		t.Fatal("append should succeed")
	}

	if w.Len() != 2 {
		t.Fatalf("expected len=2, got %d", w.Len())
	}

	last, ok := w.Last()
	if !ok || last.Price != 101 {
		t.Fatalf("expected last=101, got %v ok=%v", last.Price, ok)
	}
}

func TestWindow_DuplicateTimestampLastWriteWins(t *testing.T) {
	w := New(4)

	w.Append(sampleAt(1, 100))
	w.Append(sampleAt(1, 105))

	if w.Len() != 1 {
		t.Fatalf("expected len=1 after duplicate TS, got %d", w.Len())
	}
	last, _ := w.Last()
	if last.Price != 105 {
		t.Fatalf("expected last write to win, got %v", last.Price)
	}
}

func TestWindow_RejectsOlderSample(t *testing.T) {
	w := New(4)

	w.Append(sampleAt(5, 100))
	if w.Append(sampleAt(3, 99)) {
		t.Fatal("older sample should be ignored")
	}
	if w.Len() != 1 {
		t.Fatalf("expected len=1, got %d", w.Len())
	}
}

func TestWindow_EvictsOldestWhenFull(t *testing.T) {
	w := New(4) // capacity = 4

	for i := 1; i <= 6; i++ {
		w.Append(sampleAt(int64(i), float64(100+i)))
	}

	if w.Len() != 4 {
		t.Fatalf("expected len=4, got %d", w.Len())
	}
	if w.At(0).Price != 103 {
		t.Fatalf("expected oldest=103 after eviction, got %v", w.At(0).Price)
	}
	if w.At(3).Price != 106 {
		t.Fatalf("expected newest=106, got %v", w.At(3).Price)
	}
}

func TestWindow_Tail(t *testing.T) {
	w := New(8)
	for i := 1; i <= 5; i++ {
		w.Append(sampleAt(int64(i), float64(i)))
	}

	tail := w.Tail(3)
	if len(tail) != 3 {
		t.Fatalf("expected tail len=3, got %d", len(tail))
	}
	if tail[0].Price != 3 || tail[2].Price != 5 {
		t.Fatalf("unexpected tail contents: %v", tail)
	}

	all := w.Tail(10)
	if len(all) != 5 {
		t.Fatalf("expected full tail len=5, got %d", len(all))
	}
}

func TestWindow_SliceRoundTrip(t *testing.T) {
	w := New(4)
	for i := 1; i <= 7; i++ {
		w.Append(sampleAt(int64(i), float64(i)))
	}

	s := w.Slice()
	if len(s) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(s))
	}
	for i := 1; i < len(s); i++ {
		if !s[i].TS.After(s[i-1].TS) {
			t.Fatalf("timestamps not strictly increasing at %d: %v", i, s)
		}
	}
}
