package queue

import "testing"

func reverse(n int, swap func(i, j int)) {
	for i := 0; i < n/2; i++ {
		swap(i, n-1-i)
	}
}

func TestFromPathsTitlesByFileName(t *testing.T) {
	q := FromPaths([]string{"/music/one.mp3", "two.flac"})
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
	if got := q.Track(0).Title; got != "one" {
		t.Fatalf("title = %q, want one", got)
	}
	if got := q.Track(1).Title; got != "two" {
		t.Fatalf("title = %q, want two", got)
	}
	if q.Current().State != Playing {
		t.Fatalf("first track state = %s, want playing", q.Current().State)
	}
}

func TestAdvanceAndPrevious(t *testing.T) {
	q := FromPaths([]string{"a.mp3", "b.mp3", "c.mp3"})

	if q.Previous() {
		t.Fatal("Previous() at start should fail")
	}
	if !q.Advance() || q.CurrentIndex() != 1 {
		t.Fatalf("Advance() -> index %d, want 1", q.CurrentIndex())
	}
	if q.Track(0).State != Ready || q.Track(1).State != Playing {
		t.Fatalf("states = %s/%s, want ready/playing", q.Track(0).State, q.Track(1).State)
	}
	if !q.Advance() || q.Advance() {
		t.Fatal("expected one more Advance() then end of queue")
	}
	if q.HasNext() {
		t.Fatal("HasNext() at end should be false")
	}
	if !q.Previous() || q.CurrentIndex() != 1 {
		t.Fatalf("Previous() -> index %d, want 1", q.CurrentIndex())
	}
}

func TestSetCurrentIndex(t *testing.T) {
	q := FromPaths([]string{"a.mp3", "b.mp3", "c.mp3"})
	q.SetCurrentIndex(2)
	if q.CurrentIndex() != 2 || q.HasNext() {
		t.Fatalf("current = %d, HasNext = %v", q.CurrentIndex(), q.HasNext())
	}
	if q.Track(0).State != Ready || q.Track(2).State != Playing {
		t.Fatal("expected playing state to follow the jump")
	}
	q.SetCurrentIndex(7)
	if q.CurrentIndex() != 2 {
		t.Fatal("out of range index should be ignored")
	}
	if !q.Previous() || q.CurrentIndex() != 1 {
		t.Fatalf("Previous() after jump -> %d, want 1", q.CurrentIndex())
	}
}

func TestFailedStateSurvivesMove(t *testing.T) {
	q := FromPaths([]string{"a.mp3", "b.mp3"})
	q.SetTrackState(0, Failed)
	q.Advance()
	if q.Track(0).State != Failed {
		t.Fatalf("state = %s, want failed", q.Track(0).State)
	}
}

func TestShuffleKeepsCurrentFirst(t *testing.T) {
	q := FromPaths([]string{"a.mp3", "b.mp3", "c.mp3", "d.mp3"})
	q.shuffle = reverse
	q.Advance() // current = b

	q.EnableShuffle()
	if !q.IsShuffled() {
		t.Fatal("expected shuffle on")
	}

	// Remaining [a c d] reversed: d c a.
	want := []int{3, 2, 0}
	for _, idx := range want {
		if !q.Advance() {
			t.Fatalf("Advance() stopped early")
		}
		if q.CurrentIndex() != idx {
			t.Fatalf("shuffled index = %d, want %d", q.CurrentIndex(), idx)
		}
	}
	if q.Advance() {
		t.Fatal("expected end of shuffled order")
	}

	q.DisableShuffle()
	if q.IsShuffled() || q.CurrentIndex() != 0 {
		t.Fatalf("after DisableShuffle current = %d shuffled = %v", q.CurrentIndex(), q.IsShuffled())
	}
	if !q.Advance() || q.CurrentIndex() != 1 {
		t.Fatalf("file order not restored, current = %d", q.CurrentIndex())
	}
}

func TestShuffleSingleTrackIsNoop(t *testing.T) {
	q := FromPaths([]string{"a.mp3"})
	q.EnableShuffle()
	if q.IsShuffled() {
		t.Fatal("single track queue should not shuffle")
	}
}

func TestEmptyQueue(t *testing.T) {
	q := New(nil)
	if q.Current() != nil || q.Advance() || q.Previous() {
		t.Fatal("empty queue should have no current track and not move")
	}
	q.SetTrackTitle(3, "x")
}
