package queue

import (
	"math/rand/v2"
	"path/filepath"
	"strings"
)

// TrackState represents the playback state of a track.
type TrackState int

const (
	Ready TrackState = iota
	Playing
	Failed
)

func (s TrackState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Failed:
		return "failed"
	default:
		return "ready"
	}
}

// Track is one file given on the command line.
type Track struct {
	Title string
	Path  string
	State TrackState
}

// Queue is the ordered list of tracks the player steps through with next and
// previous. It is only mutated from Bubbletea's single-threaded Update loop.
type Queue struct {
	tracks   []Track
	current  int
	order    []int // playback position -> track index
	pos      int
	shuffled bool

	// shuffle permutes n elements; replaced in tests.
	shuffle func(n int, swap func(i, j int))
}

// New creates a Queue from the given tracks with the first one current.
func New(tracks []Track) *Queue {
	q := &Queue{tracks: tracks, shuffle: rand.Shuffle}
	q.resetOrder()
	if len(tracks) > 0 {
		q.tracks[0].State = Playing
	}
	return q
}

// FromPaths builds a queue titled by file name.
func FromPaths(paths []string) *Queue {
	tracks := make([]Track, len(paths))
	for i, p := range paths {
		base := filepath.Base(p)
		tracks[i] = Track{Title: strings.TrimSuffix(base, filepath.Ext(base)), Path: p}
	}
	return New(tracks)
}

func (q *Queue) resetOrder() {
	q.order = make([]int, len(q.tracks))
	for i := range q.order {
		q.order[i] = i
	}
	q.pos = q.current
	q.shuffled = false
}

// Current returns the current track, or nil if the queue is empty.
func (q *Queue) Current() *Track {
	return q.Track(q.current)
}

// Track returns the track at index i, or nil if out of range.
func (q *Queue) Track(i int) *Track {
	if i < 0 || i >= len(q.tracks) {
		return nil
	}
	return &q.tracks[i]
}

// Len returns the total number of tracks.
func (q *Queue) Len() int { return len(q.tracks) }

// CurrentIndex returns the zero-based index of the current track.
func (q *Queue) CurrentIndex() int { return q.current }

// HasNext reports whether Advance would move.
func (q *Queue) HasNext() bool { return q.pos+1 < len(q.order) }

// Advance moves to the next track in playback order. It returns false at the
// end of the queue.
func (q *Queue) Advance() bool {
	if !q.HasNext() {
		return false
	}
	q.moveTo(q.pos + 1)
	return true
}

// Previous moves to the previous track in playback order. It returns false at
// the start of the queue.
func (q *Queue) Previous() bool {
	if q.pos <= 0 {
		return false
	}
	q.moveTo(q.pos - 1)
	return true
}

func (q *Queue) moveTo(pos int) {
	if t := q.Current(); t != nil && t.State == Playing {
		t.State = Ready
	}
	q.pos = pos
	q.current = q.order[pos]
	q.tracks[q.current].State = Playing
}

// SetCurrentIndex jumps to track i, keeping the playback order.
func (q *Queue) SetCurrentIndex(i int) {
	for pos, idx := range q.order {
		if idx == i {
			q.moveTo(pos)
			return
		}
	}
}

// SetTrackState sets the state of the track at index i.
func (q *Queue) SetTrackState(i int, state TrackState) {
	if t := q.Track(i); t != nil {
		t.State = state
	}
}

// SetTrackTitle sets the title of the track at index i.
func (q *Queue) SetTrackTitle(i int, title string) {
	if t := q.Track(i); t != nil && title != "" {
		t.Title = title
	}
}

// IsShuffled returns whether shuffle mode is active.
func (q *Queue) IsShuffled() bool { return q.shuffled }

// EnableShuffle randomizes the tracks after the current one. The current
// track keeps playing and becomes the first in the shuffled order.
func (q *Queue) EnableShuffle() {
	if len(q.tracks) <= 1 {
		return
	}
	rest := make([]int, 0, len(q.tracks)-1)
	for i := range q.tracks {
		if i != q.current {
			rest = append(rest, i)
		}
	}
	q.shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	q.order = append([]int{q.current}, rest...)
	q.pos = 0
	q.shuffled = true
}

// DisableShuffle restores file order, keeping the current track.
func (q *Queue) DisableShuffle() {
	q.resetOrder()
}
