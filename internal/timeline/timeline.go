// Package timeline holds the pure data model for an export session: an
// ordered list of placed media items. Slice order is stacking order, so a
// later item paints over an earlier one wherever they overlap.
package timeline

import (
	"fmt"
	"math"
)

const (
	KindVideo = "video"
	KindAudio = "audio"
	KindImage = "image"
)

// Item is a placed media clip. Source is a URL or local path understood by
// the media layer. Start and Duration are in seconds on the project timeline.
type Item struct {
	Kind     string  `json:"kind"`
	Source   string  `json:"source"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Validate checks the item invariants: a known kind, a non-empty source,
// Start >= 0 and Duration > 0.
func (it Item) Validate() error {
	switch it.Kind {
	case KindVideo, KindAudio, KindImage:
	default:
		return fmt.Errorf("unknown item kind %q", it.Kind)
	}
	if it.Source == "" {
		return fmt.Errorf("item source is required")
	}
	if it.Start < 0 {
		return fmt.Errorf("item start must be >= 0, got %g", it.Start)
	}
	if it.Duration <= 0 {
		return fmt.Errorf("item duration must be > 0, got %g", it.Duration)
	}
	return nil
}

// End returns the exclusive end time of the item's interval.
func (it Item) End() float64 {
	return it.Start + it.Duration
}

// ActiveAt reports whether t falls inside [Start, Start+Duration).
func (it Item) ActiveAt(t float64) bool {
	return t >= it.Start && t < it.End()
}

// Visual reports whether the item contributes pixels to a frame.
func (it Item) Visual() bool {
	return it.Kind == KindVideo || it.Kind == KindImage
}

// Timeline is an ordered collection of items. It is owned by a single export
// session and never mutated while the session runs.
type Timeline []Item

// Validate checks every item. An empty timeline is rejected here so callers
// fail before any encoder resource is acquired.
func (tl Timeline) Validate() error {
	if len(tl) == 0 {
		return fmt.Errorf("timeline is empty")
	}
	for i, it := range tl {
		if err := it.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

// TotalDuration is the latest end time across all items, in seconds.
func (tl Timeline) TotalDuration() float64 {
	var total float64
	for _, it := range tl {
		total = math.Max(total, it.End())
	}
	return total
}

// VisualAt returns the video and image items active at t, preserving slice
// order (back-to-front).
func (tl Timeline) VisualAt(t float64) []Item {
	var active []Item
	for _, it := range tl {
		if it.Visual() && it.ActiveAt(t) {
			active = append(active, it)
		}
	}
	return active
}

// AudioItems returns every item that carries audio: audio clips and video
// clips (their embedded track is mixed too).
func (tl Timeline) AudioItems() []Item {
	var items []Item
	for _, it := range tl {
		if it.Kind == KindAudio || it.Kind == KindVideo {
			items = append(items, it)
		}
	}
	return items
}

// FrameCount returns ceil(total * fps), the number of frames an export at
// the given frame rate produces.
func (tl Timeline) FrameCount(fps int) int {
	return int(math.Ceil(tl.TotalDuration() * float64(fps)))
}
