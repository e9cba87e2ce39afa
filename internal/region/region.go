package region

import (
	"errors"
	"fmt"
)

// Mode selects the strategy used to resolve the capture region.
type Mode string

const (
	ModeFullScreen Mode = "fullscreen"
	ModeWindow     Mode = "window"
	ModeRectangle  Mode = "rectangle"
)

var (
	// ErrGeometryUnavailable indicates the display server or a geometry query
	// tool did not return parseable width/height values.
	ErrGeometryUnavailable = errors.New("geometry unavailable")

	// ErrCancelled indicates the operator declined the confirmation prompt
	// preceding an interactive pick.
	ErrCancelled = errors.New("cancelled by operator")
)

// Region is the absolute capture rectangle on the display: origin plus size.
// Once resolved it is immutable; a window that later moves or resizes is not
// tracked.
type Region struct {
	Left   int
	Top    int
	Width  int
	Height int
}

// Validate checks that the region is fully populated and on-screen.
func (r Region) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: non-positive size %dx%d", ErrGeometryUnavailable, r.Width, r.Height)
	}
	if r.Left < 0 || r.Top < 0 {
		return fmt.Errorf("%w: negative origin (%d, %d)", ErrGeometryUnavailable, r.Left, r.Top)
	}
	return nil
}

// String renders the region in X geometry notation, e.g. "1920x1080+0+0".
func (r Region) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.Left, r.Top)
}

// Overrides carries explicit geometry values supplied on the command line.
// A nil field means the value was not given.
type Overrides struct {
	Left   *int
	Top    *int
	Width  *int
	Height *int
}

// merge applies the set override fields on top of a queried region. Each
// explicit value wins over the queried one; unset fields keep the query
// result.
func (o Overrides) merge(r Region) Region {
	if o.Left != nil {
		r.Left = *o.Left
	}
	if o.Top != nil {
		r.Top = *o.Top
	}
	if o.Width != nil {
		r.Width = *o.Width
	}
	if o.Height != nil {
		r.Height = *o.Height
	}
	return r
}
