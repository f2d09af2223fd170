// Package selection tracks which renderable unit is selected and where its
// companion popup goes. At most one unit is selected and at most one popup
// is open at any time.
package selection

import "github.com/google/uuid"

// Side is which side of the activated unit the popup opens on.
type Side int

const (
	SideRight Side = iota
	SideLeft
)

func (s Side) String() string {
	if s == SideLeft {
		return "left"
	}
	return "right"
}

// State is the controller's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateSelected
	StatePopupOpen
)

// Rect is a unit's bounding box in viewport cells.
type Rect struct {
	X, Y, W, H int
}

func (r Rect) Right() int  { return r.X + r.W }
func (r Rect) Bottom() int { return r.Y + r.H }

func (r Rect) contains(x, y int) bool {
	return x >= r.X && x < r.Right() && y >= r.Y && y < r.Bottom()
}

func (r Rect) area() int { return r.W * r.H }

// Payload is the content sent to the explanation endpoint when a unit's
// popup opens.
type Payload struct {
	Content  string
	Kind     string
	ImageRef string
}

// Unit is one activatable piece of rendered content.
type Unit struct {
	ID      string
	Rect    Rect
	Payload Payload
}

// Placement is the computed popup geometry.
type Placement struct {
	Side Side
	X, Y int
}

// Popup is the single open popup. Instance is fresh per open so downstream
// streams can tell two opens of the same unit apart.
type Popup struct {
	Instance  string
	UnitID    string
	Anchor    Rect
	Payload   Payload
	Placement Placement
}

// Controller holds selection and popup state for one viewport.
type Controller struct {
	popupW, popupH int
	margin         int
	viewW, viewH   int

	selected string
	popup    *Popup
}

const (
	defaultPopupWidth  = 48
	defaultPopupHeight = 18
	defaultMargin      = 2
)

func NewController() *Controller {
	return &Controller{
		popupW: defaultPopupWidth,
		popupH: defaultPopupHeight,
		margin: defaultMargin,
	}
}

// Resize records the viewport and, with a popup open, recomputes its
// placement against the new geometry.
func (c *Controller) Resize(w, h int) {
	c.viewW, c.viewH = w, h
	if c.popup != nil {
		c.popup.Placement = c.place(c.popup.Anchor)
	}
}

// PopupSize overrides the default popup dimensions.
func (c *Controller) PopupSize(w, h int) {
	c.popupW, c.popupH = w, h
}

// Resolve maps a click position to the innermost unit containing it. Units
// may nest; the smallest containing rect wins, so a sentence inside a
// paragraph takes the click over the paragraph. Returns false when the
// click hits no unit.
func Resolve(units []Unit, x, y int) (Unit, bool) {
	best := -1
	for i, u := range units {
		if !u.Rect.contains(x, y) {
			continue
		}
		if best < 0 || u.Rect.area() < units[best].Rect.area() {
			best = i
		}
	}
	if best < 0 {
		return Unit{}, false
	}
	return units[best], true
}

// Activate selects a unit and opens its popup, replacing any open popup and
// deselecting the previous unit first.
func (c *Controller) Activate(u Unit) Popup {
	c.selected = u.ID
	popup := Popup{
		Instance:  uuid.NewString(),
		UnitID:    u.ID,
		Anchor:    u.Rect,
		Payload:   u.Payload,
		Placement: c.place(u.Rect),
	}
	c.popup = &popup
	return popup
}

// OutsideClick handles a click that hit neither the popup nor a unit: the
// popup closes and selection clears.
func (c *Controller) OutsideClick() {
	c.Close()
}

// Close dismisses the popup and clears selection.
func (c *Controller) Close() {
	c.popup = nil
	c.selected = ""
}

// Selected returns the selected unit's id, or "" when idle.
func (c *Controller) Selected() string { return c.selected }

// Open returns the open popup, or nil.
func (c *Controller) Open() *Popup { return c.popup }

func (c *Controller) State() State {
	switch {
	case c.popup != nil:
		return StatePopupOpen
	case c.selected != "":
		return StateSelected
	default:
		return StateIdle
	}
}

// place picks the side with room, preferring right, and clamps the popup's
// origin so it stays on screen even in viewports smaller than the popup.
func (c *Controller) place(r Rect) Placement {
	spaceRight := c.viewW - r.Right()
	side := SideLeft
	x := r.X - c.popupW - c.margin
	if spaceRight >= c.popupW+c.margin {
		side = SideRight
		x = r.Right() + c.margin
	}
	x = clamp(x, c.margin, c.viewW-c.popupW-c.margin)
	x = clamp(x, 0, max(0, c.viewW-c.popupW))

	y := r.Y + r.H/2 - c.popupH/2
	y = clamp(y, c.margin, c.viewH-c.popupH-c.margin)
	y = clamp(y, 0, max(0, c.viewH-c.popupH))

	return Placement{Side: side, X: x, Y: y}
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
