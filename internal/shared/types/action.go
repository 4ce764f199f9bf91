package types

import "fmt"

// ActionType represents the kind of automation action
type ActionType string

const (
	ActionMouseClick    ActionType = "mouse_click"
	ActionMouseMove     ActionType = "mouse_move"
	ActionMouseDrag     ActionType = "mouse_drag"
	ActionKeyboardInput ActionType = "keyboard_input"
	ActionKeyPress      ActionType = "key_press"
)

// Action represents a single automation step. Exactly the fields for its
// Type are populated: Point for click/move, From/To for drag, Text for
// keyboard input, Key for key press.
type Action struct {
	Type  ActionType `json:"type"`
	Point Point      `json:"point,omitempty"`
	From  Point      `json:"from,omitempty"`
	To    Point      `json:"to,omitempty"`
	Text  string     `json:"text,omitempty"`
	Key   string     `json:"key,omitempty"`
}

// NewMouseClick creates a click action at the given screen point
func NewMouseClick(p Point) Action {
	return Action{Type: ActionMouseClick, Point: p}
}

// NewMouseMove creates a cursor move action to the given screen point
func NewMouseMove(p Point) Action {
	return Action{Type: ActionMouseMove, Point: p}
}

// NewMouseDrag creates a drag action between two screen points
func NewMouseDrag(from, to Point) Action {
	return Action{Type: ActionMouseDrag, From: from, To: to}
}

// NewKeyboardInput creates a text typing action
func NewKeyboardInput(text string) Action {
	return Action{Type: ActionKeyboardInput, Text: text}
}

// NewKeyPress creates a single key press action
func NewKeyPress(key string) Action {
	return Action{Type: ActionKeyPress, Key: key}
}

// IsMouse reports whether the action targets screen coordinates
func (a Action) IsMouse() bool {
	switch a.Type {
	case ActionMouseClick, ActionMouseMove, ActionMouseDrag:
		return true
	}
	return false
}

// IsKeyboard reports whether the action injects keyboard input
func (a Action) IsKeyboard() bool {
	switch a.Type {
	case ActionKeyboardInput, ActionKeyPress:
		return true
	}
	return false
}

// TargetPoints returns every screen point the action touches. Drags
// return both endpoints; keyboard actions return none.
func (a Action) TargetPoints() []Point {
	switch a.Type {
	case ActionMouseClick, ActionMouseMove:
		return []Point{a.Point}
	case ActionMouseDrag:
		return []Point{a.From, a.To}
	}
	return nil
}

// Describe returns a short human-readable summary for logs
func (a Action) Describe() string {
	switch a.Type {
	case ActionMouseClick:
		return fmt.Sprintf("click %s", a.Point)
	case ActionMouseMove:
		return fmt.Sprintf("move %s", a.Point)
	case ActionMouseDrag:
		return fmt.Sprintf("drag %s -> %s", a.From, a.To)
	case ActionKeyboardInput:
		return fmt.Sprintf("type %d chars", len(a.Text))
	case ActionKeyPress:
		return fmt.Sprintf("press %q", a.Key)
	}
	return string(a.Type)
}
