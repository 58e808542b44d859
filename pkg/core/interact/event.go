package interact

import (
	"fmt"
	"strings"
)

// EventKind identifies an input event.
type EventKind int

const (
	EventClick EventKind = iota
	EventMove
	EventDrag
	EventWheel
	EventKey
	EventResize
	EventLeave
)

var eventNames = map[EventKind]string{
	EventClick:  "click",
	EventMove:   "move",
	EventDrag:   "drag",
	EventWheel:  "wheel",
	EventKey:    "key",
	EventResize: "resize",
	EventLeave:  "leave",
}

func (k EventKind) String() string {
	if s, ok := eventNames[k]; ok {
		return s
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EventKind) UnmarshalText(b []byte) error {
	name := strings.ToLower(string(b))
	for kind, s := range eventNames {
		if s == name {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", b)
}

// Event is a pointer, wheel, key or resize event in screen coordinates.
type Event struct {
	Kind EventKind `json:"kind"`

	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`

	// DX and DY are the drag offset in screen pixels.
	DX float64 `json:"dx,omitempty"`
	DY float64 `json:"dy,omitempty"`

	// Zoom is the wheel zoom factor; values above 1 zoom in.
	Zoom float64 `json:"zoom,omitempty"`

	Key string `json:"key,omitempty"`

	Ctrl  bool `json:"ctrl,omitempty"`
	Meta  bool `json:"meta,omitempty"`
	Shift bool `json:"shift,omitempty"`

	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// Modified reports whether the event carries the toggle-selection modifier
// (ctrl on most platforms, cmd on macOS).
func (e Event) Modified() bool { return e.Ctrl || e.Meta }

// Keys understood by Dispatch.
const (
	KeyEscape  = "Escape"    // clear the selection
	KeyClear   = "Backspace" // clear every filter
	KeyReset   = "0"         // reset pan and zoom
	KeyZoomIn  = "+"
	KeyZoomOut = "-"
)

// keyZoomStep is the zoom factor applied by the zoom keys.
const keyZoomStep = 1.25
