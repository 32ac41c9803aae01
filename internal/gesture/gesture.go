// Package gesture classifies a single hand pose into a fixed vocabulary of
// named static gestures.
//
// Classification is a hand-authored decision procedure: a handful of boolean
// features are derived from the pose and an ordered rule table is evaluated,
// first match wins. It is a pure function of one pose and one schema and is
// safe to call concurrently.
//
// Known limitation: the features are not orientation invariant. A finger is
// "extended" when its tip is higher in the image than its knuckle, and the
// thumb is "extended" when its tip is left of its IP joint in image space.
// Both assume an upright hand in a horizontally mirrored (selfie) frame; a
// sideways or inverted hand, or an unmirrored frame, classifies differently.
package gesture

import (
	"fmt"
	"strings"
)

// Gesture is a classification result drawn from a closed set.
// The zero value is Unknown.
type Gesture int

const (
	Unknown Gesture = iota
	OpenPalm
	Fist
	ThumbsUp
	Peace
	Pinky
	OK
	RockNRoll
	LShape
	Pointing
)

var gestureNames = [...]struct {
	id    string
	label string
}{
	Unknown:   {"unknown", "Unknown"},
	OpenPalm:  {"open_palm", "Open Palm"},
	Fist:      {"fist", "Fist"},
	ThumbsUp:  {"thumbs_up", "Thumbs Up"},
	Peace:     {"peace", "Peace"},
	Pinky:     {"pinky", "Pinky"},
	OK:        {"ok", "OK"},
	RockNRoll: {"rock_n_roll", "Rock'n Roll"},
	LShape:    {"l_shape", "L shape"},
	Pointing:  {"pointing", "Pointing"},
}

// All returns every gesture in rule order, with Unknown last.
func All() []Gesture {
	return []Gesture{OpenPalm, Fist, ThumbsUp, Peace, Pinky, OK, RockNRoll, LShape, Pointing, Unknown}
}

// Valid reports whether g is a member of the closed set.
func (g Gesture) Valid() bool {
	return g >= Unknown && int(g) < len(gestureNames)
}

// ID returns the stable snake_case identifier used on the wire and in storage.
func (g Gesture) ID() string {
	if !g.Valid() {
		return gestureNames[Unknown].id
	}
	return gestureNames[g].id
}

// String returns the human readable label drawn on screen.
func (g Gesture) String() string {
	if !g.Valid() {
		return gestureNames[Unknown].label
	}
	return gestureNames[g].label
}

// Parse resolves an identifier or a display label, case-insensitively.
func Parse(s string) (Gesture, error) {
	s = strings.TrimSpace(s)
	for i, n := range gestureNames {
		if strings.EqualFold(s, n.id) || strings.EqualFold(s, n.label) {
			return Gesture(i), nil
		}
	}
	return Unknown, fmt.Errorf("unknown gesture %q", s)
}

// MarshalText encodes the gesture as its identifier.
func (g Gesture) MarshalText() ([]byte, error) {
	return []byte(g.ID()), nil
}

// UnmarshalText decodes an identifier or display label.
func (g *Gesture) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
