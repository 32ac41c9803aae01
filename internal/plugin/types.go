// Package plugin runs external programs in response to recognized gestures.
// A plugin is a directory holding a plugin.json manifest and an executable;
// the manifest binds gestures to actions. The executable receives one
// Request as JSON on stdin and answers with one Response on stdout.
package plugin

import "encoding/json"

// ManifestFile is the manifest name looked for in each plugin directory.
const ManifestFile = "plugin.json"

// Manifest describes a plugin and the gestures it reacts to.
type Manifest struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Executable  string    `json:"executable"`
	Bindings    []Binding `json:"bindings"`
}

// Binding runs Action when a hand starts showing Gesture. Gesture is an id
// or label accepted by gesture.Parse.
type Binding struct {
	Gesture string          `json:"gesture"`
	Action  string          `json:"action"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Request is sent to the plugin executable.
type Request struct {
	Action     string          `json:"action"`
	Gesture    string          `json:"gesture"`
	Label      string          `json:"label"`
	Hand       int             `json:"hand"`
	Handedness string          `json:"handedness,omitempty"`
	Session    string          `json:"session,omitempty"`
	Frame      int64           `json:"frame"`
	Params     json.RawMessage `json:"params,omitempty"`
}

// Response is what the plugin executable prints.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
