// Package tray provides the system tray menu of handsign.
package tray

import (
	"strings"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/handsign/internal/app"
)

const (
	titleEnabled  = "● Enabled"
	titleDisabled = "○ Disabled"
	noGesture     = "Last: none"
)

// Tray shows the recognizer state and the last recognized gestures. It is
// an app.Sink so the pipeline can feed it directly.
type Tray struct {
	onToggle    func(enabled bool)
	onDashboard func()
	onQuit      func()
	enabled     bool
	last        string
	mu          sync.RWMutex

	menuToggle      *systray.MenuItem
	menuLastGesture *systray.MenuItem
}

// New creates a Tray with the given initial enabled state.
func New(enabled bool) *Tray {
	return &Tray{enabled: enabled}
}

// OnToggle sets the callback run when recognition is switched on or off.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnDashboard sets the callback run by "Open Dashboard".
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnQuit sets the callback run before the tray exits.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the tray. It blocks until Quit and must be called from the
// main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit exits Run.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("handsign")
	systray.SetTooltip("handsign gesture recognition")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle gesture recognition")
	systray.AddSeparator()
	t.menuLastGesture = systray.AddMenuItem(lastTitle(t.last), "Last recognized gesture")
	t.menuLastGesture.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuDashboard := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit handsign")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.Toggle()
			case <-menuDashboard.ClickedCh:
				t.mu.RLock()
				fn := t.onDashboard
				t.mu.RUnlock()
				if fn != nil {
					fn()
				}
			case <-menuQuit.ClickedCh:
				t.mu.RLock()
				fn := t.onQuit
				t.mu.RUnlock()
				if fn != nil {
					fn()
				}
				systray.Quit()
				return
			}
		}
	}()
}

// Toggle flips the enabled state and runs the toggle callback outside the
// lock.
func (t *Tray) Toggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	if callback != nil {
		callback(enabled)
	}
}

// OnFrame records the labels of a frame with hands. Empty frames keep the
// previous gesture on display.
func (t *Tray) OnFrame(result app.FrameResult) {
	if result.Empty() {
		return
	}
	t.SetLastGesture(strings.Join(result.Labels(), ", "))
}

// SetLastGesture updates the last gesture entry.
func (t *Tray) SetLastGesture(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = name
	if t.menuLastGesture != nil {
		t.menuLastGesture.SetTitle(lastTitle(name))
	}
}

// LastGesture returns the text of the last gesture entry.
func (t *Tray) LastGesture() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return titleEnabled
	}
	return titleDisabled
}

func lastTitle(name string) string {
	if name == "" {
		return noGesture
	}
	return "Last: " + name
}
