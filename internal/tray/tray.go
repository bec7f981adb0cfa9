// Package tray provides a system tray menu for the glove studio.
package tray

import (
	"sync"
	"time"

	"github.com/getlantern/systray"
)

// StatusInterval is how often the status line is refreshed.
const StatusInterval = 2 * time.Second

// Tray represents the system tray application.
type Tray struct {
	onCalibrate func()
	onOpen      func()
	onQuit      func()
	status      func() string
	mu          sync.RWMutex

	menuStatus *systray.MenuItem
	stopCh     chan struct{}
}

// New creates a new Tray instance.
func New() *Tray {
	return &Tray{stopCh: make(chan struct{})}
}

// OnCalibrate sets the callback for the Calibrate menu item.
func (t *Tray) OnCalibrate(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCalibrate = fn
}

// OnOpenStudio sets the callback for the Open Studio menu item.
func (t *Tray) OnOpenStudio(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// StatusFunc sets the source of the status line, polled every StatusInterval.
func (t *Tray) StatusFunc(fn func() string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetTitle("Glove Studio")
	systray.SetTooltip("Sign language glove capture")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem("Glove: disconnected", "Feed status")
	t.menuStatus.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuCalibrate := systray.AddMenuItem("Calibrate", "Reset the hand to its rest pose")
	menuOpen := systray.AddMenuItem("Open Studio...", "Open the studio in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit Glove Studio")

	go t.refresh()

	go func() {
		for {
			select {
			case <-menuCalibrate.ClickedCh:
				t.call(func() func() { return t.onCalibrate })
			case <-menuOpen.ClickedCh:
				t.call(func() func() { return t.onOpen })
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	close(t.stopCh)
}

// refresh keeps the status line current until the tray exits.
func (t *Tray) refresh() {
	ticker := time.NewTicker(StatusInterval)
	defer ticker.Stop()

	for {
		t.SetStatus(t.currentStatus())
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
		}
	}
}

func (t *Tray) currentStatus() string {
	t.mu.RLock()
	fn := t.status
	t.mu.RUnlock()
	if fn == nil {
		return ""
	}
	return fn()
}

// call runs the callback selected by get outside the lock.
func (t *Tray) call(get func() func()) {
	t.mu.RLock()
	fn := get()
	t.mu.RUnlock()

	if fn != nil {
		fn()
	}
}

func (t *Tray) handleQuit() {
	t.call(func() func() { return t.onQuit })
	systray.Quit()
}

// SetStatus updates the status line in the menu. An empty status is ignored.
func (t *Tray) SetStatus(status string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuStatus != nil && status != "" {
		t.menuStatus.SetTitle(status)
	}
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}
