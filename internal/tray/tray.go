// Package tray provides system tray functionality using getlantern/systray.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Title shown next to the tray icon
const Title = "Input Relay"

// MenuItem represents a menu item
type MenuItem struct {
	ID       int
	Title    string
	Disabled bool
	Callback func()
	item     *systray.MenuItem
}

// Tray manages the system tray icon and menu
type Tray struct {
	mu      sync.Mutex
	items   []*MenuItem
	tooltip string
	readyCh chan struct{}
	quitCh  chan struct{}
	onQuit  func()
}

// New creates a new system tray
func New(tooltip string) *Tray {
	return &Tray{
		items:   make([]*MenuItem, 0),
		tooltip: tooltip,
		readyCh: make(chan struct{}),
		quitCh:  make(chan struct{}),
	}
}

// OnQuit registers fn to run once the tray event loop exits
func (t *Tray) OnQuit(fn func()) {
	t.onQuit = fn
}

// AddMenuItem adds a menu item to the tray
func (t *Tray) AddMenuItem(title string, callback func()) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := len(t.items)
	t.items = append(t.items, &MenuItem{
		ID:       id,
		Title:    title,
		Callback: callback,
	})
	return id
}

// AddLabel adds a disabled item whose title can be updated with SetItemTitle
func (t *Tray) AddLabel(title string) int {
	id := t.AddMenuItem(title, nil)
	t.mu.Lock()
	t.items[id].Disabled = true
	t.mu.Unlock()
	return id
}

// AddSeparator adds a separator to the menu
func (t *Tray) AddSeparator() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, nil) // nil indicates separator
}

// SetItemTitle changes a menu item's text. Before the menu is shown the new
// title is kept and used when the item is created.
func (t *Tray) SetItemTitle(id int, title string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id < 0 || id >= len(t.items) || t.items[id] == nil {
		return
	}
	t.items[id].Title = title
	if t.items[id].item != nil {
		t.items[id].item.SetTitle(title)
	}
}

// Ready is closed once the menu has been built
func (t *Tray) Ready() <-chan struct{} {
	return t.readyCh
}

// Run starts the tray event loop (blocks)
func (t *Tray) Run() {
	systray.Run(t.setupMenu, t.exit)
}

func (t *Tray) exit() {
	close(t.quitCh)
	if t.onQuit != nil {
		t.onQuit()
	}
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	systray.SetTitle(Title)
	systray.SetTooltip(t.tooltip)
	systray.SetIcon(getIcon())

	t.mu.Lock()
	for _, menuItem := range t.items {
		if menuItem == nil {
			systray.AddSeparator()
			continue
		}

		item := systray.AddMenuItem(menuItem.Title, "")
		menuItem.item = item
		if menuItem.Disabled {
			item.Disable()
		}

		// Handle clicks in goroutine
		if menuItem.Callback != nil {
			go func(mi *MenuItem) {
				for {
					select {
					case <-mi.item.ClickedCh:
						mi.Callback()
					case <-t.quitCh:
						return
					}
				}
			}(menuItem)
		}
	}
	t.mu.Unlock()

	close(t.readyCh)
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

// getIcon returns a placeholder icon (valid 16x16 ICO)
func getIcon() []byte {
	icon := make([]byte, 1118)
	// ICO header, one image
	copy(icon[0:6], []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00})
	// Directory entry: 16x16, 32bpp, 1096 bytes at offset 22
	copy(icon[6:22], []byte{
		0x10, 0x10, 0x00, 0x00, 0x01, 0x00, 0x20, 0x00,
		0x48, 0x04, 0x00, 0x00,
		0x16, 0x00, 0x00, 0x00,
	})
	// BITMAPINFOHEADER, height doubled for the AND mask
	copy(icon[22:62], []byte{
		0x28, 0x00, 0x00, 0x00,
		0x10, 0x00, 0x00, 0x00,
		0x20, 0x00, 0x00, 0x00,
		0x01, 0x00,
		0x20, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x04, 0x00, 0x00,
	})
	// Opaque relay-blue square; the mask stays zero
	for p := 62; p < 62+1024; p += 4 {
		copy(icon[p:p+4], []byte{0xd0, 0x80, 0x20, 0xff}) // BGRA
	}
	return icon
}
