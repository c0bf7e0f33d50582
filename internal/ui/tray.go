package ui

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"
)

//go:embed icon.png
var iconBytes []byte

const refreshInterval = 2 * time.Second

// Status is what the tray shows.
type Status struct {
	EngineState    string
	EngineError    string
	Sessions       int
	ExportsRunning int
}

type Tray struct {
	status func() Status
	logger *slog.Logger

	engineItem  *systray.MenuItem
	exportsItem *systray.MenuItem

	mu   sync.Mutex
	last Status
	stop chan struct{}

	onOpenEditor func() error
	onQuit       func()
}

type TrayConfig struct {
	// Status is polled to refresh the menu.
	Status       func() Status
	Logger       *slog.Logger
	OnOpenEditor func() error
	OnQuit       func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		status:       cfg.Status,
		logger:       cfg.Logger,
		onOpenEditor: cfg.OnOpenEditor,
		onQuit:       cfg.OnQuit,
		stop:         make(chan struct{}),
	}
}

// Run blocks on the platform event loop.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Media Crop")
	systray.SetTooltip("Media Crop")

	t.engineItem = systray.AddMenuItem(engineTitle(Status{}), "Processing engine status")
	t.engineItem.Disable()

	t.exportsItem = systray.AddMenuItem(exportsTitle(Status{}), "Running exports")
	t.exportsItem.Disable()

	systray.AddSeparator()

	openItem := systray.AddMenuItem("Open Editor", "Open the editor in a browser")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Media Crop")

	go t.refreshLoop()

	go func() {
		for {
			select {
			case <-openItem.ClickedCh:
				t.handleOpenEditor()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	close(t.stop)
	t.logger.Info("system tray exiting")
}

func (t *Tray) refreshLoop() {
	if t.status == nil {
		return
	}
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	t.Update(t.status())
	for {
		select {
		case <-ticker.C:
			t.Update(t.status())
		case <-t.stop:
			return
		}
	}
}

func (t *Tray) handleOpenEditor() {
	if t.onOpenEditor != nil {
		if err := t.onOpenEditor(); err != nil {
			t.logger.Error("failed to open editor", "error", err)
		}
	}
}

// Update refreshes the menu if the status changed.
func (t *Tray) Update(st Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if st == t.last || t.engineItem == nil {
		return
	}
	t.last = st
	t.engineItem.SetTitle(engineTitle(st))
	t.engineItem.SetTooltip(st.EngineError)
	t.exportsItem.SetTitle(exportsTitle(st))
}

func (t *Tray) Quit() {
	systray.Quit()
}

func engineTitle(st Status) string {
	switch st.EngineState {
	case "ready":
		return "Engine: Ready"
	case "failed":
		return "Engine: Failed to start"
	default:
		return "Engine: Loading..."
	}
}

func exportsTitle(st Status) string {
	if st.ExportsRunning == 0 {
		return fmt.Sprintf("Idle (%d open)", st.Sessions)
	}
	return fmt.Sprintf("Exporting: %d of %d open", st.ExportsRunning, st.Sessions)
}
