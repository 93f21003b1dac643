// Package ui provides the system tray surface of the agent: a status line
// fed by pipeline progress, a cancel action for the running export and a
// quit entry. Headless deployments skip it entirely.
package ui

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/Farooqbasha008/advideo/internal/bundle"
	"github.com/Farooqbasha008/advideo/internal/exporter"
)

type Tray struct {
	exporter *exporter.Exporter
	bundler  *bundle.Exporter
	logger   *slog.Logger

	statusItem *systray.MenuItem
	cancelItem *systray.MenuItem

	mu sync.Mutex

	onQuit func()
}

type TrayConfig struct {
	Exporter *exporter.Exporter
	Bundler  *bundle.Exporter
	Logger   *slog.Logger
	OnQuit   func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		exporter: cfg.Exporter,
		bundler:  cfg.Bundler,
		logger:   cfg.Logger,
		onQuit:   cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("AdVideo")
	systray.SetTooltip("AdVideo Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	systray.AddSeparator()

	t.cancelItem = systray.AddMenuItem("Cancel Export", "Cancel the running export")
	t.cancelItem.Disable()

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit AdVideo Agent")

	// Progress observers fire from the pipeline goroutines.
	t.exporter.Subscribe(func(stage string, percent int) {
		t.UpdateStatus(fmt.Sprintf("Exporting: %s %d%%", stage, percent))
	})
	t.bundler.Subscribe(func(ev bundle.Event) {
		t.UpdateStatus(fmt.Sprintf("Bundling: scene %d %s %s", ev.SceneIndex+1, ev.AssetType, ev.Status))
	})

	go func() {
		for {
			select {
			case <-t.cancelItem.ClickedCh:
				t.handleCancel()
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
	t.logger.Info("system tray exiting")
}

func (t *Tray) handleCancel() {
	if _, active := t.exporter.Active(); !active {
		return
	}
	t.logger.Info("export cancel requested from tray")
	t.exporter.Cancel()
}

// UpdateStatus refreshes the status line and toggles the cancel entry based
// on whether an export is running.
func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.statusItem == nil {
		return
	}
	t.statusItem.SetTitle("Status: " + status)

	if _, active := t.exporter.Active(); active {
		t.cancelItem.Enable()
	} else {
		t.cancelItem.Disable()
		t.statusItem.SetTitle("Status: Idle")
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}
