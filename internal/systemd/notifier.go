// Package systemd reports capture progress to the service manager with
// sd_notify. Every call is a no-op when NOTIFY_SOCKET is unset.
package systemd

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/smazurov/deskcap/internal/capture"
	"github.com/smazurov/deskcap/internal/events"
)

// Notifier translates capture state changes into sd_notify messages and pets
// the watchdog while the pipeline runs.
type Notifier struct {
	logger *slog.Logger
	notify func(state string) (bool, error)

	mu       sync.Mutex
	watchdog context.CancelFunc
}

// NewNotifier creates a notifier that talks to $NOTIFY_SOCKET.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		logger: logger,
		notify: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
	}
}

// Subscribe attaches the notifier to bus and returns the unsubscribe function.
func (n *Notifier) Subscribe(bus *events.Bus) func() {
	return bus.Subscribe(n.HandleStateChange)
}

// HandleStateChange sends the messages for one transition.
func (n *Notifier) HandleStateChange(e events.CaptureStateChangedEvent) {
	switch capture.State(e.To) {
	case capture.StateInitializing:
		n.send("STATUS=Opening capture source")
	case capture.StateRunning:
		n.send(daemon.SdNotifyReady, "STATUS=Capturing")
		n.startWatchdog()
	case capture.StateDraining:
		n.stopWatchdog()
		n.send(daemon.SdNotifyStopping, "STATUS=Draining encoder")
	case capture.StateStopped:
		n.stopWatchdog()
		n.send("STATUS=Stopped")
	case capture.StateFailed:
		n.stopWatchdog()
		n.send(daemon.SdNotifyStopping, fmt.Sprintf("STATUS=Failed: %s", e.Code))
	}
}

// Close stops the watchdog loop.
func (n *Notifier) Close() {
	n.stopWatchdog()
}

func (n *Notifier) send(states ...string) {
	for _, state := range states {
		if state == "" {
			continue
		}
		sent, err := n.notify(state)
		if err != nil {
			n.logger.Warn("sd_notify failed", "state", state, "error", err)
			return
		}
		if sent {
			n.logger.Debug("sd_notify sent", "state", state)
		}
	}
}

func (n *Notifier) startWatchdog() {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.watchdog != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	n.watchdog = cancel

	go n.petWatchdog(ctx, interval/2)
}

func (n *Notifier) petWatchdog(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}

func (n *Notifier) stopWatchdog() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.watchdog != nil {
		n.watchdog()
		n.watchdog = nil
	}
}
