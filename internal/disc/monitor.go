// Package disc watches the optical drive for media insertion and resolves
// the inserted volume's label so it can be queued.
package disc

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"platter/internal/logging"
)

// InsertEvent describes detected media in the configured drive.
type InsertEvent struct {
	Device string
	Volume string
}

// Handler is invoked for each detected insertion.
type Handler func(ctx context.Context, event InsertEvent)

// Monitor listens for udev netlink events on the configured drive. This
// avoids both polling the device and shipping udev rules that invoke the
// CLI as root.
type Monitor struct {
	device  string
	logger  *slog.Logger
	handler Handler
	label   LabelFunc

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewMonitor builds a monitor for the given device. Returns nil when device
// is empty; a nil monitor is safe to Start and Stop.
func NewMonitor(device string, logger *slog.Logger, handler Handler) *Monitor {
	device = strings.TrimSpace(device)
	if device == "" {
		return nil
	}
	return &Monitor{
		device:  device,
		logger:  logging.NewComponentLogger(logger, "disc-monitor"),
		handler: handler,
		label:   ReadLabel,
	}
}

// Start begins listening for insertion events. A netlink connection failure
// is logged and swallowed so the daemon still runs with manual submission.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("netlink connect failed; automatic disc detection unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.loop(ctx, quit)

	m.logger.Info("disc monitor started",
		logging.String("device", m.device),
		logging.String(logging.FieldEventType, "disc_monitor_started"),
	)
	return nil
}

// Stop shuts the monitor down. Safe on nil and unstarted monitors.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) loop(ctx context.Context, quit <-chan struct{}) {
	events := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(events, errs, insertionMatcher())
	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-events:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
			)
		}
	}
}

// insertionMatcher selects media-present block events:
// SUBSYSTEM=block, ID_CDROM=1, ID_CDROM_MEDIA=1, ACTION=change|add.
func insertionMatcher() netlink.Matcher {
	action := "change|add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM":      "block",
			"ID_CDROM":       "1",
			"ID_CDROM_MEDIA": "1",
		},
	})
	return rules
}

func (m *Monitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	devname := deviceNameFromEvent(uevent)
	if devname == "" || devname != m.device {
		return
	}

	volume, err := m.label(ctx, devname)
	if err != nil {
		m.logger.Warn("failed to read volume label",
			logging.Error(err),
			logging.String("device", devname),
			logging.String(logging.FieldEventType, "disc_label_failed"),
		)
		return
	}

	m.logger.Info("disc inserted",
		logging.String("device", devname),
		logging.String("volume", volume),
		logging.String(logging.FieldEventType, "disc_detected"),
	)
	if m.handler != nil {
		m.handler(ctx, InsertEvent{Device: devname, Volume: volume})
	}
}

func deviceNameFromEvent(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/dev/") {
			return "/dev/" + devname
		}
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
