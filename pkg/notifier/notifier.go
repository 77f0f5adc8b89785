// Package notifier provides desktop notifications for packaging runs
package notifier

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/uberpack/uberpack/pkg/logger"
	"github.com/uberpack/uberpack/pkg/types"
)

// SendFunc delivers one desktop notification
type SendFunc func(title, message string) error

// BeepFunc plays the alert sound
type BeepFunc func() error

// PackageNotifier reports packaging outcomes
type PackageNotifier struct {
	enabled      bool
	successSound string
	failureSound string
	send         SendFunc
	beep         BeepFunc
	logger       logger.Logger
}

// Config represents notification configuration
type Config struct {
	Enabled      bool
	SuccessSound string
	FailureSound string
}

// FromTypes converts the config file section into a Config
func FromTypes(nc *types.NotificationConfig) Config {
	if nc == nil {
		return Config{}
	}
	return Config{
		Enabled:      nc.Enabled != nil && *nc.Enabled,
		SuccessSound: nc.SuccessSound,
		FailureSound: nc.FailureSound,
	}
}

// New creates a notifier backed by beeep
func New(config Config, log logger.Logger) *PackageNotifier {
	if log == nil {
		log = logger.Discard()
	}
	return &PackageNotifier{
		enabled:      config.Enabled,
		successSound: config.SuccessSound,
		failureSound: config.FailureSound,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		beep: func() error {
			return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
		},
		logger: log,
	}
}

// WithSender replaces the delivery functions
func (n *PackageNotifier) WithSender(send SendFunc, beep BeepFunc) *PackageNotifier {
	n.send = send
	n.beep = beep
	return n
}

// Enabled reports whether notifications are delivered
func (n *PackageNotifier) Enabled() bool {
	return n.enabled
}

// NotifyPackageStart notifies that a rebuild was triggered
func (n *PackageNotifier) NotifyPackageStart(archivePath string, changed int) {
	if !n.enabled {
		return
	}

	message := fmt.Sprintf("Rebuilding %s (%d changed)", filepath.Base(archivePath), changed)
	n.sendNotification("📦 uberpack", message, "")
}

// NotifyPackageSuccess notifies that an archive was committed
func (n *PackageNotifier) NotifyPackageSuccess(archivePath string, duration time.Duration) {
	if !n.enabled {
		return
	}

	message := fmt.Sprintf("%s assembled in %s", filepath.Base(archivePath), formatDuration(duration))
	n.sendNotification("✅ Archive Ready", message, n.successSound)
}

// NotifyPackageFailure notifies that a run failed
func (n *PackageNotifier) NotifyPackageFailure(archivePath string, err error) {
	if !n.enabled {
		return
	}

	message := fmt.Sprintf("%s: %v", filepath.Base(archivePath), err)
	n.sendNotification("❌ Packaging Failed", message, n.failureSound)
}

func (n *PackageNotifier) sendNotification(title, message, soundName string) {
	if err := n.send(title, message); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
		// Headless hosts have no notification daemon
		n.logger.Info(fmt.Sprintf("%s: %s", title, message))
	}

	if soundName != "" && n.beep != nil {
		if err := n.beep(); err != nil {
			n.logger.Debug("Failed to play sound", logger.WithField("error", err))
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
