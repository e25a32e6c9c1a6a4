// Package notifications handles desktop alerts for low and high readings
package notifications

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/mrcode/glucose-share/internal/models"
)

// Sender delivers one notification
type Sender func(title, message string) error

// BeeepSender sends a desktop notification through beeep
func BeeepSender(title, message string) error {
	return beeep.Notify(title, message, "")
}

// Manager handles glucose alerts and notifications
type Manager struct {
	settings      *models.Settings
	send          Sender
	now           func() time.Time
	lastAlertTime map[models.Status]time.Time
	mu            sync.Mutex
}

// NewManager creates a notification manager. A nil sender uses beeep.
func NewManager(settings *models.Settings, send Sender) *Manager {
	if send == nil {
		send = BeeepSender
	}
	return &Manager{
		settings:      settings,
		send:          send,
		now:           time.Now,
		lastAlertTime: make(map[models.Status]time.Time),
	}
}

// CheckAndNotify sends an alert for a LOW or HIGH reading. Repeats of the same
// status are held back for RepeatAlertMinutes, or until the reading returns
// to range when that is 0. It reports whether a notification was sent.
func (m *Manager) CheckAndNotify(reading *models.Reading) (bool, error) {
	if reading == nil {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if reading.Status == models.StatusInRange {
		// Episode over
		clear(m.lastAlertTime)
		return false, nil
	}

	if !m.shouldAlert(reading.Status) {
		return false, nil
	}

	if lastTime, ok := m.lastAlertTime[reading.Status]; ok {
		if m.settings.RepeatAlertMinutes == 0 {
			return false, nil
		}
		repeat := time.Duration(m.settings.RepeatAlertMinutes) * time.Minute
		if m.now().Sub(lastTime) < repeat {
			return false, nil
		}
	}

	title, message := m.formatNotification(reading)
	if err := m.send(title, message); err != nil {
		return false, fmt.Errorf("sending notification: %w", err)
	}

	m.lastAlertTime[reading.Status] = m.now()
	return true, nil
}

// shouldAlert reports whether alerts are enabled for the status
func (m *Manager) shouldAlert(status models.Status) bool {
	switch status {
	case models.StatusLow:
		return m.settings.EnableLowAlert
	case models.StatusHigh:
		return m.settings.EnableHighAlert
	default:
		return false
	}
}

// formatNotification creates the notification title and message
func (m *Manager) formatNotification(reading *models.Reading) (string, string) {
	value := m.settings.FormatValue(reading.Value) + " " + m.settings.Unit

	switch reading.Status {
	case models.StatusLow:
		return "⬇️ Low Glucose", fmt.Sprintf("Glucose is low: %s %s", value, reading.Trend.Symbol)
	case models.StatusHigh:
		return "⬆️ High Glucose", fmt.Sprintf("Glucose is high: %s %s", value, reading.Trend.Symbol)
	default:
		return "Glucose", fmt.Sprintf("Glucose: %s %s", value, reading.Trend.Symbol)
	}
}

// SendTestNotification sends a test notification
func (m *Manager) SendTestNotification() error {
	return m.send("Glucose Share", "Test notification - alerts are working!")
}
