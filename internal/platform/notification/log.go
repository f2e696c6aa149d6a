package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// LogPublisher writes events to the log. It is used when no broker is
// configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "notification").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, evt Event) error {
	p.logger.Info().
		Str("event_id", evt.ID).
		Str("event_type", evt.Type).
		Str("tenant_id", evt.TenantID).
		Str("appointment_id", evt.AppointmentID).
		Str("patient_id", evt.PatientID).
		Str("date", evt.Date).
		Str("time", evt.Time).
		Str("message", evt.Message).
		Msg("appointment event")
	return nil
}
