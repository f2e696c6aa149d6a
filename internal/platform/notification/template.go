package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Template is the patient-facing text attached to an event type.
type Template struct {
	EventType string `json:"event_type"`
	Body      string `json:"body"`
}

// TemplateEngine renders {{key}} placeholders in per-event templates.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates
// pre-registered.
func NewTemplateEngine(clinicName string) *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	builtIn := []Template{
		{
			EventType: AppointmentBooked,
			Body:      clinicName + ": your {{consultation_type}} appointment is set on {{date}} at {{time}}. Please arrive 15 minutes early.",
		},
		{
			EventType: AppointmentCancelled,
			Body:      clinicName + ": your appointment on {{date}} at {{time}} has been cancelled. {{reason}}",
		},
		{
			EventType: AppointmentCompleted,
			Body:      clinicName + ": thank you for visiting on {{date}}. Keep your prescription slip for follow-up.",
		},
	}
	for _, t := range builtIn {
		e.RegisterTemplate(t)
	}
	return e
}

// RegisterTemplate adds or replaces the template for an event type.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.EventType] = &t
}

// Render fills the template for eventType. Keys absent from data are left
// as-is.
func (e *TemplateEngine) Render(eventType string, data map[string]string) (string, error) {
	e.mu.RLock()
	t, ok := e.templates[eventType]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template %q not found", eventType)
	}

	body := t.Body
	for k, v := range data {
		body = strings.ReplaceAll(body, "{{"+k+"}}", v)
	}
	return strings.TrimSpace(body), nil
}

// Dispatcher stamps events with an id, time and rendered message before
// handing them to the underlying publisher.
type Dispatcher struct {
	next      Publisher
	templates *TemplateEngine
	now       func() time.Time
}

func NewDispatcher(next Publisher, templates *TemplateEngine) *Dispatcher {
	return &Dispatcher{next: next, templates: templates, now: time.Now}
}

func (d *Dispatcher) Publish(ctx context.Context, evt Event) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = d.now().UTC()
	}
	if evt.Message == "" && d.templates != nil {
		msg, err := d.templates.Render(evt.Type, map[string]string{
			"consultation_type": strings.ReplaceAll(evt.ConsultationType, "_", " "),
			"date":              evt.Date,
			"time":              evt.Time,
			"reason":            evt.Reason,
		})
		if err == nil {
			evt.Message = msg
		}
	}
	return d.next.Publish(ctx, evt)
}
