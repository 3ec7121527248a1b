// Package notification renders appointment notices and fans them out to
// live connections and email. Persistence of the inbox lives in the
// notification domain package; this package only delivers.
package notification

import (
	"fmt"
	"strings"
	"sync"
)

// Built-in template ids.
const (
	TemplateAppointmentRequested = "appointment-requested"
	TemplateBookingReceived      = "booking-received"
	TemplateAppointmentConfirmed = "appointment-confirmed"
	TemplateAppointmentCancelled = "appointment-cancelled"
)

// Template is a titled message with {{key}} placeholders. Level is the
// notification type the rendered notice carries (info, success, warning,
// error).
type Template struct {
	ID    string
	Title string
	Body  string
	Level string
}

// TemplateEngine holds templates by id.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:    TemplateAppointmentRequested,
			Title: "New appointment request",
			Body:  "{{patient_name}} requested an appointment on {{date}} from {{start}} to {{end}}.",
			Level: "info",
		},
		{
			ID:    TemplateBookingReceived,
			Title: "Appointment request received",
			Body:  "Your appointment with {{dentist_name}} on {{date}} at {{start}} is pending confirmation.",
			Level: "info",
		},
		{
			ID:    TemplateAppointmentConfirmed,
			Title: "Appointment confirmed",
			Body:  "Your appointment with {{dentist_name}} on {{date}} at {{start}} has been confirmed.",
			Level: "success",
		},
		{
			ID:    TemplateAppointmentCancelled,
			Title: "Appointment cancelled",
			Body:  "The appointment on {{date}} at {{start}} was cancelled by {{cancelled_by}}.{{reason_note}}",
			Level: "warning",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Rendered is a template filled with data.
type Rendered struct {
	Title   string
	Message string
	Level   string
}

// Render replaces {{key}} placeholders in the title and body. Keys missing
// from data are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (Rendered, error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return Rendered{}, fmt.Errorf("template %q not found", templateID)
	}

	title, body := t.Title, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		title = strings.ReplaceAll(title, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return Rendered{Title: title, Message: body, Level: t.Level}, nil
}
