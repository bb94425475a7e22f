// Package template renders guardian-facing notification content per
// severity. Every channel body for one alert comes from a single Render
// call so the copy stays consistent across email, SMS, push and Telegram.
package template

import "fmt"

const (
	defaultDescription    = "A problem requiring attention was detected."
	defaultSMSDescription = "Attention required."
)

// Template holds the rendered bodies for every delivery channel.
type Template struct {
	Subject  string
	Text     string
	HTML     string
	SMS      string
	Telegram string
}

// Render builds the per-channel bodies for an alert. Unknown severities get
// the low-severity styling.
func Render(severity, title, description string) Template {
	tag := severityTag(severity)
	urgency := urgencyText(severity)

	if description == "" {
		description = defaultDescription
	}

	subject := fmt.Sprintf("%s %s - Care Monitoring", tag, title)
	text := fmt.Sprintf("%s\n\n%s\n\nUrgency: %s", title, description, urgency)
	html := fmt.Sprintf(`<div style="font-family: Arial, sans-serif; padding: 20px;">
  <h2 style="color: %s;">%s %s</h2>
  <p>%s</p>
  <p><strong>Urgency:</strong> %s</p>
  <p style="margin-top: 20px; color: #666; font-size: 12px;">Care Monitoring System</p>
</div>`, severityColor(severity), tag, title, description, urgency)
	sms := fmt.Sprintf("%s %s. %s Urgency: %s", tag, title, description, urgency)
	telegram := fmt.Sprintf("*%s %s*\n\n%s\n\nUrgency: %s", tag, title, description, urgency)

	return Template{
		Subject:  subject,
		Text:     text,
		HTML:     html,
		SMS:      sms,
		Telegram: telegram,
	}
}

// RenderSMS is Render with the terser SMS fallback description.
func RenderSMS(severity, title, description string) string {
	if description == "" {
		description = defaultSMSDescription
	}
	return Render(severity, title, description).SMS
}

func severityTag(severity string) string {
	switch severity {
	case "critical":
		return "[CRITICAL]"
	case "high":
		return "[WARNING]"
	case "medium":
		return "[NOTICE]"
	case "low":
		return "[INFO]"
	default:
		return "[INFO]"
	}
}

func urgencyText(severity string) string {
	switch severity {
	case "critical":
		return "Critical"
	case "high":
		return "High"
	case "medium":
		return "Medium"
	case "low":
		return "Low"
	default:
		return "Unknown"
	}
}

func severityColor(severity string) string {
	switch severity {
	case "critical":
		return "#ef4444"
	case "high":
		return "#f59e0b"
	case "medium":
		return "#3b82f6"
	case "low":
		return "#6b7280"
	default:
		return "#6b7280"
	}
}
