package notifier

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"sjsage522/flightdealworker/internal/offer"
	"sjsage522/flightdealworker/pkg/errors"
)

const (
	noPrice       = "מחיר לא פורסם"
	noDates       = "תאריכים לא זמינים"
	snippetRunes  = 200
	displayLayout = "02/01/2006 15:04"
)

// Renderer renders notifications as RTL HTML emails with a plain text alternative
type Renderer struct {
	tmpl     *template.Template
	location *time.Location
}

// NewRenderer creates a renderer that shows times in loc
func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	r := &Renderer{location: loc}
	r.tmpl = template.Must(template.New("email").Funcs(template.FuncMap{
		"price":   formatPrice,
		"dates":   formatDates,
		"snippet": func(s string) string { return offer.Truncate(s, snippetRunes) },
		"when":    r.formatTime,
		"minutes": func(d time.Duration) int { return int(d / time.Minute) },
	}).Parse(emailHTMLTemplate))
	return r
}

// Render produces the message for n. It reports false when n has nothing to send.
func (r *Renderer) Render(n Notification) (*RenderedMessage, bool, error) {
	if n.Empty() {
		return nil, false, nil
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, n); err != nil {
		return nil, false, errors.NewNotification("render", "execute HTML template", err)
	}

	return &RenderedMessage{
		Subject: Subject(n),
		HTML:    buf.String(),
		Text:    r.renderPlainText(n),
	}, true, nil
}

// Subject picks the subject line from the counts in n
func Subject(n Notification) string {
	switch {
	case len(n.New) > 0 && len(n.Changed) > 0:
		return fmt.Sprintf("🔥 %d טיסות חדשות ו-%d ירידות מחיר!", len(n.New), len(n.Changed))
	case len(n.New) == 1:
		return fmt.Sprintf("✈️ טיסה חדשה ל%s נמצאה!", n.New[0].Destination)
	case len(n.New) > 1:
		return fmt.Sprintf("✈️ %d טיסות חדשות נמצאו!", len(n.New))
	default:
		return fmt.Sprintf("💰 %d ירידות מחיר מעולות!", len(n.Changed))
	}
}

func (r *Renderer) renderPlainText(n Notification) string {
	var sb strings.Builder

	sb.WriteString("עדכון טיסות TusTus - " + r.formatTime(n.CheckedAt) + "\n")
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")
	sb.WriteString(fmt.Sprintf("טיסות חדשות: %d | ירידות מחיר: %d | סה\"כ טיסות: %d\n\n",
		len(n.New), len(n.Changed), n.Stats.TotalTracked))

	if len(n.New) > 0 {
		sb.WriteString("טיסות חדשות\n")
		sb.WriteString(strings.Repeat("-", 20) + "\n")
		for _, o := range n.New {
			sb.WriteString(fmt.Sprintf("• %s - %s\n", o.Destination, formatPrice(o.Price)))
			sb.WriteString(fmt.Sprintf("  תאריכים: %s\n", formatDates(o.Dates)))
			if o.RawText != "" {
				sb.WriteString("  " + offer.Truncate(o.RawText, snippetRunes) + "\n")
			}
		}
		sb.WriteString("\n")
	}

	if len(n.Changed) > 0 {
		sb.WriteString("ירידות מחיר\n")
		sb.WriteString(strings.Repeat("-", 20) + "\n")
		for _, c := range n.Changed {
			sb.WriteString(fmt.Sprintf("• %s: %d₪ ← %d₪ (חיסכון %d₪)\n",
				c.Destination, c.CurrentPrice, c.PreviousPrice, c.Discount))
		}
		sb.WriteString("\n")
	}

	if n.SourceURL != "" {
		sb.WriteString(n.SourceURL + "\n")
	}
	if n.Interval > 0 {
		sb.WriteString(fmt.Sprintf("המערכת בודקת עדכונים באופן אוטומטי כל %d דקות\n", int(n.Interval/time.Minute)))
	}
	return sb.String()
}

func (r *Renderer) formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(r.location).Format(displayLayout)
}

func formatPrice(p *int) string {
	if p == nil {
		return noPrice
	}
	return strconv.Itoa(*p) + "₪"
}

func formatDates(dates []string) string {
	if len(dates) == 0 {
		return noDates
	}
	return strings.Join(dates, ", ")
}
