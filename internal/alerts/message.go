package alerts

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"firealert/internal/models"
)

// NotAvailable is rendered in place of an unknown video timestamp.
const NotAvailable = "N/A"

// SendTimeLayout formats the wall-clock send time.
const SendTimeLayout = "2006-01-02 15:04:05"

var scoreTitles = map[string]string{
	models.ScoreFire:   "🔥 Fire",
	models.ScoreSmoke:  "💨 Smoke",
	models.ScoreHazard: "⚠️ Hazard",
}

var messageTemplate = template.Must(template.New("emergency").Parse(`<html>
<body>
    <h2 style="color: #ff3333;">🚨 EMERGENCY: Fire Detected</h2>
    <p><strong>Sent at:</strong> {{.SentAt}}</p>
    <p><strong>Job ID:</strong> {{.JobID}}</p>
    <p><strong>Video time:</strong> {{.Timestamp}}</p>

    <h3>Detection scores:</h3>
    <ul>
    {{- range .Scores}}
        <li><strong>{{.Title}}:</strong> {{.Percent}}</li>
    {{- end}}
    </ul>

    <p style="color: #ff3333; font-weight: bold;">
        Call 119 immediately and evacuate to a safe place!
    </p>

    <hr>
    <p style="font-size: 12px; color: #666;">
        This alert was sent automatically by the fire and smoke detection system.
    </p>
</body>
</html>
`))

type scoreLine struct {
	Title   string
	Percent string
}

type messageData struct {
	SentAt    string
	JobID     string
	Timestamp string
	Scores    []scoreLine
}

// Subject returns the e-mail subject for a job.
func Subject(jobID string) string {
	return fmt.Sprintf("🚨 [EMERGENCY] Fire detection alert - Job %s", jobID)
}

// FormatPercent renders a [0,1] score as a percentage with one decimal.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

// FormatTimestamp renders the video offset in seconds, or NotAvailable.
func FormatTimestamp(ts *float64) string {
	if ts == nil {
		return NotAvailable
	}
	return strconv.FormatFloat(*ts, 'f', -1, 64) + "s"
}

// RenderHTML renders the notification body. Job IDs are HTML-escaped.
func RenderHTML(nc NotificationContext, sentAt time.Time) (string, error) {
	data := messageData{
		SentAt:    sentAt.Format(SendTimeLayout),
		JobID:     nc.JobID,
		Timestamp: FormatTimestamp(nc.Timestamp),
		Scores:    make([]scoreLine, 0, len(models.ScoreLabels)),
	}
	for _, label := range models.ScoreLabels {
		data.Scores = append(data.Scores, scoreLine{
			Title:   scoreTitles[label],
			Percent: FormatPercent(nc.Scores[label]),
		})
	}

	var buf bytes.Buffer
	if err := messageTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render notification: %w", err)
	}
	return buf.String(), nil
}
