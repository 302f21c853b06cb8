package notify

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/Fiszcz/OLX-flats-notificator/app/classify"
	"github.com/Fiszcz/OLX-flats-notificator/app/listing"
)

const failedTransportText = "Cannot check ☹️"

type Attachment struct {
	Path      string
	ContentID string
}

type Message struct {
	Subject     string
	HTML        string
	Attachments []Attachment
	ListingIDs  []string
}

// NewMessage renders one classified listing.
func NewMessage(v classify.Verdict) Message {
	var buf bytes.Buffer

	writeSection(&buf, "Time of Advertisement", html.EscapeString(v.Record.PublishedAt.String()))
	writeSection(&buf, "Location", html.EscapeString(v.LocationText))
	writeSection(&buf, "Website", fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(v.Record.ID), html.EscapeString(v.Record.ID)))
	writeSection(&buf, "Transport", transportHTML(v))

	if v.Rent > 0 || v.HasPrice {
		var costs []string
		if v.HasPrice {
			costs = append(costs, "Price: "+html.EscapeString(v.Price.String()))
		}
		if v.Rent > 0 {
			costs = append(costs, "Rent: "+html.EscapeString(v.Rent.String()))
		}
		writeSection(&buf, "Costs", strings.Join(costs, "<br>"))
	}

	if len(v.Reasons) > 0 {
		writeSection(&buf, "Worse because", html.EscapeString(strings.Join(v.Reasons, "; ")))
	}

	writeSection(&buf, "Description", html.EscapeString(description(v)))

	msg := Message{
		Subject:    subject(v),
		ListingIDs: []string{v.Record.ID},
	}

	if path := v.Detail.ScreenshotPath; path != "" {
		fmt.Fprintf(&buf, "<img src=\"cid:%s\">\n", html.EscapeString(path))
		msg.Attachments = []Attachment{{Path: path, ContentID: path}}
	}

	msg.HTML = buf.String()
	return msg
}

// Compose joins several messages into one under a common subject.
func Compose(messages []Message, subject string) Message {
	var buf bytes.Buffer
	composed := Message{Subject: subject}

	for _, m := range messages {
		fmt.Fprintf(&buf, "<h2>%s</h2>\n", html.EscapeString(m.Subject))
		buf.WriteString(m.HTML)
		composed.Attachments = append(composed.Attachments, m.Attachments...)
		composed.ListingIDs = append(composed.ListingIDs, m.ListingIDs...)
	}

	composed.HTML = buf.String()
	return composed
}

func subject(v classify.Verdict) string {
	var prefix string
	switch {
	case v.IsPerfectLocation:
		prefix = "[PERFECT LOCATION] "
	default:
		for _, t := range v.Transport {
			if !t.Failed() {
				prefix += fmt.Sprintf("[%s] ", t.DurationText)
			}
		}
	}
	return fmt.Sprintf("%s[%s] - %s", prefix, v.Record.PublishedAt, v.Record.Title)
}

func transportHTML(v classify.Verdict) string {
	if v.IsPerfectLocation {
		return "Perfect Location 👌🤩"
	}
	if len(v.Transport) == 0 {
		return "Not checked"
	}

	var buf bytes.Buffer
	for _, t := range v.Transport {
		icon := "🤬🕑"
		text := t.DurationText
		switch {
		case t.Failed():
			icon = ""
			text = failedTransportText
		case !t.ExceedsBudget():
			icon = "👍🕑"
		}
		fmt.Fprintf(&buf, "<p>%s %s to %s</p>\n", icon, html.EscapeString(text), html.EscapeString(t.Destination))
		if len(t.Steps) > 0 {
			buf.WriteString("<ol>\n")
			for _, step := range t.Steps {
				// Directions step instructions are HTML already
				fmt.Fprintf(&buf, "<li>%s</li>\n", step)
			}
			buf.WriteString("</ol>\n")
		}
	}
	return buf.String()
}

func description(v classify.Verdict) string {
	return listing.Description(v.Record, v.Detail)
}

func writeSection(buf *bytes.Buffer, title, body string) {
	fmt.Fprintf(buf, "<h3>%s:</h3>\n<div>%s</div>\n", title, body)
}
