package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/graphmail/graphmail/internal/auth"
	"github.com/graphmail/graphmail/internal/graph"
)

// app bundles the wired-up components the mail commands need.
type app struct {
	manager *auth.Manager
	client  *graph.Client
	tracker *graph.ChangeTracker
}

// newApp validates the configuration and builds the component graph. Every
// command that talks to the mail API goes through here, so a broken config
// fails before any network traffic.
func newApp() (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	manager := auth.NewManager(cfg, logger)
	client := graph.NewClient(manager, logger,
		graph.WithHTTPDoer(&http.Client{Timeout: cfg.HTTPTimeout}))
	cursors := graph.NewCursorStore(cfg.DeltaCursorPath)

	return &app{
		manager: manager,
		client:  client,
		tracker: graph.NewChangeTracker(client, cursors, logger),
	}, nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderMessages prints a message listing as an aligned table.
func renderMessages(w io.Writer, msgs []graph.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tFROM\tSUBJECT\tID")
	for i := range msgs {
		m := &msgs[i]
		subject := m.Subject
		if !m.IsRead {
			subject = "* " + subject
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			formatTime(messageTime(m)),
			truncate(m.From.String(), 30),
			truncate(subject, 60),
			m.ID)
	}
	tw.Flush()
}

// renderMessage prints a full message with headers and body.
func renderMessage(w io.Writer, m *graph.Message) {
	fmt.Fprintf(w, "From:    %s\n", m.From)
	if len(m.To) > 0 {
		fmt.Fprintf(w, "To:      %s\n", joinParticipants(m.To))
	}
	if len(m.Cc) > 0 {
		fmt.Fprintf(w, "Cc:      %s\n", joinParticipants(m.Cc))
	}
	fmt.Fprintf(w, "Date:    %s\n", formatTime(messageTime(m)))
	fmt.Fprintf(w, "Subject: %s\n", m.Subject)
	if m.HasAttachments {
		fmt.Fprintln(w, "Attachments: yes")
	}
	fmt.Fprintln(w)
	if m.Body != "" {
		fmt.Fprintln(w, m.Body)
	} else if m.Preview != "" {
		fmt.Fprintln(w, m.Preview)
	}
}

func joinParticipants(ps []graph.Participant) string {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, ", ")
}

// messageTime picks the timestamp that makes sense for the message: sent
// mail has no receipt time.
func messageTime(m *graph.Message) time.Time {
	if !m.Received.IsZero() {
		return m.Received
	}
	return m.Sent
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
