package graph

import (
	"strings"
	"time"

	"github.com/graphmail/graphmail/internal/htmltext"
)

// noSubject is shown for messages whose subject is empty.
const noSubject = "(no subject)"

// Wire types: the subset of the Graph message resource this client reads.

type graphEmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type graphRecipient struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphMessage struct {
	ID               string           `json:"id"`
	Subject          string           `json:"subject"`
	From             *graphRecipient  `json:"from"`
	Sender           *graphRecipient  `json:"sender"`
	ToRecipients     []graphRecipient `json:"toRecipients"`
	CcRecipients     []graphRecipient `json:"ccRecipients"`
	ReceivedDateTime time.Time        `json:"receivedDateTime"`
	SentDateTime     time.Time        `json:"sentDateTime"`
	BodyPreview      string           `json:"bodyPreview"`
	Body             *graphBody       `json:"body"`
	IsRead           bool             `json:"isRead"`
	Importance       string           `json:"importance"`
	HasAttachments   bool             `json:"hasAttachments"`
	WebLink          string           `json:"webLink"`

	// Removed is set on delta entries for deleted messages.
	Removed *struct {
		Reason string `json:"reason"`
	} `json:"@removed"`
}

type graphMessagePage struct {
	Value     []graphMessage `json:"value"`
	NextLink  string         `json:"@odata.nextLink"`
	DeltaLink string         `json:"@odata.deltaLink"`
}

// Participant is one address on a message.
type Participant struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

func (p Participant) String() string {
	if p.Name != "" && p.Name != p.Address {
		return p.Name + " <" + p.Address + ">"
	}
	return p.Address
}

// Message is the normalized message handed to callers. Body is plain text
// regardless of what the service returned.
type Message struct {
	ID             string        `json:"id"`
	Subject        string        `json:"subject"`
	From           Participant   `json:"from"`
	To             []Participant `json:"to,omitempty"`
	Cc             []Participant `json:"cc,omitempty"`
	Received       time.Time     `json:"received"`
	Sent           time.Time     `json:"sent"`
	Preview        string        `json:"preview,omitempty"`
	Body           string        `json:"body,omitempty"`
	IsRead         bool          `json:"is_read"`
	Importance     string        `json:"importance,omitempty"`
	HasAttachments bool          `json:"has_attachments"`
	WebLink        string        `json:"web_link,omitempty"`
}

// Attachment is the summary of one message attachment. Content is never
// downloaded, only described.
type Attachment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	IsInline    bool   `json:"isInline"`
}

// User is the signed-in account as reported by /me.
type User struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// Address returns the best address for display.
func (u *User) Address() string {
	if u.Mail != "" {
		return u.Mail
	}
	return u.UserPrincipalName
}

// OutgoingMessage describes a message to send.
type OutgoingMessage struct {
	To      []string
	Cc      []string
	Bcc     []string
	Subject string
	Body    string
	// HTML marks Body as HTML instead of plain text.
	HTML bool
	// Importance is "low", "normal", or "high". Empty means the server
	// default.
	Importance string
}

// sendMailPayload builds the request body for the sendMail action.
func (o *OutgoingMessage) sendMailPayload() map[string]any {
	contentType := "Text"
	if o.HTML {
		contentType = "HTML"
	}
	msg := map[string]any{
		"subject": o.Subject,
		"body": map[string]any{
			"contentType": contentType,
			"content":     o.Body,
		},
		"toRecipients": recipientList(o.To),
	}
	if len(o.Cc) > 0 {
		msg["ccRecipients"] = recipientList(o.Cc)
	}
	if len(o.Bcc) > 0 {
		msg["bccRecipients"] = recipientList(o.Bcc)
	}
	if o.Importance != "" {
		msg["importance"] = o.Importance
	}
	return map[string]any{
		"message":         msg,
		"saveToSentItems": true,
	}
}

func recipientList(addrs []string) []map[string]any {
	out := make([]map[string]any, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, map[string]any{
			"emailAddress": map[string]any{"address": strings.TrimSpace(a)},
		})
	}
	return out
}

// normalize converts a wire message into the caller-facing form: empty
// subjects get a placeholder and HTML bodies are flattened to plain text.
func normalize(gm *graphMessage) Message {
	m := Message{
		ID:             gm.ID,
		Subject:        gm.Subject,
		Received:       gm.ReceivedDateTime,
		Sent:           gm.SentDateTime,
		Preview:        strings.TrimSpace(gm.BodyPreview),
		IsRead:         gm.IsRead,
		Importance:     gm.Importance,
		HasAttachments: gm.HasAttachments,
		WebLink:        gm.WebLink,
	}
	if m.Subject == "" {
		m.Subject = noSubject
	}

	from := gm.From
	if from == nil {
		from = gm.Sender
	}
	if from != nil {
		m.From = Participant{Name: from.EmailAddress.Name, Address: from.EmailAddress.Address}
	}
	m.To = participants(gm.ToRecipients)
	m.Cc = participants(gm.CcRecipients)

	if gm.Body != nil {
		if strings.EqualFold(gm.Body.ContentType, "html") {
			text, err := htmltext.Convert(gm.Body.Content)
			if err != nil {
				// Fall back to the preview rather than dropping the message.
				text = m.Preview
			}
			m.Body = text
		} else {
			m.Body = strings.TrimSpace(gm.Body.Content)
		}
	}
	return m
}

func participants(rs []graphRecipient) []Participant {
	if len(rs) == 0 {
		return nil
	}
	out := make([]Participant, 0, len(rs))
	for _, r := range rs {
		out = append(out, Participant{Name: r.EmailAddress.Name, Address: r.EmailAddress.Address})
	}
	return out
}

// matchesSender reports whether the message's sender matches any of the
// given case-insensitive substrings, over both address and display name.
func matchesSender(m *Message, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	addr := strings.ToLower(m.From.Address)
	name := strings.ToLower(m.From.Name)
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if strings.Contains(addr, p) || strings.Contains(name, p) {
			return true
		}
	}
	return false
}
