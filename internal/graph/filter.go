package graph

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/graphmail/graphmail/internal/config"
)

// selectFields is the $select list for message requests. Asking for only
// what we render keeps responses small.
var selectFields = []string{
	"id", "subject", "from", "sender", "toRecipients", "ccRecipients",
	"receivedDateTime", "sentDateTime", "bodyPreview", "isRead",
	"importance", "hasAttachments", "webLink",
}

// ListOptions narrows a folder listing.
type ListOptions struct {
	// Top caps the number of messages returned. Zero means the server
	// default.
	Top int
	// Since restricts to messages after this instant. Zero means no
	// restriction.
	Since time.Time
	// Until restricts to messages before this instant.
	Until time.Time
	// UnreadOnly restricts to unread messages.
	UnreadOnly bool
	// Search is a free-text query. It cannot be combined with ordering or
	// date filters; when set the other restrictions except Top are ignored.
	Search string
	// ExcludeSenders drops messages from matching senders client-side,
	// after the page comes back.
	ExcludeSenders []string
	// IncludeBody asks for the full body instead of just the preview.
	IncludeBody bool
}

// timestampField returns the field listings of the folder sort and filter
// on: the sent folder orders by send time, everything else by receipt.
func timestampField(folder string) string {
	if folder == config.FolderSentItems {
		return "sentDateTime"
	}
	return "receivedDateTime"
}

// query renders the options as OData query parameters for the folder.
func (o *ListOptions) query(folder string) url.Values {
	v := url.Values{}

	fields := selectFields
	if o.IncludeBody {
		fields = append(append([]string(nil), selectFields...), "body")
	}
	v.Set("$select", strings.Join(fields, ","))

	if o.Top > 0 {
		v.Set("$top", fmt.Sprintf("%d", o.Top))
	}

	if o.Search != "" {
		// $search is incompatible with $filter and $orderby.
		v.Set("$search", fmt.Sprintf("%q", o.Search))
		return v
	}

	field := timestampField(folder)
	var filters []string
	if !o.Since.IsZero() {
		filters = append(filters, fmt.Sprintf("%s ge %s", field, o.Since.UTC().Format(time.RFC3339)))
	}
	if !o.Until.IsZero() {
		filters = append(filters, fmt.Sprintf("%s lt %s", field, o.Until.UTC().Format(time.RFC3339)))
	}
	if o.UnreadOnly {
		filters = append(filters, "isRead eq false")
	}
	if len(filters) > 0 {
		v.Set("$filter", strings.Join(filters, " and "))
	}
	v.Set("$orderby", field+" desc")
	return v
}
