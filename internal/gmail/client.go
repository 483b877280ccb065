package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"inboxpilot/internal/assistant"
	"inboxpilot/internal/google"
)

// Client wraps the Gmail Users service.
type Client struct {
	svc *gmail.UsersService
}

// NewClient creates a Gmail client authenticated with the cached OAuth
// token.
func NewClient(ctx context.Context) (*Client, error) {
	httpClient, err := google.HTTPClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("no valid Google OAuth token found: %w", err)
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Client{svc: svc.Users}, nil
}

// FetchInbox returns up to maxResults inbox messages as plain workflow
// messages, newest first as the API lists them. Messages that cannot be
// fetched individually are skipped; the listing itself failing is an
// error.
func (c *Client) FetchInbox(ctx context.Context, maxResults int64) ([]assistant.Message, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	var ids []string
	pageToken := ""
	for {
		remaining := maxResults - int64(len(ids))
		if remaining <= 0 {
			break
		}
		pageSize := remaining
		if pageSize > 100 {
			pageSize = 100
		}

		req := c.svc.Messages.List("me").Q("in:inbox").MaxResults(pageSize).Context(ctx)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}
		res, err := req.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list inbox: %w", err)
		}
		for _, m := range res.Messages {
			ids = append(ids, m.Id)
		}
		if res.NextPageToken == "" || int64(len(ids)) >= maxResults {
			break
		}
		pageToken = res.NextPageToken
	}

	messages := make([]assistant.Message, 0, len(ids))
	for _, id := range ids {
		msg, err := c.svc.Messages.Get("me", id).Format("full").Context(ctx).Do()
		if err != nil {
			continue
		}
		messages = append(messages, toWorkflowMessage(msg))
	}
	return messages, nil
}

// SendMessage sends a plain-text email and returns the sent message ID.
func (c *Client) SendMessage(ctx context.Context, to, subject, body string) (string, error) {
	if to == "" {
		return "", fmt.Errorf("recipient is required")
	}
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	if body == "" {
		return "", fmt.Errorf("body is required")
	}

	raw := base64.URLEncoding.EncodeToString([]byte(buildRawMessage(to, subject, body)))
	sent, err := c.svc.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	return sent.Id, nil
}

// buildRawMessage assembles an RFC 2822 plain-text message.
func buildRawMessage(to, subject, body string) string {
	var b strings.Builder
	b.WriteString("To: ")
	b.WriteString(to)
	b.WriteString("\r\n")
	b.WriteString("Subject: ")
	b.WriteString(encodeRFC2047(subject))
	b.WriteString("\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}

// encodeRFC2047 encodes a header value when it carries non-ASCII
// characters (like German umlauts).
func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}

// toWorkflowMessage converts an API message into the workflow's plain
// representation. The timestamp comes from the server-side internal
// date so it is always RFC 3339 parseable.
func toWorkflowMessage(msg *gmail.Message) assistant.Message {
	out := assistant.Message{
		From:    headerValue(msg, "From"),
		Subject: headerValue(msg, "Subject"),
		Body:    messageBody(msg),
	}
	if msg.InternalDate > 0 {
		out.Timestamp = time.UnixMilli(msg.InternalDate).UTC().Format(time.RFC3339)
	}
	return out
}

// headerValue extracts a header value from a message payload.
func headerValue(m *gmail.Message, header string) string {
	if m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, header) {
			return h.Value
		}
	}
	return ""
}

// messageBody extracts the plain-text body, preferring a text/plain
// part over the top-level payload and over text/html.
func messageBody(msg *gmail.Message) string {
	if msg.Payload == nil {
		return msg.Snippet
	}

	var encoded string
	if msg.Payload.MimeType == "text/plain" && msg.Payload.Body != nil && msg.Payload.Body.Data != "" {
		encoded = msg.Payload.Body.Data
	} else {
		walkParts(msg.Payload, func(part *gmail.MessagePart) {
			if encoded == "" && part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
				encoded = part.Body.Data
			}
		})
	}
	if encoded == "" {
		return msg.Snippet
	}
	return DecodeBody(encoded)
}

// walkParts recursively walks through message parts.
func walkParts(part *gmail.MessagePart, fn func(*gmail.MessagePart)) {
	if part == nil {
		return
	}
	fn(part)
	for _, subpart := range part.Parts {
		walkParts(subpart, fn)
	}
}
