package server

import (
	"regexp"
	"strings"
)

// draft is one per-recipient section of the workflow's combined reply
// text.
type draft struct {
	To   string
	Body string
}

// Drafted replies are numbered sections of the form
// "1. To: alice@example.com\n\n<draft>".
var draftHeaderRe = regexp.MustCompile(`(?m)^\d+\. To: (\S+)$`)

// parseDrafts splits the combined reply text back into per-recipient
// drafts.
func parseDrafts(reply string) []draft {
	headers := draftHeaderRe.FindAllStringSubmatchIndex(reply, -1)
	drafts := make([]draft, 0, len(headers))
	for i, m := range headers {
		end := len(reply)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		drafts = append(drafts, draft{
			To:   reply[m[2]:m[3]],
			Body: strings.TrimSpace(reply[m[1]:end]),
		})
	}
	return drafts
}

// splitSubject pulls a leading "Subject: ..." line out of a draft. When
// the draft has none, a generic subject is used.
func splitSubject(body string) (subject, rest string) {
	line, remainder, found := strings.Cut(body, "\n")
	if found && strings.HasPrefix(line, "Subject: ") {
		return strings.TrimPrefix(line, "Subject: "), strings.TrimSpace(remainder)
	}
	return "Re: your email", body
}
