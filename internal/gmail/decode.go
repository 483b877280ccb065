package gmail

import (
	"encoding/base64"
	"io"
	"mime"
	"mime/quotedprintable"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DecodeBody decodes a message body of unknown encoding. Decoders are
// tried in order and the first plausible result wins; undecodable input
// comes back unchanged rather than failing the fetch.
func DecodeBody(data string) string {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return data
	}

	if out, err := base64.URLEncoding.DecodeString(trimmed); err == nil && plausibleText(string(out)) {
		return string(out)
	}
	if out, err := base64.RawURLEncoding.DecodeString(trimmed); err == nil && plausibleText(string(out)) {
		return string(out)
	}
	if out, err := base64.StdEncoding.DecodeString(trimmed); err == nil && plausibleText(string(out)) {
		return string(out)
	}
	if out, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(data))); err == nil {
		if s := string(out); s != data && plausibleText(s) {
			return s
		}
	}
	if strings.Contains(data, "=?") {
		dec := new(mime.WordDecoder)
		if out, err := dec.DecodeHeader(data); err == nil && plausibleText(out) {
			return out
		}
	}
	return data
}

// plausibleText reports whether s looks like decoded human text: valid
// UTF-8 with a dominant share of printable runes. Binary garbage from a
// coincidentally valid base64 decode fails this check.
func plausibleText(s string) bool {
	if s == "" || !utf8.ValidString(s) {
		return false
	}
	var printable, total int
	for _, r := range s {
		total++
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	return printable*10 >= total*9
}
