// Package message turns raw RFC 5322 bytes into the subject, sender,
// date and body text the extractor works on. Decoding is permissive:
// malformed input degrades to empty fields instead of failing, so one
// broken email never blocks a scrape.
package message

import (
	"bytes"
	"io"
	"strings"
	"time"

	// Register charset decoders (windows-1252, iso-8859-*, koi8-r, etc.)
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// Decoded holds the parts of a message the order extractor needs.
type Decoded struct {
	Subject string
	Sender  string
	Date    time.Time

	// HTML is the first text/html part, transfer-encoding and charset
	// decoded. Empty when the message has no HTML part.
	HTML string

	// Text is the first text/plain part, kept for diagnostics and as
	// the body fallback when no HTML part exists.
	Text string
}

// Body returns the best available body: HTML when present, else plain
// text.
func (d Decoded) Body() string {
	if d.HTML != "" {
		return d.HTML
	}
	return d.Text
}

// Decode parses a raw message. MIME-encoded subject words are decoded,
// multipart bodies are walked preferring text/html, and declared
// charsets are converted to UTF-8. Decode never fails: input that
// cannot be parsed as MIME is returned as a bare body.
func Decode(raw []byte) Decoded {
	var d Decoded

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		body := string(raw)
		if looksLikeHTML(body) {
			d.HTML = body
		} else {
			d.Text = body
		}
		return d
	}
	defer mr.Close()

	d.Subject, _ = mr.Header.Subject()
	if date, err := mr.Header.Date(); err == nil {
		d.Date = date
	}
	if addrs, err := mr.Header.AddressList("From"); err == nil && len(addrs) > 0 {
		d.Sender = addrs[0].Address
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/html"):
			if d.HTML == "" {
				d.HTML = string(body)
			}
		case strings.HasPrefix(contentType, "text/plain"):
			if d.Text == "" {
				d.Text = string(body)
			}
		}
	}

	return d
}

func looksLikeHTML(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "<html") || strings.Contains(lower, "<body")
}
