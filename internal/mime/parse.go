// Package mime decodes raw message blobs into normalized form: header
// extraction with documented defaults, plain-text-preferred body
// selection, and permissive date parsing.
package mime

import (
	"bytes"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/rotisserie/eris"
)

// Defaults substituted for absent headers.
const (
	NoSubject   = "(No Subject)"
	UnknownFrom = "(Unknown)"
)

// Message is a decoded message ready for normalization.
type Message struct {
	Subject  string
	FromAddr string
	Date     string // ISO calendar date, empty when unparseable
	BodyText string
}

// Parse decodes a full transport-encoded (RFC 5322) message. The body is
// the plain-text part when one exists, else the first HTML part stripped
// to visible text.
func Parse(raw []byte) (*Message, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "read envelope")
	}

	msg := &Message{
		Subject:  env.GetHeader("Subject"),
		FromAddr: env.GetHeader("From"),
	}
	if msg.Subject == "" {
		msg.Subject = NoSubject
	}
	if msg.FromAddr == "" {
		msg.FromAddr = UnknownFrom
	}

	msg.Date = ParseDate(env.GetHeader("Date"))

	if env.Text != "" {
		msg.BodyText = env.Text
	} else if env.HTML != "" {
		msg.BodyText = StripHTML(env.HTML)
	}

	return msg, nil
}

// dateFormats lists common email date formats for ParseDate.
var dateFormats = []string{
	time.RFC1123Z,                    // "Mon, 02 Jan 2006 15:04:05 -0700"
	time.RFC1123,                     // "Mon, 02 Jan 2006 15:04:05 MST"
	"Mon, 2 Jan 2006 15:04:05 -0700", // Single-digit day
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700", // No weekday
	"2 Jan 2006 15:04:05 MST",
	"02 Jan 2006 15:04:05 -0700",
	"02 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	time.RFC850,
	time.ANSIC,
	time.UnixDate,
	"Mon, 02 Jan 2006 15:04:05 -0700 (MST)", // With parenthesized TZ
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05-07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate normalizes a date header to an ISO calendar date (YYYY-MM-DD).
// Returns "" when no format matches; the record is stored with a null date
// rather than rejected.
func ParseDate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}

	// Strip a trailing timezone name in parentheses like "(UTC)" but keep
	// the numeric offset for parsing.
	baseStr := s
	if idx := strings.LastIndex(s, "("); idx > 0 {
		baseStr = strings.TrimSpace(s[:idx])
	}

	for _, format := range dateFormats {
		if t, err := time.Parse(format, baseStr); err == nil {
			return t.UTC().Format("2006-01-02")
		}
	}
	if baseStr != s {
		for _, format := range dateFormats {
			if t, err := time.Parse(format, s); err == nil {
				return t.UTC().Format("2006-01-02")
			}
		}
	}
	return ""
}

// Block tags that should create line breaks when stripped
var blockTagRe = regexp.MustCompile(`(?i)<(/?)(p|div|br|hr|h[1-6]|li|tr|td|th|blockquote|pre|table|ul|ol|dl|dt|dd)[^>]*>`)

// Content-stripping tags need separate patterns (no backreferences in Go regex)
var scriptTagRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
var styleTagRe = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
var headTagRe = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes HTML tags, decodes entities, and normalizes
// whitespace. Block elements are converted to line breaks so the visible
// text keeps its paragraph separation.
func StripHTML(rawHTML string) string {
	text := scriptTagRe.ReplaceAllString(rawHTML, "")
	text = styleTagRe.ReplaceAllString(text, "")
	text = headTagRe.ReplaceAllString(text, "")

	text = blockTagRe.ReplaceAllString(text, "\n")
	text = htmlTagRe.ReplaceAllString(text, "")

	text = html.UnescapeString(text)

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\u00A0", " ")

	// Collapse runs of spaces per line but preserve newlines
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	text = strings.Join(lines, "\n")

	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(text)
}
