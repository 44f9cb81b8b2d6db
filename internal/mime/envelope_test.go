package mime

import (
	"encoding/base64"
	"strings"
	"testing"
)

func b64url(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

// unpadded strips the trailing = padding, the way some mail APIs deliver
// base64url payloads.
func unpadded(s string) string {
	return strings.TrimRight(b64url(s), "=")
}

func TestHeaderValueCaseInsensitive(t *testing.T) {
	env := &Envelope{Headers: []Header{
		{Name: "subject", Value: "hi"},
		{Name: "FROM", Value: "a@b.com"},
	}}
	if got := env.HeaderValue("Subject"); got != "hi" {
		t.Errorf("Subject = %q", got)
	}
	if got := env.HeaderValue("From"); got != "a@b.com" {
		t.Errorf("From = %q", got)
	}
	if got := env.HeaderValue("Date"); got != "" {
		t.Errorf("absent header = %q, want empty", got)
	}
}

func TestDecodeBase64URLPadding(t *testing.T) {
	for _, in := range []string{b64url("hello!"), unpadded("hello!")} {
		got, err := DecodeBase64URL(in)
		if err != nil {
			t.Fatalf("decode %q: %v", in, err)
		}
		if string(got) != "hello!" {
			t.Errorf("decode %q = %q", in, got)
		}
	}
}

func TestDecodeBase64URLEmpty(t *testing.T) {
	got, err := DecodeBase64URL("")
	if err != nil || got != nil {
		t.Errorf("empty input: got %v, %v", got, err)
	}
}

func TestParseEnvelopePlainPart(t *testing.T) {
	env := &Envelope{
		MimeType: "multipart/alternative",
		Headers: []Header{
			{Name: "Subject", Value: "Your receipt"},
			{Name: "From", Value: "noreply@uber.com"},
			{Name: "Date", Value: "Tue, 03 Jun 2025 14:30:00 -0700"},
		},
		Parts: []*Envelope{
			{MimeType: "text/html", Body: BodyData{Data: b64url("<p>html version</p>")}},
			{MimeType: "text/plain", Body: BodyData{Data: unpadded("Total: $23.50")}},
		},
	}

	msg, err := ParseEnvelope(env)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.Subject != "Your receipt" || msg.FromAddr != "noreply@uber.com" {
		t.Errorf("headers: %+v", msg)
	}
	if msg.Date != "2025-06-03" {
		t.Errorf("date = %q", msg.Date)
	}
	if msg.BodyText != "Total: $23.50" {
		t.Errorf("body = %q, want plain part", msg.BodyText)
	}
}

func TestParseEnvelopeNestedFirstPlainWins(t *testing.T) {
	env := &Envelope{
		MimeType: "multipart/mixed",
		Parts: []*Envelope{
			{
				MimeType: "multipart/alternative",
				Parts: []*Envelope{
					{MimeType: "text/plain", Body: BodyData{Data: b64url("inner plain")}},
					{MimeType: "text/html", Body: BodyData{Data: b64url("<p>inner html</p>")}},
				},
			},
			{MimeType: "text/plain", Body: BodyData{Data: b64url("outer plain")}},
		},
	}

	msg, err := ParseEnvelope(env)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.BodyText != "inner plain" {
		t.Errorf("body = %q, want first plain part in document order", msg.BodyText)
	}
}

func TestParseEnvelopeHTMLFallback(t *testing.T) {
	env := &Envelope{
		MimeType: "multipart/alternative",
		Parts: []*Envelope{
			{MimeType: "text/html", Body: BodyData{Data: b64url("<p>Amount: &amp; $5</p>")}},
		},
	}

	msg, err := ParseEnvelope(env)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.BodyText != "Amount: & $5" {
		t.Errorf("body = %q, want stripped html", msg.BodyText)
	}
}

func TestParseEnvelopeTopLevelBody(t *testing.T) {
	env := &Envelope{
		MimeType: "text/plain",
		Headers:  []Header{{Name: "Subject", Value: "hi"}},
		Body:     BodyData{Data: b64url("just a body")},
	}

	msg, err := ParseEnvelope(env)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.BodyText != "just a body" {
		t.Errorf("body = %q", msg.BodyText)
	}
}

func TestParseEnvelopeDefaults(t *testing.T) {
	msg, err := ParseEnvelope(&Envelope{MimeType: "text/plain"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.Subject != NoSubject || msg.FromAddr != UnknownFrom {
		t.Errorf("defaults: %+v", msg)
	}
	if msg.BodyText != "" {
		t.Errorf("body = %q, want empty", msg.BodyText)
	}
}
