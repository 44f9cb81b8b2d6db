package mime

import (
	"encoding/base64"
	"strings"

	"github.com/rotisserie/eris"
)

// Envelope is a pre-decomposed header/part structure, as delivered by mail
// APIs that return an already-parsed message instead of raw RFC 5322
// bytes.
type Envelope struct {
	MimeType string   `json:"mimeType"`
	Headers  []Header `json:"headers"`
	Body     BodyData `json:"body"`
	Parts    []*Envelope `json:"parts"`
}

// Header is one name/value header pair.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// BodyData carries a base64url-encoded body payload.
type BodyData struct {
	Data string `json:"data"`
}

// HeaderValue returns the first header matching name case-insensitively,
// or "" when absent.
func (e *Envelope) HeaderValue(name string) string {
	for _, h := range e.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// DecodeBase64URL decodes base64url data, tolerating missing padding.
func DecodeBase64URL(data string) ([]byte, error) {
	if data == "" {
		return nil, nil
	}
	if pad := len(data) % 4; pad != 0 {
		data += strings.Repeat("=", 4-pad)
	}
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		return nil, eris.Wrap(err, "decode base64url body")
	}
	return decoded, nil
}

// ParseEnvelope decodes a pre-decomposed message using the same header
// defaults and body-selection policy as Parse.
func ParseEnvelope(env *Envelope) (*Message, error) {
	msg := &Message{
		Subject:  env.HeaderValue("Subject"),
		FromAddr: env.HeaderValue("From"),
		Date:     ParseDate(env.HeaderValue("Date")),
	}
	if msg.Subject == "" {
		msg.Subject = NoSubject
	}
	if msg.FromAddr == "" {
		msg.FromAddr = UnknownFrom
	}

	body, err := selectBody(env)
	if err != nil {
		return nil, err
	}
	msg.BodyText = body

	return msg, nil
}

// selectBody walks the part tree with an explicit worklist in document
// order. The first text/plain part wins; otherwise the first text/html
// part is stripped to visible text; a body payload attached directly at
// the top level is the final fallback.
func selectBody(root *Envelope) (string, error) {
	var firstHTML string

	stack := []*Envelope{root}
	for len(stack) > 0 {
		part := stack[0]
		stack = stack[1:]

		mimeType := strings.ToLower(part.MimeType)
		switch {
		case mimeType == "text/plain":
			if part.Body.Data != "" {
				decoded, err := DecodeBase64URL(part.Body.Data)
				if err != nil {
					return "", err
				}
				return string(decoded), nil
			}
		case mimeType == "text/html":
			if firstHTML == "" && part.Body.Data != "" {
				decoded, err := DecodeBase64URL(part.Body.Data)
				if err != nil {
					return "", err
				}
				firstHTML = string(decoded)
			}
		case strings.HasPrefix(mimeType, "multipart/") || len(part.Parts) > 0:
			// Prepend children to preserve document order
			stack = append(append([]*Envelope{}, part.Parts...), stack...)
		}
	}

	if firstHTML != "" {
		return StripHTML(firstHTML), nil
	}

	// Final fallback: body payload at the top level, whatever its type
	if root.Body.Data != "" {
		decoded, err := DecodeBase64URL(root.Body.Data)
		if err != nil {
			return "", err
		}
		if strings.ToLower(root.MimeType) == "text/html" {
			return StripHTML(string(decoded)), nil
		}
		return string(decoded), nil
	}

	return "", nil
}
