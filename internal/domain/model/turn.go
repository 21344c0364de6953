package model

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one message in a conversation: a role plus one or more content
// parts. The part payloads are opaque to the gateway beyond shape.
type Turn struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Part is either a text part or an inline-binary part (e.g. an image).
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData holds base64-encoded binary content.
type InlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// HasInlineData reports whether any part of the turn carries binary content.
// Such turns must be routed to a vision-capable model.
func (t Turn) HasInlineData() bool {
	for _, p := range t.Parts {
		if p.InlineData != nil {
			return true
		}
	}
	return false
}
