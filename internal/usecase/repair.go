// File: internal/usecase/repair.go
package usecase

import (
	"bytes"
	"encoding/json"

	"github.com/oklog/ulid/v2"

	"gemini-chat-gateway/internal/config"
	"gemini-chat-gateway/internal/domain/model"
	"gemini-chat-gateway/internal/infra/metrics"
)

// rawRecord defers every field so one corrupt value cannot poison the rest of
// the record. Stored blobs may be missing fields, carry old shapes, or be
// hand-edited; repair absorbs all of it.
type rawRecord struct {
	Theme                json.RawMessage `json:"theme"`
	Model                json.RawMessage `json:"model"`
	APIKey               json.RawMessage `json:"apiKey"`
	Quota                json.RawMessage `json:"quota"`
	RedeemedCodes        json.RawMessage `json:"redeemedCodes"`
	Conversations        json.RawMessage `json:"conversations"`
	ActiveConversationID json.RawMessage `json:"activeConversationId"`
}

// DecodeAndRepair turns a stored JSON blob into a valid SessionRecord. It
// never fails: anything it cannot keep is coerced to the configured default.
// The second return reports whether any coercion occurred (diagnostics only).
//
// Applied rules, each independent and idempotent:
//   - unreadable document            -> fresh default record
//   - quota not integer-or-unlimited -> default trial quota AND redeemedCodes
//     cleared (a corrupt quota invalidates the redemption history tied to it)
//   - model outside the allow-list   -> default model
//   - credential absent              -> empty string, never undefined
//   - undecodable conversation entry -> dropped
//   - dangling active pointer        -> most recent conversation, or unset
func DecodeAndRepair(data []byte, core config.Core) (*model.SessionRecord, bool) {
	var raw rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		metrics.IncRepair("document")
		return model.NewSessionRecord(core.DefaultModel, core.TrialQuota), true
	}

	rec := &model.SessionRecord{}
	repaired := false

	var theme string
	if err := json.Unmarshal(raw.Theme, &theme); err == nil && (theme == string(model.ThemeLight) || theme == string(model.ThemeDark)) {
		rec.Theme = model.Theme(theme)
	} else {
		rec.Theme = model.ThemeLight
		repaired = true
	}

	var mdl string
	if err := json.Unmarshal(raw.Model, &mdl); err == nil && core.ModelAllowed(mdl) {
		rec.Model = mdl
	} else {
		rec.Model = core.DefaultModel
		repaired = true
		metrics.IncRepair("model")
	}

	if err := json.Unmarshal(raw.APIKey, &rec.APIKey); err != nil {
		rec.APIKey = ""
		repaired = true
		metrics.IncRepair("credential")
	}

	quotaValid := false
	if q, ok := decodeQuota(raw.Quota); ok {
		rec.Quota = q
		quotaValid = true
	} else {
		rec.Quota = core.TrialQuota
		repaired = true
		metrics.IncRepair("quota")
	}

	rec.RedeemedCodes = []string{}
	if quotaValid {
		var codes []string
		if err := json.Unmarshal(raw.RedeemedCodes, &codes); err == nil {
			rec.RedeemedCodes = dedupe(codes)
			if len(rec.RedeemedCodes) != len(codes) {
				repaired = true
			}
		} else {
			repaired = true
		}
	}

	convs, convRepaired := decodeConversations(raw.Conversations)
	rec.Conversations = convs
	if convRepaired {
		repaired = true
		metrics.IncRepair("conversations")
	}

	var active string
	if err := json.Unmarshal(raw.ActiveConversationID, &active); err != nil {
		active = ""
	}
	if active != "" {
		if _, ok := rec.Conversations[active]; !ok {
			active = rec.MostRecentConversationID()
			repaired = true
			metrics.IncRepair("active_pointer")
		}
	}
	rec.ActiveConversationID = active

	return rec, repaired
}

func decodeQuota(raw json.RawMessage) (int64, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil {
		return 0, false
	}
	if i < 0 && i != model.UnlimitedQuota {
		return 0, false
	}
	return i, true
}

func decodeConversations(raw json.RawMessage) (map[string]*model.Conversation, bool) {
	out := map[string]*model.Conversation{}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return out, true
	}
	repaired := false
	for id, entry := range entries {
		var c model.Conversation
		if err := json.Unmarshal(entry, &c); err != nil {
			repaired = true
			continue
		}
		// The map key is authoritative for identity.
		if c.ID != id {
			c.ID = id
			repaired = true
		}
		if c.History == nil {
			c.History = []model.Turn{}
			repaired = true
		}
		// Records written before CreatedAt existed carry the timestamp only
		// inside the ULID.
		if c.CreatedAt.IsZero() {
			if u, err := ulid.ParseStrict(id); err == nil {
				c.CreatedAt = ulid.Time(u.Time()).UTC()
				repaired = true
			}
		}
		out[id] = &c
	}
	return out, repaired
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
