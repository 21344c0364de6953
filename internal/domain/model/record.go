package model

import (
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// UnlimitedQuota is the sentinel meaning "no quota consumption". It is the
// only negative value a valid record may carry.
const UnlimitedQuota int64 = -1

// Conversation is one named thread of turns. History is append-only; recency
// is decided by CreatedAt (ULID id as tiebreaker), never by map order.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	History   []Turn    `json:"history"`
}

func (c *Conversation) Append(turns ...Turn) {
	c.History = append(c.History, turns...)
}

// SessionRecord is the sole persisted aggregate, one per session key.
type SessionRecord struct {
	Theme                Theme                    `json:"theme"`
	Model                string                   `json:"model"`
	APIKey               string                   `json:"apiKey"`
	Quota                int64                    `json:"quota"`
	RedeemedCodes        []string                 `json:"redeemedCodes"`
	Conversations        map[string]*Conversation `json:"conversations"`
	ActiveConversationID string                   `json:"activeConversationId,omitempty"`
}

// NewSessionRecord builds the default record for a fresh session key: one
// empty conversation, already active.
func NewSessionRecord(defaultModel string, trialQuota int64) *SessionRecord {
	rec := &SessionRecord{
		Theme:         ThemeLight,
		Model:         defaultModel,
		Quota:         trialQuota,
		RedeemedCodes: []string{},
		Conversations: map[string]*Conversation{},
	}
	rec.NewConversation("Conversation 1")
	return rec
}

// NewConversationID mints a conversation id whose embedded timestamp makes
// ids sort in creation order.
func NewConversationID() string {
	return ulid.Make().String()
}

// ---- quota ledger ----

// HasCredential reports whether the record carries its own upstream API key.
// A personal key fully substitutes for the server's and exempts the record
// from quota consumption.
func (r *SessionRecord) HasCredential() bool { return r.APIKey != "" }

func (r *SessionRecord) Unlimited() bool { return r.Quota == UnlimitedQuota }

// CanSpend reports whether a chat turn may be admitted.
func (r *SessionRecord) CanSpend() bool {
	return r.HasCredential() || r.Unlimited() || r.Quota > 0
}

// Debit consumes one unit of quota. It must only be called after CanSpend
// succeeded in the same transaction; it never pushes the quota below zero.
func (r *SessionRecord) Debit() {
	if r.HasCredential() || r.Unlimited() {
		return
	}
	if r.Quota > 0 {
		r.Quota--
	}
}

func (r *SessionRecord) HasRedeemed(code string) bool {
	for _, c := range r.RedeemedCodes {
		if c == code {
			return true
		}
	}
	return false
}

func (r *SessionRecord) MarkRedeemed(code string) {
	if !r.HasRedeemed(code) {
		r.RedeemedCodes = append(r.RedeemedCodes, code)
	}
}

// ---- conversation store ----

// ActiveConversation returns the active thread, or nil when the pointer is
// unset or dangling.
func (r *SessionRecord) ActiveConversation() *Conversation {
	if r.ActiveConversationID == "" {
		return nil
	}
	return r.Conversations[r.ActiveConversationID]
}

// NewConversation creates an empty thread and makes it active.
func (r *SessionRecord) NewConversation(title string) *Conversation {
	c := &Conversation{
		ID:        NewConversationID(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
		History:   []Turn{},
	}
	if r.Conversations == nil {
		r.Conversations = map[string]*Conversation{}
	}
	r.Conversations[c.ID] = c
	r.ActiveConversationID = c.ID
	return c
}

// DeleteConversation removes a thread. Deleting an absent id is a no-op.
// When the active thread is deleted the most recently created remaining one
// becomes active, or the pointer is cleared if none remain.
func (r *SessionRecord) DeleteConversation(id string) {
	if _, ok := r.Conversations[id]; !ok {
		return
	}
	delete(r.Conversations, id)
	if r.ActiveConversationID == id {
		r.ActiveConversationID = r.MostRecentConversationID()
	}
}

// RenameConversation sets a new title. No-op unless the thread exists and the
// trimmed title is non-empty.
func (r *SessionRecord) RenameConversation(id, title string) bool {
	c, ok := r.Conversations[id]
	title = strings.TrimSpace(title)
	if !ok || title == "" {
		return false
	}
	c.Title = title
	return true
}

// SwitchConversation moves the active pointer. No-op when the id is absent.
func (r *SessionRecord) SwitchConversation(id string) bool {
	if _, ok := r.Conversations[id]; !ok {
		return false
	}
	r.ActiveConversationID = id
	return true
}

// MostRecentConversationID returns the id of the most recently created
// thread, or "" when the record has none.
func (r *SessionRecord) MostRecentConversationID() string {
	ids := make([]string, 0, len(r.Conversations))
	for id := range r.Conversations {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return ""
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := r.Conversations[ids[i]], r.Conversations[ids[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return ids[0]
}
