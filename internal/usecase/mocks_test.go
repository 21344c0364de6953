// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"gemini-chat-gateway/internal/config"
	"gemini-chat-gateway/internal/domain"
	"gemini-chat-gateway/internal/domain/model"
)

// memRecordRepo is a small in-memory implementation used by unit tests.
type memRecordRepo struct {
	mu     sync.RWMutex
	store  map[string][]byte
	getErr error // used by tests to simulate store failures
	putErr error
}

func newMemRecordRepo() *memRecordRepo {
	return &memRecordRepo{store: make(map[string][]byte)}
}

func (m *memRecordRepo) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.store[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (m *memRecordRepo) Put(ctx context.Context, key string, data []byte) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.store[key] = cp
	return nil
}

// fakeAI records the forwarded call and returns a canned reply or error.
type fakeAI struct {
	mu        sync.Mutex
	reply     *model.Turn
	err       error
	calls     int
	lastModel string
	lastCred  string
	lastTools json.RawMessage
}

func (f *fakeAI) Send(ctx context.Context, modelID string, turns []model.Turn, tools json.RawMessage, credential string) (*model.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastModel = modelID
	f.lastCred = credential
	f.lastTools = tools
	if f.err != nil {
		return nil, f.err
	}
	if f.reply != nil {
		return f.reply, nil
	}
	return &model.Turn{Role: model.RoleModel, Parts: []model.Part{{Text: "ok"}}}, nil
}

func testCore() config.Core {
	return config.Core{
		DefaultModel:  "gemini-1.5-flash-latest",
		VisionModel:   "gemini-1.5-flash-latest",
		AllowedModels: []string{"gemini-1.5-flash-latest", "gemini-1.5-pro-latest"},
		TrialQuota:    3,
		Codes: map[string]int64{
			"GEMINI-FOR-ALL": model.UnlimitedQuota,
			"BLUE-GEM-A8C5":  5,
		},
		MaxOutputTokens: 8192,
	}
}

func testStore(repo *memRecordRepo) *RecordStore {
	nop := zerolog.Nop()
	return NewRecordStore(repo, nil, testCore(), &nop)
}

func nopLogger() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}

func userTurn(text string) model.Turn {
	return model.Turn{Role: model.RoleUser, Parts: []model.Part{{Text: text}}}
}

func imageTurn() model.Turn {
	return model.Turn{Role: model.RoleUser, Parts: []model.Part{
		{Text: "what is this?"},
		{InlineData: &model.InlineData{MIMEType: "image/png", Data: "aGVsbG8="}},
	}}
}
