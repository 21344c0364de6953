package web

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gemini-chat-gateway/internal/config"
	"gemini-chat-gateway/internal/domain"
	"gemini-chat-gateway/internal/domain/model"
	"gemini-chat-gateway/internal/usecase"
)

type memRecordRepo struct {
	mu    sync.RWMutex
	store map[string][]byte
}

func newMemRecordRepo() *memRecordRepo {
	return &memRecordRepo{store: make(map[string][]byte)}
}

func (m *memRecordRepo) Get(ctx context.Context, key string) ([]byte, error) {
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
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.store[key] = cp
	return nil
}

type fakeAI struct {
	mu        sync.Mutex
	err       error
	calls     int
	lastTools json.RawMessage
}

func (f *fakeAI) Send(ctx context.Context, modelID string, turns []model.Turn, tools json.RawMessage, credential string) (*model.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastTools = tools
	if f.err != nil {
		return nil, f.err
	}
	return &model.Turn{Role: model.RoleModel, Parts: []model.Part{{Text: "hello back"}}}, nil
}

func (f *fakeAI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAI) sentTools() json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastTools
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

// newTestServer wires the real usecases over an in-memory store and a fake
// upstream, the same shape main assembles in production.
func newTestServer(ai *fakeAI) (*Server, *memRecordRepo) {
	repo := newMemRecordRepo()
	core := testCore()
	nop := zerolog.Nop()

	records := usecase.NewRecordStore(repo, nil, core, &nop)
	stateUC := usecase.NewStateUseCase(records, core, &nop)
	chatUC := usecase.NewChatUseCase(records, ai, core, "server-key", &nop)
	convUC := usecase.NewConversationUseCase(records, &nop)
	redeemUC := usecase.NewRedeemUseCase(records, core, &nop)

	sessions := NewSessionManager(config.SessionConfig{
		CookieName: "chat_session",
		HMACSecret: "test-secret",
		TTL:        time.Hour,
	})
	return NewServer(stateUC, chatUC, convUC, redeemUC, sessions, nil, 0, &nop), repo
}
