// File: internal/usecase/chat_uc_test.go
package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"gemini-chat-gateway/internal/domain"
	"gemini-chat-gateway/internal/domain/model"
)

func newChatFixture(ai *fakeAI) (*chatUC, *memRecordRepo, *RecordStore) {
	repo := newMemRecordRepo()
	store := testStore(repo)
	uc := NewChatUseCase(store, ai, testCore(), "server-key", nopLogger())
	return uc, repo, store
}

func TestSendTurnDebitsAfterSuccess(t *testing.T) {
	ai := &fakeAI{}
	uc, _, store := newChatFixture(ai)
	ctx := context.Background()

	reply, err := uc.SendTurn(ctx, "k1", ChatRequest{Contents: []model.Turn{userTurn("hi")}})
	if err != nil {
		t.Fatalf("SendTurn: %v", err)
	}
	if reply == nil || reply.Role != model.RoleModel {
		t.Fatalf("reply = %+v", reply)
	}

	rec, err := store.Load(ctx, "k1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Quota != 2 {
		t.Fatalf("quota = %d, want 2", rec.Quota)
	}
	conv := rec.ActiveConversation()
	if conv == nil || len(conv.History) != 2 {
		t.Fatalf("history not appended: %+v", conv)
	}
	if conv.History[0].Role != model.RoleUser || conv.History[1].Role != model.RoleModel {
		t.Fatalf("history order wrong: %+v", conv.History)
	}
}

func TestSendTurnUpstreamFailureDoesNotDebit(t *testing.T) {
	ai := &fakeAI{err: &domain.UpstreamError{StatusCode: 429, Message: "rate limited"}}
	uc, repo, store := newChatFixture(ai)
	ctx := context.Background()

	_, err := uc.SendTurn(ctx, "k1", ChatRequest{Contents: []model.Turn{userTurn("hi")}})
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) || ue.StatusCode != 429 {
		t.Fatalf("err = %v, want upstream 429", err)
	}

	// Admitted requests still end in exactly one write of the unchanged record.
	if _, ok := repo.store["k1"]; !ok {
		t.Fatal("record not written after rejected turn")
	}
	rec, _ := store.Load(ctx, "k1")
	if rec.Quota != 3 {
		t.Fatalf("quota = %d, want untouched 3", rec.Quota)
	}
	if len(rec.RedeemedCodes) != 0 {
		t.Fatalf("redeemedCodes mutated: %v", rec.RedeemedCodes)
	}
	for _, c := range rec.Conversations {
		if len(c.History) != 0 {
			t.Fatalf("history mutated on failure: %+v", c)
		}
	}
}

func TestSendTurnQuotaExhaustedPrecedesUpstream(t *testing.T) {
	ai := &fakeAI{}
	uc, _, store := newChatFixture(ai)
	ctx := context.Background()

	rec := model.NewSessionRecord("gemini-1.5-flash-latest", 0)
	if err := store.Save(ctx, "k1", rec); err != nil {
		t.Fatal(err)
	}

	_, err := uc.SendTurn(ctx, "k1", ChatRequest{Contents: []model.Turn{userTurn("hi")}})
	if !errors.Is(err, domain.ErrQuotaExhausted) {
		t.Fatalf("err = %v, want ErrQuotaExhausted", err)
	}
	if ai.calls != 0 {
		t.Fatal("upstream called despite exhausted quota")
	}
}

func TestSendTurnPersonalCredentialSkipsQuota(t *testing.T) {
	ai := &fakeAI{}
	uc, _, store := newChatFixture(ai)
	ctx := context.Background()

	rec := model.NewSessionRecord("gemini-1.5-flash-latest", 0)
	rec.APIKey = "sk-personal"
	if err := store.Save(ctx, "k1", rec); err != nil {
		t.Fatal(err)
	}

	if _, err := uc.SendTurn(ctx, "k1", ChatRequest{Contents: []model.Turn{userTurn("hi")}}); err != nil {
		t.Fatalf("SendTurn: %v", err)
	}
	if ai.lastCred != "sk-personal" {
		t.Fatalf("credential = %q, want the record's own key", ai.lastCred)
	}
	got, _ := store.Load(ctx, "k1")
	if got.Quota != 0 {
		t.Fatalf("quota = %d, want 0 (never debited)", got.Quota)
	}
}

func TestSendTurnNoCredentialConfigured(t *testing.T) {
	ai := &fakeAI{}
	repo := newMemRecordRepo()
	store := testStore(repo)
	uc := NewChatUseCase(store, ai, testCore(), "", nopLogger())

	_, err := uc.SendTurn(context.Background(), "k1", ChatRequest{Contents: []model.Turn{userTurn("hi")}})
	if !errors.Is(err, domain.ErrNoCredential) {
		t.Fatalf("err = %v, want ErrNoCredential", err)
	}
	if ai.calls != 0 {
		t.Fatal("upstream called without a credential")
	}
}

func TestSendTurnVisionOverride(t *testing.T) {
	ai := &fakeAI{}
	uc, _, _ := newChatFixture(ai)

	_, err := uc.SendTurn(context.Background(), "k1", ChatRequest{
		Model:    "gemini-1.5-pro-latest",
		Contents: []model.Turn{imageTurn()},
	})
	if err != nil {
		t.Fatalf("SendTurn: %v", err)
	}
	if ai.lastModel != testCore().VisionModel {
		t.Fatalf("model = %q, want vision override %q", ai.lastModel, testCore().VisionModel)
	}
}

func TestSendTurnModelPassthrough(t *testing.T) {
	ai := &fakeAI{}
	uc, _, _ := newChatFixture(ai)

	if _, err := uc.SendTurn(context.Background(), "k1", ChatRequest{
		Model:    "gemini-1.5-pro-latest",
		Contents: []model.Turn{userTurn("hi")},
	}); err != nil {
		t.Fatalf("SendTurn: %v", err)
	}
	if ai.lastModel != "gemini-1.5-pro-latest" {
		t.Fatalf("model = %q, want caller's choice passed through", ai.lastModel)
	}
}

func TestSendTurnBestEffortAttach(t *testing.T) {
	ai := &fakeAI{}
	uc, _, store := newChatFixture(ai)
	ctx := context.Background()

	rec := model.NewSessionRecord("gemini-1.5-flash-latest", 3)
	for id := range rec.Conversations {
		rec.DeleteConversation(id)
	}
	if err := store.Save(ctx, "k1", rec); err != nil {
		t.Fatal(err)
	}

	reply, err := uc.SendTurn(ctx, "k1", ChatRequest{Contents: []model.Turn{userTurn("hi")}})
	if err != nil || reply == nil {
		t.Fatalf("turn should succeed without an active conversation: %v", err)
	}
	got, _ := store.Load(ctx, "k1")
	if got.Quota != 2 {
		t.Fatalf("quota = %d, want debited 2", got.Quota)
	}
	for _, c := range got.Conversations {
		if len(c.History) != 0 {
			t.Fatalf("history should stay empty: %+v", c)
		}
	}
}

func TestSendTurnEmptyContents(t *testing.T) {
	ai := &fakeAI{}
	uc, _, _ := newChatFixture(ai)
	_, err := uc.SendTurn(context.Background(), "k1", ChatRequest{})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

// The web-search toggle rides along as a tool declaration; the orchestrator
// must hand it to the adapter untouched.
func TestSendTurnForwardsTools(t *testing.T) {
	ai := &fakeAI{}
	uc, _, _ := newChatFixture(ai)
	ctx := context.Background()

	tools := json.RawMessage(`[{"google_search_retrieval":{}}]`)
	if _, err := uc.SendTurn(ctx, "k1", ChatRequest{Contents: []model.Turn{userTurn("hi")}, Tools: tools}); err != nil {
		t.Fatalf("SendTurn: %v", err)
	}
	if !bytes.Equal(ai.lastTools, tools) {
		t.Fatalf("tools = %s, want forwarded verbatim", ai.lastTools)
	}

	if _, err := uc.SendTurn(ctx, "k1", ChatRequest{Contents: []model.Turn{userTurn("hi")}}); err != nil {
		t.Fatalf("SendTurn: %v", err)
	}
	if ai.lastTools != nil {
		t.Fatalf("tools = %s, want none", ai.lastTools)
	}
}

// Full trial lifecycle: three turns exhaust the quota, a code refills it.
func TestTrialLifecycleScenario(t *testing.T) {
	ai := &fakeAI{}
	uc, _, store := newChatFixture(ai)
	redeem := NewRedeemUseCase(store, testCore(), nopLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := uc.SendTurn(ctx, "k1", ChatRequest{Contents: []model.Turn{userTurn("hi")}}); err != nil {
			t.Fatalf("turn %d: %v", i+1, err)
		}
	}
	rec, _ := store.Load(ctx, "k1")
	if rec.Quota != 0 || rec.CanSpend() {
		t.Fatalf("after 3 turns: quota=%d canSpend=%v", rec.Quota, rec.CanSpend())
	}
	if _, err := uc.SendTurn(ctx, "k1", ChatRequest{Contents: []model.Turn{userTurn("again")}}); !errors.Is(err, domain.ErrQuotaExhausted) {
		t.Fatalf("err = %v, want ErrQuotaExhausted", err)
	}

	res, err := redeem.Redeem(ctx, "k1", "BLUE-GEM-A8C5")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.Record.Quota != 5 {
		t.Fatalf("quota = %d, want 5", res.Record.Quota)
	}
}
