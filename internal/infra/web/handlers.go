package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"gemini-chat-gateway/internal/domain"
	"gemini-chat-gateway/internal/domain/model"
	"gemini-chat-gateway/internal/infra/logging"
	"gemini-chat-gateway/internal/infra/metrics"
	red "gemini-chat-gateway/internal/infra/redis"
	"gemini-chat-gateway/internal/usecase"
)

const maxBodyBytes = 8 << 20 // inline image turns can be large

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	rec, err := s.stateUC.Get(r.Context(), logging.SessionKey(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := logging.SessionKey(ctx)

	if s.limiter != nil && s.chatRPM > 0 {
		ok, err := s.limiter.Allow(ctx, red.SessionCommandKey(key, "chat"), s.chatRPM, time.Minute)
		if err == nil && !ok {
			metrics.IncRateLimited("chat")
			writeJSON(w, http.StatusTooManyRequests, errorBody("Too many chat requests"))
			return
		}
	}

	var req usecase.ChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body"))
		return
	}

	reply, err := s.chatUC.SendTurn(ctx, key, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Mirror the upstream response shape the browser client consumes.
	resp := struct {
		Candidates []struct {
			Content *model.Turn `json:"content"`
		} `json:"candidates"`
	}{}
	if reply != nil {
		resp.Candidates = append(resp.Candidates, struct {
			Content *model.Turn `json:"content"`
		}{Content: reply})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	var act usecase.ConversationAction
	if err := decodeBody(w, r, &act); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body"))
		return
	}
	rec, err := s.convUC.Apply(r.Context(), logging.SessionKey(r.Context()), act)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var upd usecase.SettingsUpdate
	if err := decodeBody(w, r, &upd); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body"))
		return
	}
	if _, err := s.stateUC.UpdateSettings(r.Context(), logging.SessionKey(r.Context()), upd); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body"))
		return
	}
	res, err := s.redeemUC.Redeem(r.Context(), logging.SessionKey(r.Context()), req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	msg := fmt.Sprintf("Redeemed: %d uses added.", res.Granted)
	if res.Granted == model.UnlimitedQuota {
		msg = "Redeemed: unlimited use unlocked."
	}
	writeJSON(w, http.StatusOK, struct {
		Success  bool                 `json:"success"`
		Message  string               `json:"message"`
		NewState *model.SessionRecord `json:"newState"`
	}{true, msg, res.Record})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	snapshot, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body"))
		return
	}
	if err := s.stateUC.Restore(r.Context(), logging.SessionKey(r.Context()), snapshot); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleUnknown still loads (and thereby repairs) the record, then reports
// the unknown command; no mutation is persisted.
func (s *Server) handleUnknown(w http.ResponseWriter, r *http.Request) {
	_, _ = s.stateUC.Get(r.Context(), logging.SessionKey(r.Context()))
	writeJSON(w, http.StatusNotFound, errorBody("API Endpoint Not Found"))
}

// ---- helpers ----

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, errorBody(err.Error()))
}

func statusFor(err error) int {
	var ue *domain.UpstreamError
	if errors.As(err, &ue) {
		if ue.StatusCode < 100 {
			return http.StatusBadGateway
		}
		return ue.StatusCode
	}
	switch {
	case errors.Is(err, domain.ErrQuotaExhausted):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrCodeEmpty),
		errors.Is(err, domain.ErrCodeAlreadyUsed),
		errors.Is(err, domain.ErrCodeNotFound),
		errors.Is(err, domain.ErrAlreadyUnlimited),
		errors.Is(err, domain.ErrInvalidSnapshot):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
