package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stakeworks/wagerd/internal/ledger"
	"github.com/stakeworks/wagerd/internal/services/wager"
)

// HandlerProvider wraps the wager service and exposes HTTP handlers.
type HandlerProvider struct {
	svc *wager.Service
}

// NewHandler returns a new Handler provider.
func NewHandler(svc *wager.Service) *HandlerProvider {
	return &HandlerProvider{svc: svc}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)

		// As best-effort, write a minimal error payload if headers not sent
		http.Error(w, `{"error":"internal json encode failure"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps service and ledger sentinels onto transport status
// codes. Anything unrecognized is a 500 with a generic message.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, wager.ErrInvalidStake):
		writeError(w, http.StatusBadRequest, "invalid stake")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, "insufficient funds")
	case errors.Is(err, ledger.ErrSessionConflict):
		writeError(w, http.StatusConflict, "active session conflict")
	case errors.Is(err, ledger.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "no active session")
	case errors.Is(err, ledger.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, wager.ErrBusy):
		writeError(w, http.StatusTooManyRequests, "account busy, retry")
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseAccountIDFromPath reads `{accountId}` from chi routes like:
//
//	GET  /account/{accountId}/balance
//	POST /account/{accountId}/deposit
func parseAccountIDFromPath(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "accountId")
	if idStr == "" {
		return 0, fmt.Errorf("missing accountId")
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid accountId: %w", err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid accountId: must be positive")
	}

	return id, nil
}

// decodeBody decodes a JSON request body into dst with a 1MB cap and
// unknown fields rejected.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty body")
		}
		return fmt.Errorf("invalid JSON")
	}
	return nil
}

// parseAmountCents converts a decimal string with up to 2 fractional digits
// into minor units.
func parseAmountCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount required")
	}
	if s[0] == '+' {
		s = s[1:]
	}
	if s != "" && s[0] == '-' {
		return 0, fmt.Errorf("amount must be > 0")
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, fmt.Errorf("invalid amount")
	}
	intPart := parts[0]
	frac := "00"
	if len(parts) == 2 {
		if len(parts[1]) > 2 {
			return 0, fmt.Errorf("amount supports up to 2 decimals")
		}
		frac = parts[1] + strings.Repeat("0", 2-len(parts[1]))
	}
	ip, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount integer")
	}
	fp, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount fractional")
	}
	total := ip*100 + fp
	if total <= 0 {
		return 0, fmt.Errorf("amount must be > 0")
	}
	return total, nil
}

func formatCents(minor int64) string {
	return fmt.Sprintf("%.2f", float64(minor)/100.0)
}

// --- Funds handlers ---

type amountRequest struct {
	Amount string `json:"amount"`
}

// GetBalance handles GET /account/{accountId}/balance
func (h *HandlerProvider) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	bal, err := h.svc.Balance(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accountId": accountID,
		"balance":   formatCents(bal),
	})
}

// Deposit handles POST /account/{accountId}/deposit
func (h *HandlerProvider) Deposit(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	var req amountRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmountCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bal, err := h.svc.Deposit(r.Context(), accountID, amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accountId": accountID,
		"balance":   formatCents(bal),
	})
}

// Withdraw handles POST /account/{accountId}/withdraw
func (h *HandlerProvider) Withdraw(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	var req amountRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmountCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bal, err := h.svc.Withdraw(r.Context(), accountID, amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accountId": accountID,
		"balance":   formatCents(bal),
	})
}

// VerifyAudit handles GET /account/{accountId}/audit/verify
func (h *HandlerProvider) VerifyAudit(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	report, err := h.svc.VerifyAudit(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := map[string]any{
		"accountId": accountID,
		"records":   report.Records,
		"intact":    report.Intact,
	}
	if report.Detail != "" {
		resp["detail"] = report.Detail
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Session handlers ---

// Resync handles GET /account/{accountId}/session
func (h *HandlerProvider) Resync(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	pub, err := h.svc.Resync(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pub)
}

// Forfeit handles POST /account/{accountId}/session/forfeit
func (h *HandlerProvider) Forfeit(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	bal, err := h.svc.Forfeit(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accountId": accountID,
		"balance":   formatCents(bal),
	})
}
