package api

import (
	"net/http"

	"github.com/stakeworks/wagerd/internal/games/baccarat"
	"github.com/stakeworks/wagerd/internal/services/wager"
)

// --- Slots ---

type stakeRequest struct {
	Stake string `json:"stake"`
}

// SlotsSpin handles POST /account/{accountId}/slots/spin
func (h *HandlerProvider) SlotsSpin(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	var req stakeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stake, err := parseAmountCents(req.Stake)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.SpinSlots(r.Context(), accountID, stake)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"category":   res.Category,
		"reels":      res.Reels,
		"payout":     formatCents(res.Payout),
		"balance":    formatCents(res.Balance),
		"seedHash":   res.SeedHash,
		"serverSeed": res.ServerSeed,
	})
}

// --- Mines ---

type minesOpenRequest struct {
	Stake string `json:"stake"`
	Mines int    `json:"mines"`
}

type minesRevealRequest struct {
	Tile int `json:"tile"`
}

func minesResponse(v wager.MinesView) map[string]any {
	resp := map[string]any{
		"sessionId":  v.SessionID,
		"mineCount":  v.MineCount,
		"revealed":   v.Revealed,
		"multiplier": v.Multiplier,
		"revision":   v.Revision,
		"seedHash":   v.SeedHash,
		"settled":    v.Settled,
		"balance":    formatCents(v.Balance),
	}
	if v.Settled {
		resp["hit"] = v.Hit
		if v.Hit {
			resp["hitTile"] = v.HitTile
		}
		resp["mines"] = v.Mines
		resp["payout"] = formatCents(v.Payout)
		resp["serverSeed"] = v.ServerSeed
	}
	return resp
}

// MinesOpen handles POST /account/{accountId}/mines/open
func (h *HandlerProvider) MinesOpen(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	var req minesOpenRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stake, err := parseAmountCents(req.Stake)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.svc.MinesOpen(r.Context(), accountID, stake, req.Mines)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, minesResponse(view))
}

// MinesReveal handles POST /account/{accountId}/mines/reveal
func (h *HandlerProvider) MinesReveal(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	var req minesRevealRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.svc.MinesReveal(r.Context(), accountID, req.Tile)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, minesResponse(view))
}

// MinesCashout handles POST /account/{accountId}/mines/cashout
func (h *HandlerProvider) MinesCashout(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	view, err := h.svc.MinesCashout(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, minesResponse(view))
}

// --- Baccarat ---

type baccaratRequest struct {
	Main       string `json:"main"`
	MainStake  string `json:"mainStake"`
	PlayerPair string `json:"playerPair"`
	BankerPair string `json:"bankerPair"`
}

// optionalAmount parses a side-bet amount; empty means no bet.
func optionalAmount(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return parseAmountCents(s)
}

// BaccaratPlay handles POST /account/{accountId}/baccarat/play
func (h *HandlerProvider) BaccaratPlay(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	var req baccaratRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mainStake, err := parseAmountCents(req.MainStake)
	if err != nil {
		writeError(w, http.StatusBadRequest, "mainStake: "+err.Error())
		return
	}
	playerPair, err := optionalAmount(req.PlayerPair)
	if err != nil {
		writeError(w, http.StatusBadRequest, "playerPair: "+err.Error())
		return
	}
	bankerPair, err := optionalAmount(req.BankerPair)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bankerPair: "+err.Error())
		return
	}

	bets := baccarat.Bets{
		Main:       req.Main,
		MainStake:  mainStake,
		PlayerPair: playerPair,
		BankerPair: bankerPair,
	}

	res, err := h.svc.BaccaratPlay(r.Context(), accountID, bets)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"playerHand":  res.PlayerHand,
		"bankerHand":  res.BankerHand,
		"playerScore": res.PlayerScore,
		"bankerScore": res.BankerScore,
		"winner":      res.Winner,
		"playerPair":  res.PlayerPair,
		"bankerPair":  res.BankerPair,
		"payout":      formatCents(res.Payout),
		"balance":     formatCents(res.Balance),
		"seedHash":    res.SeedHash,
		"serverSeed":  res.ServerSeed,
	})
}

// --- Blackjack ---

type insuranceRequest struct {
	Take bool `json:"take"`
}

func blackjackResponse(v wager.BlackjackView) map[string]any {
	resp := map[string]any{
		"sessionId":    v.SessionID,
		"playerHand":   v.PlayerHand,
		"playerTotal":  v.PlayerTotal,
		"dealerUpcard": v.DealerUpcard,
		"phase":        v.Phase,
		"revision":     v.Revision,
		"seedHash":     v.SeedHash,
		"settled":      v.Settled,
		"balance":      formatCents(v.Balance),
	}
	if v.Settled {
		resp["dealerHand"] = v.DealerHand
		resp["dealerTotal"] = v.DealerTotal
		resp["outcome"] = v.Outcome
		resp["payout"] = formatCents(v.Payout)
		resp["serverSeed"] = v.ServerSeed
	}
	return resp
}

// BlackjackDeal handles POST /account/{accountId}/blackjack/deal
func (h *HandlerProvider) BlackjackDeal(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	var req stakeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stake, err := parseAmountCents(req.Stake)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.svc.BlackjackDeal(r.Context(), accountID, stake)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, blackjackResponse(view))
}

// BlackjackInsurance handles POST /account/{accountId}/blackjack/insurance
func (h *HandlerProvider) BlackjackInsurance(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	var req insuranceRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.svc.BlackjackInsurance(r.Context(), accountID, req.Take)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, blackjackResponse(view))
}

// BlackjackHit handles POST /account/{accountId}/blackjack/hit
func (h *HandlerProvider) BlackjackHit(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	view, err := h.svc.BlackjackHit(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, blackjackResponse(view))
}

// BlackjackStand handles POST /account/{accountId}/blackjack/stand
func (h *HandlerProvider) BlackjackStand(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	view, err := h.svc.BlackjackStand(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, blackjackResponse(view))
}
