package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stakeworks/wagerd/internal/services/wager"
)

// NewRouter registers all API endpoints. Account identity comes from the
// path; authentication is an external concern.
func NewRouter(svc *wager.Service) http.Handler {
	h := NewHandler(svc)
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/account/{accountId}", func(r chi.Router) {
		r.Get("/balance", h.GetBalance)
		r.Post("/deposit", h.Deposit)
		r.Post("/withdraw", h.Withdraw)
		r.Get("/audit/verify", h.VerifyAudit)

		r.Get("/session", h.Resync)
		r.Post("/session/forfeit", h.Forfeit)

		r.Post("/slots/spin", h.SlotsSpin)

		r.Post("/mines/open", h.MinesOpen)
		r.Post("/mines/reveal", h.MinesReveal)
		r.Post("/mines/cashout", h.MinesCashout)

		r.Post("/baccarat/play", h.BaccaratPlay)

		r.Post("/blackjack/deal", h.BlackjackDeal)
		r.Post("/blackjack/insurance", h.BlackjackInsurance)
		r.Post("/blackjack/hit", h.BlackjackHit)
		r.Post("/blackjack/stand", h.BlackjackStand)
	})

	return r
}
