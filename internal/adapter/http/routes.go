package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, wsHandler http.HandlerFunc) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if wsHandler != nil {
		r.Get("/ws", wsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Agent registry
		r.Post("/agents", h.RegisterAgent)
		r.Get("/agents", h.ListAgents)
		r.Get("/agents/{id}", h.GetAgent)
		r.Put("/agents/{id}/weight", h.UpdateAgentWeight)
		r.Put("/agents/{id}/status", h.UpdateAgentStatus)
		r.Delete("/agents/{id}", h.DeleteAgent)

		// Covenants
		r.Post("/covenants", h.CreateCovenant)
		r.Get("/covenants/{id}", h.GetCovenant)

		// Proposals
		r.Post("/proposals", h.SubmitProposal)
		r.Get("/proposals/{id}", h.GetProposal)
		r.Post("/proposals/{id}/resubmit", h.ResubmitProposal)
		r.Post("/proposals/{id}/rescore", h.RescoreProposal)

		// Decisions
		r.Get("/proposals/{id}/decision", h.GetDecision)
		r.Post("/proposals/{id}/override", h.OverrideDecision)
		r.Post("/proposals/{id}/supersede", h.SupersedeDecision)

		// Audit ledger
		r.Get("/proposals/{id}/ledger", h.ExportLedger)
		r.Get("/proposals/{id}/ledger/verify", h.VerifyLedger)
	})
}
