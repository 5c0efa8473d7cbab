package http

import (
	"net/http"
	"strconv"

	"github.com/concordat/concord/internal/domain/agent"
	"github.com/concordat/concord/internal/domain/covenant"
	"github.com/concordat/concord/internal/domain/proposal"
	"github.com/concordat/concord/internal/service"
)

// Handlers bundles the services the REST API exposes.
type Handlers struct {
	registry  *service.RegistryService
	proposals *service.ProposalService
	decisions *service.DecisionService
	ledger    *service.LedgerService
}

// NewHandlers creates the handler set.
func NewHandlers(
	registry *service.RegistryService,
	proposals *service.ProposalService,
	decisions *service.DecisionService,
	ledger *service.LedgerService,
) *Handlers {
	return &Handlers{
		registry:  registry,
		proposals: proposals,
		decisions: decisions,
		ledger:    ledger,
	}
}

// --- Agents ---

func (h *Handlers) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[agent.RegisterRequest](w, r)
	if !ok {
		return
	}
	a, err := h.registry.RegisterAgent(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	var agents []agent.Agent
	var err error
	if capability := r.URL.Query().Get("capability"); capability != "" {
		agents, err = h.registry.EligibleFor(r.Context(), capability)
	} else {
		agents, err = h.registry.ListAgents(r.Context())
	}
	if err != nil {
		writeDomainError(w, err, "agents not found")
		return
	}
	if agents == nil {
		agents = []agent.Agent{}
	}
	writeJSON(w, http.StatusOK, agents)
}

func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := h.registry.GetAgent(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handlers) UpdateAgentWeight(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Weight float64 `json:"weight"`
	}](w, r)
	if !ok {
		return
	}
	if err := h.registry.UpdateAgentWeight(r.Context(), urlParam(r, "id"), req.Weight); err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) UpdateAgentStatus(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Status string `json:"status"`
	}](w, r)
	if !ok {
		return
	}
	if err := h.registry.UpdateAgentStatus(r.Context(), urlParam(r, "id"), req.Status); err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.DeleteAgent(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Covenants ---

func (h *Handlers) CreateCovenant(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[covenant.CreateRequest](w, r)
	if !ok {
		return
	}
	c, err := h.registry.CreateCovenant(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handlers) GetCovenant(w http.ResponseWriter, r *http.Request) {
	c, err := h.registry.GetCovenant(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "covenant not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// --- Proposals ---

func (h *Handlers) SubmitProposal(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[proposal.SubmitRequest](w, r)
	if !ok {
		return
	}
	p, err := h.proposals.Submit(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "covenant not found")
		return
	}
	writeJSON(w, http.StatusAccepted, p)
}

func (h *Handlers) GetProposal(w http.ResponseWriter, r *http.Request) {
	p, err := h.proposals.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "proposal not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) ResubmitProposal(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[proposal.SubmitRequest](w, r)
	if !ok {
		return
	}
	p, err := h.proposals.Resubmit(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "proposal not found")
		return
	}
	writeJSON(w, http.StatusAccepted, p)
}

func (h *Handlers) RescoreProposal(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if err := h.proposals.Rescore(r.Context(), id); err != nil {
		writeDomainError(w, err, "proposal not found")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"proposal_id": id, "status": "rescoring"})
}

// --- Decisions ---

func (h *Handlers) GetDecision(w http.ResponseWriter, r *http.Request) {
	snap, err := h.decisions.GetDecision(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "decision not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handlers) OverrideDecision(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Decision      string `json:"decision"`
		Justification string `json:"justification"`
		ReviewerID    string `json:"reviewer_id"`
	}](w, r)
	if !ok {
		return
	}
	node, err := h.decisions.Override(r.Context(), urlParam(r, "id"), req.Decision, req.Justification, req.ReviewerID)
	if err != nil {
		writeDomainError(w, err, "proposal not found")
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (h *Handlers) SupersedeDecision(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Reason string `json:"reason"`
	}](w, r)
	if !ok {
		return
	}
	node, err := h.decisions.Supersede(r.Context(), urlParam(r, "id"), req.Reason)
	if err != nil {
		writeDomainError(w, err, "proposal not found")
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// --- Ledger ---

func (h *Handlers) ExportLedger(w http.ResponseWriter, r *http.Request) {
	from := parseInt64(r.URL.Query().Get("from"), 1)
	to := parseInt64(r.URL.Query().Get("to"), 0)

	entries, err := h.ledger.Export(r.Context(), urlParam(r, "id"), from, to)
	if err != nil {
		writeDomainError(w, err, "proposal not found")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handlers) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	ok, badSeq, err := h.ledger.Verify(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "proposal not found")
		return
	}
	resp := struct {
		OK          bool  `json:"ok"`
		BadSequence int64 `json:"bad_sequence,omitempty"`
	}{OK: ok, BadSequence: badSeq}
	writeJSON(w, http.StatusOK, resp)
}

func parseInt64(s string, def int64) int64 {
	if s == "" {
		return def
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return n
}
