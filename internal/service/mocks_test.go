package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/concordat/concord/internal/domain"
	"github.com/concordat/concord/internal/domain/agent"
	"github.com/concordat/concord/internal/domain/covenant"
	"github.com/concordat/concord/internal/domain/decision"
	"github.com/concordat/concord/internal/domain/evaluation"
	dledger "github.com/concordat/concord/internal/domain/ledger"
	"github.com/concordat/concord/internal/domain/proposal"
	"github.com/concordat/concord/internal/port/broadcast"
	"github.com/concordat/concord/internal/port/database"
	"github.com/concordat/concord/internal/port/evaluator"
	ledgerport "github.com/concordat/concord/internal/port/ledger"
	"github.com/concordat/concord/internal/port/messagequeue"
)

// Ensure mock types implement their interfaces at compile time.
var (
	_ database.Store        = (*mockStore)(nil)
	_ ledgerport.Store      = (*mockLedgerStore)(nil)
	_ broadcast.Broadcaster = (*mockBroadcaster)(nil)
	_ messagequeue.Queue    = (*mockQueue)(nil)
	_ evaluator.Provider    = (*mockProvider)(nil)
)

// --- database store ---

type mockStore struct {
	mu          sync.Mutex
	nextID      int
	agents      map[string]agent.Agent
	covenants   map[string]covenant.Covenant
	proposals   map[string]proposal.Proposal
	evaluations map[string]map[string]evaluation.Evaluation // proposalID -> agentID -> eval
	nodes       map[string]decision.Node
}

func newMockStore() *mockStore {
	return &mockStore{
		agents:      make(map[string]agent.Agent),
		covenants:   make(map[string]covenant.Covenant),
		proposals:   make(map[string]proposal.Proposal),
		evaluations: make(map[string]map[string]evaluation.Evaluation),
		nodes:       make(map[string]decision.Node),
	}
}

func (m *mockStore) genID(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *mockStore) CreateAgent(_ context.Context, a *agent.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = m.genID("agent")
	}
	m.agents[a.ID] = *a
	return nil
}

func (m *mockStore) GetAgent(_ context.Context, id string) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	return &a, nil
}

func (m *mockStore) ListAgents(_ context.Context) ([]agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []agent.Agent
	for _, a := range m.agents {
		out = append(out, a)
	}
	agent.SortByID(out)
	return out, nil
}

func (m *mockStore) UpdateAgentWeight(_ context.Context, id string, weight float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Weight = weight
	m.agents[id] = a
	return nil
}

func (m *mockStore) UpdateAgentStatus(_ context.Context, id string, status agent.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Status = status
	m.agents[id] = a
	return nil
}

func (m *mockStore) DeleteAgent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.agents, id)
	return nil
}

func (m *mockStore) CreateCovenant(_ context.Context, c *covenant.Covenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = m.genID("cov")
	}
	m.covenants[c.ID] = *c
	return nil
}

func (m *mockStore) GetCovenant(_ context.Context, id string) (*covenant.Covenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.covenants[id]
	if !ok {
		return nil, fmt.Errorf("covenant %s: %w", id, domain.ErrNotFound)
	}
	return &c, nil
}

func (m *mockStore) CreateProposal(_ context.Context, p *proposal.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = m.genID("prop")
	}
	m.proposals[p.ID] = *p
	return nil
}

func (m *mockStore) GetProposal(_ context.Context, id string) (*proposal.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok {
		return nil, fmt.Errorf("proposal %s: %w", id, domain.ErrNotFound)
	}
	return &p, nil
}

func (m *mockStore) SetLiveNode(_ context.Context, proposalID, nodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[proposalID]
	if !ok {
		return domain.ErrNotFound
	}
	p.LiveNodeID = nodeID
	m.proposals[proposalID] = p
	return nil
}

func (m *mockStore) UpsertEvaluation(_ context.Context, e *evaluation.Evaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = m.genID("eval")
	}
	byAgent, ok := m.evaluations[e.ProposalID]
	if !ok {
		byAgent = make(map[string]evaluation.Evaluation)
		m.evaluations[e.ProposalID] = byAgent
	}
	byAgent[e.AgentID] = *e
	return nil
}

func (m *mockStore) ListEvaluations(_ context.Context, proposalID string) ([]evaluation.Evaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []evaluation.Evaluation
	for _, e := range m.evaluations[proposalID] {
		out = append(out, e)
	}
	evaluation.SortByAgentID(out)
	return out, nil
}

func (m *mockStore) CreateNode(_ context.Context, n *decision.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID == "" {
		n.ID = m.genID("node")
	}
	if n.State == "" {
		n.State = decision.StateOpen
	}
	m.nodes[n.ID] = *n
	return nil
}

func (m *mockStore) GetNode(_ context.Context, id string) (*decision.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, domain.ErrNotFound)
	}
	return &n, nil
}

func (m *mockStore) ListNodes(_ context.Context, proposalID string) ([]decision.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []decision.Node
	for _, n := range m.nodes {
		if n.ProposalID == proposalID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateNodeState(_ context.Context, nodeID string, state decision.State, resonance *float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[nodeID]
	if !ok {
		return domain.ErrNotFound
	}
	n.State = state
	if resonance != nil {
		n.Resonance = resonance
	}
	m.nodes[nodeID] = n
	return nil
}

// --- ledger store ---

type mockLedgerStore struct {
	mu      sync.Mutex
	chains  map[string][]dledger.Entry
	failing int // fail this many Append calls before succeeding
}

func newMockLedgerStore() *mockLedgerStore {
	return &mockLedgerStore{chains: make(map[string][]dledger.Entry)}
}

func (m *mockLedgerStore) Append(_ context.Context, e *dledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing > 0 {
		m.failing--
		return fmt.Errorf("transient store failure")
	}
	chain := m.chains[e.ProposalID]
	for i := range chain {
		if chain[i].Sequence == e.Sequence {
			return fmt.Errorf("sequence %d exists: %w", e.Sequence, domain.ErrConflict)
		}
	}
	m.chains[e.ProposalID] = append(chain, *e)
	return nil
}

func (m *mockLedgerStore) Last(_ context.Context, proposalID string) (*dledger.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chain := m.chains[proposalID]
	if len(chain) == 0 {
		return nil, nil
	}
	e := chain[len(chain)-1]
	return &e, nil
}

func (m *mockLedgerStore) Range(_ context.Context, proposalID string, from, to int64) ([]dledger.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []dledger.Entry
	for _, e := range m.chains[proposalID] {
		if e.Sequence < from {
			continue
		}
		if to > 0 && e.Sequence > to {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *mockLedgerStore) Bounds(_ context.Context, proposalID string) (first, last, count int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chain := m.chains[proposalID]
	if len(chain) == 0 {
		return 0, 0, 0, nil
	}
	return chain[0].Sequence, chain[len(chain)-1].Sequence, int64(len(chain)), nil
}

// --- broadcaster ---

type mockBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (m *mockBroadcaster) BroadcastEvent(_ context.Context, eventType string, _ any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
}

// --- message queue ---

type published struct {
	subject string
	data    []byte
}

type mockQueue struct {
	mu        sync.Mutex
	published []published
}

func (m *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, published{subject, data})
	return nil
}

func (m *mockQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (m *mockQueue) Drain() error      { return nil }
func (m *mockQueue) Close() error      { return nil }
func (m *mockQueue) IsConnected() bool { return true }

func (m *mockQueue) bySubject(subject string) []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []published
	for _, p := range m.published {
		if p.subject == subject {
			out = append(out, p)
		}
	}
	return out
}

// --- evaluation provider ---

type verdict struct {
	score      float64
	confidence float64
	err        error
}

type mockProvider struct {
	mu       sync.Mutex
	verdicts map[string]verdict // by agent ID
	reqs     []evaluator.Request
	delay    time.Duration
	inflight int
	peak     int // high-water mark of concurrent Evaluate calls
	calls    int
}

func newMockProvider() *mockProvider {
	return &mockProvider{verdicts: make(map[string]verdict)}
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) set(agentID string, score, confidence float64) {
	m.verdicts[agentID] = verdict{score: score, confidence: confidence}
}

func (m *mockProvider) fail(agentID string, err error) {
	m.verdicts[agentID] = verdict{err: err}
}

func (m *mockProvider) Evaluate(ctx context.Context, req evaluator.Request) (*evaluator.Result, error) {
	m.mu.Lock()
	m.calls++
	m.inflight++
	if m.inflight > m.peak {
		m.peak = m.inflight
	}
	m.reqs = append(m.reqs, req)
	v, ok := m.verdicts[req.AgentID]
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	defer func() {
		m.mu.Lock()
		m.inflight--
		m.mu.Unlock()
	}()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !ok {
		return nil, fmt.Errorf("no verdict configured for agent %s", req.AgentID)
	}
	if v.err != nil {
		return nil, v.err
	}
	return &evaluator.Result{
		Score:      v.score,
		Confidence: v.confidence,
		Evidence:   []string{"evidence from " + req.AgentID},
	}, nil
}
