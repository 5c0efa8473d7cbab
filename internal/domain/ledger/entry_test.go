package ledger

import (
	"encoding/json"
	"testing"
)

func chainOf(t *testing.T, payloads ...any) []Entry {
	t.Helper()
	var entries []Entry
	prior := ""
	for i, p := range payloads {
		raw, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		e := Entry{
			ProposalID: "prop-1",
			Sequence:   int64(i + 1),
			Kind:       KindEvaluation,
			Payload:    raw,
		}
		e.Seal(prior)
		prior = e.ThisHash
		entries = append(entries, e)
	}
	return entries
}

func TestSealLinksChain(t *testing.T) {
	entries := chainOf(t,
		EvaluationPayload{AgentID: "agent-a", Score: 0.9, Confidence: 1, Weight: 1, Round: 1},
		EvaluationPayload{AgentID: "agent-b", Score: 0.8, Confidence: 1, Weight: 1, Round: 1},
	)

	if entries[0].PriorHash != "" {
		t.Errorf("genesis prior hash = %q, want empty", entries[0].PriorHash)
	}
	if entries[1].PriorHash != entries[0].ThisHash {
		t.Error("second entry does not link to first")
	}
	if entries[0].ThisHash == entries[1].ThisHash {
		t.Error("distinct payloads produced identical hashes")
	}
}

func TestVerifyChainFreshLedger(t *testing.T) {
	entries := chainOf(t,
		EvaluationPayload{AgentID: "agent-a", Score: 0.9, Confidence: 1, Weight: 1, Round: 1},
		TransitionPayload{NodeID: "n1", From: "open", To: "scoring", Reason: "dispatch"},
		TransitionPayload{NodeID: "n1", From: "scoring", To: "approved", Resonance: 0.9, Reason: "threshold met"},
	)

	ok, badSeq := VerifyChain(entries, "")
	if !ok {
		t.Fatalf("fresh chain failed verification at sequence %d", badSeq)
	}
}

func TestVerifyChainDetectsPayloadTampering(t *testing.T) {
	entries := chainOf(t,
		EvaluationPayload{AgentID: "agent-a", Score: 0.9, Confidence: 1, Weight: 1, Round: 1},
		EvaluationPayload{AgentID: "agent-b", Score: 0.8, Confidence: 1, Weight: 1, Round: 1},
		EvaluationPayload{AgentID: "agent-c", Score: 0.7, Confidence: 1, Weight: 1, Round: 1},
	)

	// Flip one byte in the middle entry's payload.
	tampered := append([]byte(nil), entries[1].Payload...)
	tampered[0] ^= 0xFF
	entries[1].Payload = tampered

	ok, badSeq := VerifyChain(entries, "")
	if ok {
		t.Fatal("tampered chain passed verification")
	}
	if badSeq != 2 {
		t.Errorf("bad sequence = %d, want 2", badSeq)
	}
}

func TestVerifyChainDetectsBrokenLink(t *testing.T) {
	entries := chainOf(t,
		EvaluationPayload{AgentID: "agent-a", Score: 0.9, Confidence: 1, Weight: 1, Round: 1},
		EvaluationPayload{AgentID: "agent-b", Score: 0.8, Confidence: 1, Weight: 1, Round: 1},
	)
	entries[1].PriorHash = "0000"
	entries[1].ThisHash = ComputeHash(entries[1].PriorHash, entries[1].Payload)

	ok, badSeq := VerifyChain(entries, "")
	if ok {
		t.Fatal("chain with broken link passed verification")
	}
	if badSeq != 2 {
		t.Errorf("bad sequence = %d, want 2", badSeq)
	}
}

func TestVerifyChainDetectsSequenceGap(t *testing.T) {
	entries := chainOf(t,
		EvaluationPayload{AgentID: "agent-a", Score: 0.9, Confidence: 1, Weight: 1, Round: 1},
		EvaluationPayload{AgentID: "agent-b", Score: 0.8, Confidence: 1, Weight: 1, Round: 1},
	)
	entries[1].Sequence = 5

	ok, badSeq := VerifyChain(entries, "")
	if ok {
		t.Fatal("chain with sequence gap passed verification")
	}
	if badSeq != 5 {
		t.Errorf("bad sequence = %d, want 5", badSeq)
	}
}

func TestVerifyChainMidRange(t *testing.T) {
	entries := chainOf(t,
		EvaluationPayload{AgentID: "agent-a", Score: 0.9, Confidence: 1, Weight: 1, Round: 1},
		EvaluationPayload{AgentID: "agent-b", Score: 0.8, Confidence: 1, Weight: 1, Round: 1},
		EvaluationPayload{AgentID: "agent-c", Score: 0.7, Confidence: 1, Weight: 1, Round: 1},
	)

	// Verify a slice starting past genesis with the predecessor's hash.
	ok, badSeq := VerifyChain(entries[1:], entries[0].ThisHash)
	if !ok {
		t.Fatalf("mid-range verification failed at sequence %d", badSeq)
	}
}

func TestVerifyChainEmpty(t *testing.T) {
	ok, badSeq := VerifyChain(nil, "")
	if !ok || badSeq != 0 {
		t.Errorf("empty chain: ok=%v badSeq=%d, want true 0", ok, badSeq)
	}
}

func TestComputeHashIsReproducible(t *testing.T) {
	payload := []byte(`{"agent_id":"a","score":0.9}`)
	h1 := ComputeHash("prior", payload)
	h2 := ComputeHash("prior", payload)
	if h1 != h2 {
		t.Error("identical inputs produced different hashes")
	}
	if h1 == ComputeHash("other", payload) {
		t.Error("different prior hashes produced identical hashes")
	}
}
