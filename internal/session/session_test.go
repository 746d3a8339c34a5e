package session

import (
	"testing"
	"time"
)

func TestIssueAndValidateRoundTrip(t *testing.T) {
	m := NewManager("test-secret", time.Minute, nil)
	defer m.Stop()

	token := m.Issue(Snapshot{PlayerID: "p1", WorldID: "w1", Name: "Hero"})

	snap, err := m.Validate(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.PlayerID != "p1" || snap.WorldID != "w1" {
		t.Errorf("unexpected snapshot returned: %+v", snap)
	}
}

func TestValidateConsumesTokenOnce(t *testing.T) {
	m := NewManager("test-secret", time.Minute, nil)
	defer m.Stop()

	token := m.Issue(Snapshot{PlayerID: "p1"})
	if _, err := m.Validate(token); err != nil {
		t.Fatalf("unexpected error on first validate: %v", err)
	}
	if _, err := m.Validate(token); err == nil {
		t.Error("expected a second validate of the same token to fail (replay)")
	}
}

func TestValidateRejectsTamperedSignature(t *testing.T) {
	m := NewManager("test-secret", time.Minute, nil)
	defer m.Stop()

	token := m.Issue(Snapshot{PlayerID: "p1"})
	tampered := token[:len(token)-1] + "x"

	if _, err := m.Validate(tampered); err == nil {
		t.Error("expected a tampered token to fail signature verification")
	}
}

func TestValidateRejectsUnknownSecret(t *testing.T) {
	issuer := NewManager("secret-a", time.Minute, nil)
	defer issuer.Stop()
	verifier := NewManager("secret-b", time.Minute, nil)
	defer verifier.Stop()

	token := issuer.Issue(Snapshot{PlayerID: "p1"})
	if _, err := verifier.Validate(token); err == nil {
		t.Error("expected a token signed with a different secret to fail")
	}
}

func TestValidateExpiredTokenFiresCallback(t *testing.T) {
	var released *Snapshot
	m := NewManager("test-secret", time.Millisecond, func(snap *Snapshot) {
		released = snap
	})
	defer m.Stop()

	token := m.Issue(Snapshot{PlayerID: "p1", Name: "Hero"})
	time.Sleep(5 * time.Millisecond)

	if _, err := m.Validate(token); err == nil {
		t.Error("expected expired token to be rejected")
	}
	if released == nil || released.Name != "Hero" {
		t.Errorf("expected onExpire to fire with the expired snapshot, got %+v", released)
	}
}

func TestRevokeInvalidatesToken(t *testing.T) {
	m := NewManager("test-secret", time.Minute, nil)
	defer m.Stop()

	token := m.Issue(Snapshot{PlayerID: "p1"})
	m.Revoke(token)

	if _, err := m.Validate(token); err == nil {
		t.Error("expected a revoked token to fail validation")
	}
}

func TestCountReflectsPendingSessions(t *testing.T) {
	m := NewManager("test-secret", time.Minute, nil)
	defer m.Stop()

	m.Issue(Snapshot{PlayerID: "p1"})
	m.Issue(Snapshot{PlayerID: "p2"})

	if got := m.Count(); got != 2 {
		t.Errorf("expected count 2, got %d", got)
	}
}
