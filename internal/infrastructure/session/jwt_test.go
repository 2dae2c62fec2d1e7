package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"agritrace/internal/domain/lot"
	"agritrace/internal/ports"
)

const testSecret = "0123456789abcdef-test-secret"

func TestIssueAndResolveRoundTrip(t *testing.T) {
	issuer, err := NewJWTIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewJWTIssuer() error = %v", err)
	}
	actor, err := NewActor("Dana", " Dana@Example.com ", "0xabc", "Distributor")
	if err != nil {
		t.Fatalf("NewActor() error = %v", err)
	}

	token, expiresAt, err := issuer.Issue(context.Background(), actor)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expiresAt = %v", expiresAt)
	}

	got, err := issuer.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if diff := cmp.Diff(actor, got); diff != "" {
		t.Fatalf("actor mismatch (-want +got):\n%s", diff)
	}
	if got.Role != lot.RoleDistributor || got.Email != "dana@example.com" {
		t.Fatalf("actor = %+v", got)
	}
}

func TestActorIDIsDeterministic(t *testing.T) {
	a, err := NewActor("Ana", "ana@example.com", "", "farmer")
	if err != nil {
		t.Fatalf("NewActor() error = %v", err)
	}
	b, err := NewActor("Ana B.", "ANA@example.com", "", "retailer")
	if err != nil {
		t.Fatalf("NewActor() error = %v", err)
	}
	if a.ID != b.ID {
		t.Fatalf("ids differ: %s vs %s", a.ID, b.ID)
	}

	if _, err := NewActor("", "", "", "farmer"); err == nil {
		t.Fatalf("NewActor() expected error without name or email")
	}
	if _, err := NewActor("Ana", "", "", "consumer"); !errors.Is(err, lot.ErrUnknownRole) {
		t.Fatalf("NewActor() error = %v, want ErrUnknownRole", err)
	}
}

func TestResolveRejectsTamperedAndExpiredTokens(t *testing.T) {
	issuer, err := NewJWTIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewJWTIssuer() error = %v", err)
	}
	actor, _ := NewActor("Ana", "", "", "farmer")

	other, _ := NewJWTIssuer("another-secret-of-enough-length", time.Hour)
	foreign, _, err := other.Issue(context.Background(), actor)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := issuer.Resolve(context.Background(), foreign); !errors.Is(err, ports.ErrInvalidSession) {
		t.Fatalf("Resolve(foreign) error = %v", err)
	}

	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := issuer.Issue(context.Background(), actor)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	issuer.now = time.Now
	if _, err := issuer.Resolve(context.Background(), expired); !errors.Is(err, ports.ErrInvalidSession) {
		t.Fatalf("Resolve(expired) error = %v", err)
	}

	if _, err := NewJWTIssuer("short", time.Hour); err == nil {
		t.Fatalf("NewJWTIssuer() expected error for short secret")
	}
}
