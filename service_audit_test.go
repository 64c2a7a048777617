package authcore_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/heartnote/authcore"
)

func TestAuditTrailOmitsSecrets(t *testing.T) {
	ctx := authcore.WithClientIP(context.Background(), "203.0.113.7")
	h := newHarness(t)
	h.addUser(t, "audit@x.com")

	for i := 0; i < 5; i++ {
		_, _ = h.svc.Login(ctx, "audit@x.com", "wrong-password")
	}
	_, _ = h.svc.Login(ctx, "audit@x.com", testPassword)
	h.clock.Advance(16 * time.Minute)
	res, err := h.svc.Login(ctx, "audit@x.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	_ = h.svc.Logout(ctx, res.Tokens.RefreshToken)

	// 5 failures + lockout_triggered + login_locked + login_success + logout
	events := h.drainAudit(t, 9)

	types := make(map[string]int)
	for _, e := range events {
		types[e.EventType]++
		if e.IP != "203.0.113.7" {
			t.Fatalf("event %s lost client IP: %q", e.EventType, e.IP)
		}
		blob := e.Error
		for k, v := range e.Metadata {
			blob += k + v
		}
		for _, secret := range []string{testPassword, "wrong-password", res.Tokens.RefreshToken, res.Tokens.AccessToken} {
			if strings.Contains(blob, secret) {
				t.Fatalf("event %s leaked a secret", e.EventType)
			}
		}
	}

	want := map[string]int{
		"login_failure":     5,
		"lockout_triggered": 1,
		"login_locked":      1,
		"login_success":     1,
		"logout":            1,
	}
	for k, n := range want {
		if types[k] != n {
			t.Fatalf("event %s seen %d times, want %d (all: %v)", k, types[k], n, types)
		}
	}
	if h.svc.AuditDropped() != 0 {
		t.Fatalf("unexpected dropped events: %d", h.svc.AuditDropped())
	}
}

func TestAuditErrorCodes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, _ = h.svc.Login(ctx, "nobody@x.com", "pw-guess-1")
	_, _ = h.svc.Refresh(ctx, "garbage")

	events := h.drainAudit(t, 2)
	if events[0].EventType != "login_failure" || events[0].Error != "invalid_credentials" || events[0].Identity != "nobody@x.com" {
		t.Fatalf("unexpected login event %+v", events[0])
	}
	if events[1].EventType != "refresh_invalid" || events[1].Error != "invalid_token" {
		t.Fatalf("unexpected refresh event %+v", events[1])
	}
}
