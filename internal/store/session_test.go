package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisSessionRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	sessions := NewRedisSessionStore(srv.Addr(), "", time.Hour)

	token, err := sessions.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	uid, ok, err := sessions.GetUserIDByToken(token)
	if err != nil || !ok || uid != "user-1" {
		t.Fatalf("resolve: uid=%q ok=%v err=%v", uid, ok, err)
	}

	if err := sessions.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, err := sessions.GetUserIDByToken(token); err != nil || ok {
		t.Fatalf("deleted token still resolves: ok=%v err=%v", ok, err)
	}
}

func TestRedisSessionExpires(t *testing.T) {
	srv := miniredis.RunT(t)
	sessions := NewRedisSessionStore(srv.Addr(), "", time.Minute)

	token, err := sessions.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	srv.FastForward(2 * time.Minute)
	if _, ok, err := sessions.GetUserIDByToken(token); err != nil || ok {
		t.Fatalf("expired token still resolves: ok=%v err=%v", ok, err)
	}
}

func TestRedisSessionUnknownToken(t *testing.T) {
	srv := miniredis.RunT(t)
	sessions := NewRedisSessionStore(srv.Addr(), "", time.Hour)
	if _, ok, err := sessions.GetUserIDByToken("never-issued"); err != nil || ok {
		t.Fatalf("unknown token: ok=%v err=%v", ok, err)
	}
}

func TestJWTSessionRoundTrip(t *testing.T) {
	sessions, err := NewJWTSessionStore("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new jwt store: %v", err)
	}
	token, err := sessions.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	uid, ok, err := sessions.GetUserIDByToken(token)
	if err != nil || !ok || uid != "user-1" {
		t.Fatalf("resolve: uid=%q ok=%v err=%v", uid, ok, err)
	}
}

func TestJWTSessionRejectsForgedAndExpiredTokens(t *testing.T) {
	sessions, err := NewJWTSessionStore("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new jwt store: %v", err)
	}
	other, err := NewJWTSessionStore("other-secret", time.Hour)
	if err != nil {
		t.Fatalf("new jwt store: %v", err)
	}

	forged, err := other.NewSession("user-1")
	if err != nil {
		t.Fatalf("sign with other secret: %v", err)
	}
	if _, ok, err := sessions.GetUserIDByToken(forged); err != nil || ok {
		t.Fatalf("token signed with a different secret accepted")
	}

	expired, err := NewJWTSessionStore("test-secret", -time.Minute)
	if err != nil {
		t.Fatalf("new jwt store: %v", err)
	}
	stale, err := expired.NewSession("user-1")
	if err != nil {
		t.Fatalf("sign expired token: %v", err)
	}
	if _, ok, err := sessions.GetUserIDByToken(stale); err != nil || ok {
		t.Fatalf("expired token accepted")
	}

	if _, ok, err := sessions.GetUserIDByToken("not-a-jwt"); err != nil || ok {
		t.Fatalf("garbage token accepted")
	}
}

func TestJWTSessionRequiresSecret(t *testing.T) {
	if _, err := NewJWTSessionStore("", time.Hour); err == nil {
		t.Fatalf("expected an error for empty secret")
	}
}
