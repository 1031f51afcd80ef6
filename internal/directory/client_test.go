package directory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newBot(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestAvatarFallsBackOnFailure(t *testing.T) {
	down := newBot(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	if got := down.Avatar(context.Background(), "alice#1"); got != DefaultAvatarURL {
		t.Fatalf("expected default avatar, got %q", got)
	}

	empty := newBot(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "success", "avatarUrl": ""})
	})
	if got := empty.Avatar(context.Background(), "alice#1"); got != DefaultAvatarURL {
		t.Fatalf("expected default avatar for empty url, got %q", got)
	}

	ok := newBot(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get-avatar/alice%231" && r.URL.Path != "/get-avatar/alice#1" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "success", "avatarUrl": "https://cdn.example/a.png"})
	})
	if got := ok.Avatar(context.Background(), "alice#1"); got != "https://cdn.example/a.png" {
		t.Fatalf("expected bot avatar, got %q", got)
	}
}

func TestCheckMember(t *testing.T) {
	bot := newBot(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"exists": true})
	})
	exists, err := bot.CheckMember(context.Background(), "alice#1")
	if err != nil {
		t.Fatalf("check member: %v", err)
	}
	if !exists {
		t.Fatal("expected member to exist")
	}
}

func TestSendCodeReturnsProfile(t *testing.T) {
	bot := newBot(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/send-code" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["discordTag"] != "alice#1" || req["code"] == "" {
			t.Errorf("unexpected payload %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"status":    "success",
			"name":      "Alice",
			"studentId": "20210001",
			"role":      "USER",
		})
	})

	p, err := bot.SendCode(context.Background(), "alice#1", "123456")
	if err != nil {
		t.Fatalf("send code: %v", err)
	}
	if p.Tag != "alice#1" || p.Name != "Alice" || p.StudentID != "20210001" {
		t.Fatalf("unexpected profile %+v", p)
	}
}

func TestSendCodeFailureStatus(t *testing.T) {
	bot := newBot(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "fail"})
	})
	if _, err := bot.SendCode(context.Background(), "alice#1", "123456"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSyncAllUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	bot := New(srv.URL)

	if _, err := bot.SyncAll(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSyncAllReturnsMembers(t *testing.T) {
	bot := newBot(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"members": []map[string]string{
				{"discordTag": "alice#1", "name": "Alice", "studentId": "20210001"},
				{"discordTag": "bob#2", "name": "Bob", "studentId": "20210002"},
			},
		})
	})

	members, err := bot.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("sync all: %v", err)
	}
	if len(members) != 2 || members[0].Tag != "alice#1" || members[1].Name != "Bob" {
		t.Fatalf("unexpected members %+v", members)
	}
}
