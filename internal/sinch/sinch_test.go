package sinch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"frontbridge/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestClient_Send(t *testing.T) {
	var got SendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client1" || pass != "secret1" {
			t.Errorf("missing or wrong basic auth: %s/%s", user, pass)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		json.NewEncoder(w).Encode(SendResponse{MessageID: "sinch-msg-1"})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{
		SendURL:      srv.URL,
		AppID:        "app1",
		ClientID:     "client1",
		ClientSecret: "secret1",
		Logger:       testLogger(),
	})

	id, err := c.Send(context.Background(), "abc", AppMessage{TextMessage: &TextMessage{Text: "hi"}})
	if err != nil {
		t.Fatal(err)
	}
	if id != "sinch-msg-1" {
		t.Errorf("expected message id sinch-msg-1, got %s", id)
	}
	if got.AppID != "app1" {
		t.Errorf("expected app_id app1, got %s", got.AppID)
	}
	if got.Recipient.ContactID != "abc" {
		t.Errorf("expected contact_id abc, got %s", got.Recipient.ContactID)
	}
	if got.Message.TextMessage == nil || got.Message.TextMessage.Text != "hi" {
		t.Errorf("unexpected message payload %+v", got.Message)
	}
	if got.Message.MediaMessage != nil {
		t.Error("text send must not carry media_message")
	}
}

func TestClient_Send_RejectsAmbiguousMessage(t *testing.T) {
	c := NewClient(ClientConfig{SendURL: "http://unused", Logger: testLogger()})

	both := AppMessage{
		TextMessage:  &TextMessage{Text: "hi"},
		MediaMessage: &MediaMessage{URL: "https://x/y.png"},
	}
	if _, err := c.Send(context.Background(), "abc", both); !errors.Is(err, domain.ErrAmbiguousContent) {
		t.Errorf("both variants: expected ErrAmbiguousContent, got %v", err)
	}
	if _, err := c.Send(context.Background(), "abc", AppMessage{}); !errors.Is(err, domain.ErrAmbiguousContent) {
		t.Errorf("no variant: expected ErrAmbiguousContent, got %v", err)
	}
}

func TestClient_Send_SingleAttempt(t *testing.T) {
	// A send that fails transiently must not be re-issued: the first
	// attempt may have been delivered, and a second would duplicate the
	// message for the end user.
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "try again", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(SendResponse{MessageID: "dup"})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{SendURL: srv.URL, Logger: testLogger()})

	_, err := c.Send(context.Background(), "abc", AppMessage{TextMessage: &TextMessage{Text: "hi"}})
	var up *domain.UpstreamError
	if !errors.As(err, &up) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if up.Status != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", up.Status)
	}
	if hits.Load() != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", hits.Load())
	}
}

func TestClient_Send_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid app", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{SendURL: srv.URL, Logger: testLogger()})

	_, err := c.Send(context.Background(), "abc", AppMessage{TextMessage: &TextMessage{Text: "hi"}})
	var up *domain.UpstreamError
	if !errors.As(err, &up) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if up.Provider != "sinch" || up.Status != http.StatusUnauthorized {
		t.Errorf("unexpected upstream error %+v", up)
	}
}
