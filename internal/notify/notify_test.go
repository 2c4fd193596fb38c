package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type failingNotifier struct{ err error }

func (f failingNotifier) Notify(context.Context, Notification) error { return f.err }

type recordingNotifier struct{ got []Notification }

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.got = append(r.got, n)
	return nil
}

func TestLogNotifierLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	notifier := NewLogNotifier(zap.New(core))

	_ = notifier.Notify(context.Background(), Notification{Title: "ok", Variant: VariantDefault})
	_ = notifier.Notify(context.Background(), Notification{Title: "bad", Variant: VariantDestructive})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[1].Level != zapcore.WarnLevel {
		t.Fatalf("unexpected levels %v %v", entries[0].Level, entries[1].Level)
	}
	if entries[1].ContextMap()["title"] != "bad" {
		t.Fatalf("unexpected fields %v", entries[1].ContextMap())
	}
}

func TestMultiDeliversToAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	rec := &recordingNotifier{}
	multi := Multi{failingNotifier{err: boom}, nil, rec}

	err := multi.Notify(context.Background(), Notification{Title: "t"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error to contain boom, got %v", err)
	}
	if len(rec.got) != 1 {
		t.Fatalf("expected recording notifier to still receive the notification")
	}
}

func TestHubBroadcastsToSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber did not register")
		}
		time.Sleep(5 * time.Millisecond)
	}

	want := Notification{Title: "Analysis complete", Description: "Detected letter: A (92% confidence)", Variant: VariantDefault}
	if err := hub.Notify(context.Background(), want); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var got Notification
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Title != want.Title || got.Description != want.Description || got.Variant != want.Variant {
		t.Fatalf("unexpected notification %+v", got)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber was not removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubRejectsCrossOriginHandshake(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"Origin": []string{"http://elsewhere.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		conn.Close()
		t.Fatal("expected cross-origin handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}
	if hub.Subscribers() != 0 {
		t.Fatal("expected no subscriber to be registered")
	}

	header = http.Header{"Origin": []string{srv.URL}}
	conn, _, err = websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("same-origin dial failed: %v", err)
	}
	conn.Close()
}

func TestHubNotifyWithoutSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	if err := hub.Notify(context.Background(), Notification{Title: "nobody"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
