package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/camrover/internal/app"
	"github.com/ayusman/camrover/internal/display"
	"github.com/ayusman/camrover/internal/store"
)

func TestAPI_JournalWorkflow(t *testing.T) {
	// Setup
	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	srv := New(Config{Store: s, Controller: &fakeController{}})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer srv.Shutdown(t.Context())

	client := ts.Client()

	// 1. Journal a command the way the link observer does
	entry := &store.Entry{Kind: store.KindCommand, Name: "FORWARD", Value: 1, Status: 200, Latency: 12 * time.Millisecond}
	if err := s.Commands().Record(entry); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	// 2. List it
	resp, err := client.Get(ts.URL + "/api/commands")
	if err != nil {
		t.Fatalf("GET /api/commands error = %v", err)
	}
	var list struct {
		Session  string         `json:"session"`
		Total    int            `json:"total"`
		Commands []*store.Entry `json:"commands"`
	}
	json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()

	if list.Session != s.SessionID() {
		t.Errorf("session = %q, want %q", list.Session, s.SessionID())
	}
	if list.Total != 1 || len(list.Commands) != 1 {
		t.Fatalf("list = %+v, want one entry", list)
	}
	if list.Commands[0].Latency != 12*time.Millisecond {
		t.Errorf("latency = %v, want 12ms", list.Commands[0].Latency)
	}

	// 3. Fetch it by ID
	resp, err = client.Get(ts.URL + "/api/commands/" + entry.ID)
	if err != nil {
		t.Fatalf("GET /api/commands/{id} error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET by id status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// 4. Queue a manual command through the control API
	resp, err = client.Post(ts.URL+"/api/command", "application/json", bytes.NewBufferString(`{"command":"stop"}`))
	if err != nil {
		t.Fatalf("POST /api/command error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("POST /api/command status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestAPI_StatusWebSocket(t *testing.T) {
	c := &fakeController{}
	c.setMode(app.ModeIdle.String())

	srv := New(Config{Controller: c, StatusEvery: 20 * time.Millisecond})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer srv.Shutdown(t.Context())

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	// The first message is sent on connect.
	var snap app.Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if snap.Mode != app.ModeIdle.String() {
		t.Errorf("initial mode = %q, want %q", snap.Mode, app.ModeIdle.String())
	}

	// Later pushes pick up state changes.
	c.setMode(app.ModeHandFollowing.String())
	for snap.Mode != app.ModeHandFollowing.String() {
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("ReadJSON() waiting for mode change error = %v", err)
		}
	}
}

func TestAPI_MJPEGStream(t *testing.T) {
	hub := display.NewHub()
	defer hub.Close()

	if err := hub.Show(testFrame(t)); err != nil {
		t.Fatalf("Show() error = %v", err)
	}

	srv := New(Config{Hub: hub})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/stream")
	if err != nil {
		t.Fatalf("GET /api/stream error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "multipart/x-mixed-replace; boundary=frame" {
		t.Fatalf("Content-Type = %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("reading boundary error = %v", err)
	}
	if strings.TrimSpace(line) != "--frame" {
		t.Errorf("first line = %q, want --frame", line)
	}
	line, _ = r.ReadString('\n')
	if strings.TrimSpace(line) != "Content-Type: image/jpeg" {
		t.Errorf("part header = %q", line)
	}
}
