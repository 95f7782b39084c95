package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hikevindiaz/voicebridge/pkg/realtime"
)

func TestAdminListSessions(t *testing.T) {
	reg := NewRegistry()
	s, _, _ := newIdleSession("CA1")
	if err := reg.Register(s); err != nil {
		t.Fatalf("Register: %v", err)
	}

	srv := httptest.NewServer(AdminHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/admin/sessions")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var infos []SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(infos) != 1 || infos[0].CallID != "CA1" {
		t.Errorf("infos = %+v", infos)
	}
	if infos[0].State != StateConnecting {
		t.Errorf("state = %v", infos[0].State)
	}
}

func TestAdminHangup(t *testing.T) {
	reg := NewRegistry()
	s, conn, link := newIdleSession("CA1")
	if err := reg.Register(s); err != nil {
		t.Fatalf("Register: %v", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()
	link.events <- ModelEvent{Event: &realtime.ServerEvent{Type: realtime.EventSessionUpdated}}
	waitState(t, s, StateListening)
	_ = conn

	srv := httptest.NewServer(AdminHandler(reg))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/admin/sessions/CA1/hangup", "", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
	if err := waitDone(t, errCh); err != nil {
		t.Errorf("Run returned %v", err)
	}

	resp, err = http.Post(srv.URL+"/admin/sessions/CAnope/hangup", "", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown call status = %d, want 404", resp.StatusCode)
	}
}
