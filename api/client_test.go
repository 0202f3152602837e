package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yllada/vpn-client/common"
)

func TestClient_FetchServerList(t *testing.T) {
	var gotPath, gotAccept, gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		gotRequestID = r.Header.Get("X-Request-ID")
		w.Write([]byte(`{
			"Code": 1000,
			"LogicalServers": [
				{"id": "s1", "name": "IS#9", "exit_country": "IS", "load": 30, "enabled": true},
				{"id": "s2", "name": "CH#1", "exit_country": "CH", "load": 70, "enabled": false}
			],
			"UpdateTimestamp": 1700000000
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	list, err := client.FetchServerList(context.Background())
	if err != nil {
		t.Fatalf("FetchServerList() returned error: %v", err)
	}

	if gotPath != "/vpn/logicals" {
		t.Errorf("request path = %q, want /vpn/logicals", gotPath)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept header = %q", gotAccept)
	}
	if gotRequestID == "" {
		t.Error("X-Request-ID header missing")
	}

	if list.UpdatedAt() != 1700000000 {
		t.Errorf("UpdatedAt() = %d, want 1700000000", list.UpdatedAt())
	}
	if list.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", list.Len())
	}
	s, ok := list.GetByID("s2")
	if !ok {
		t.Fatal("server s2 missing")
	}
	if !s.UnderMaintenance() {
		t.Error("s2 should be under maintenance")
	}
}

func TestClient_FetchServerListErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			"server error",
			func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			common.ErrAPIUnreachable,
		},
		{
			"unauthorized",
			func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) },
			common.ErrNotLoggedIn,
		},
		{
			"malformed body",
			func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("not json")) },
			common.ErrMalformedResponse,
		},
		{
			"missing timestamp",
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"Code": 1000, "LogicalServers": [], "UpdateTimestamp": 0}`))
			},
			common.ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := NewClient(server.URL).FetchServerList(context.Background())
			if !errors.Is(err, tt.want) {
				t.Errorf("FetchServerList() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClient_FetchServerListUnreachable(t *testing.T) {
	// A closed server makes the transport fail outright.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := NewClient(server.URL).FetchServerList(context.Background())
	if !errors.Is(err, common.ErrAPIUnreachable) {
		t.Errorf("FetchServerList() = %v, want ErrAPIUnreachable", err)
	}
}

func TestClient_Login(t *testing.T) {
	var gotRequest authRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Errorf("could not decode login body: %v", err)
		}
		w.Write([]byte(`{"Code": 1000, "Token": "session-abc", "Tier": 2}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if err := client.Login(context.Background(), "alice", "hunter2"); err != nil {
		t.Fatalf("Login() returned error: %v", err)
	}

	if gotRequest.Username != "alice" || gotRequest.Password != "hunter2" {
		t.Errorf("login request = %+v", gotRequest)
	}
	if client.Token() != "session-abc" {
		t.Errorf("Token() = %q, want session-abc", client.Token())
	}
	if !client.HasSession() {
		t.Error("HasSession() = false after login")
	}
	if client.Tier() != 2 {
		t.Errorf("Tier() = %d, want 2", client.Tier())
	}
}

func TestClient_LoginEmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Code": 1000, "Token": ""}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Login(context.Background(), "alice", "hunter2")
	if !errors.Is(err, common.ErrMalformedResponse) {
		t.Errorf("Login() = %v, want ErrMalformedResponse", err)
	}
	if client.HasSession() {
		t.Error("HasSession() = true after failed login")
	}
}

func TestClient_AuthorizationHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"Code": 1000, "LogicalServers": [], "UpdateTimestamp": 1}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.SetToken("tok-123")
	if _, err := client.FetchServerList(context.Background()); err != nil {
		t.Fatal(err)
	}

	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization header = %q, want Bearer tok-123", gotAuth)
	}
}

func TestClient_LogoutClearsTokenEvenOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.SetToken("tok-123")

	if err := client.Logout(context.Background()); !errors.Is(err, common.ErrAPIUnreachable) {
		t.Errorf("Logout() = %v, want ErrAPIUnreachable", err)
	}
	if client.HasSession() {
		t.Error("HasSession() = true after logout")
	}
}

func TestClient_FetchClientConfig(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vpn/clientconfig" {
			t.Errorf("request path = %q", r.URL.Path)
		}
		w.Write([]byte(`{
			"Code": 1000,
			"UDPPorts": [443, 1194],
			"TCPPorts": [443],
			"PortForwarding": true,
			"LifetimeSeconds": 3600
		}`))
	}))
	defer server.Close()

	config, err := NewClient(server.URL).FetchClientConfig(context.Background())
	if err != nil {
		t.Fatalf("FetchClientConfig() returned error: %v", err)
	}

	if len(config.UDPPorts()) != 2 || config.UDPPorts()[0] != 443 {
		t.Errorf("UDPPorts() = %v", config.UDPPorts())
	}
	if len(config.TCPPorts()) != 1 {
		t.Errorf("TCPPorts() = %v", config.TCPPorts())
	}
	if !config.PortForwarding() {
		t.Error("PortForwarding() = false, want true")
	}
	if config.SecondsUntilExpiration() <= 0 {
		t.Errorf("SecondsUntilExpiration() = %v, want positive", config.SecondsUntilExpiration())
	}
}
