package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dcdock/dcdock/internal/dock"
)

func newStubServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var credentials struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil || credentials.Password != "correct-password" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "incorrect email or password"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "stub-token",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer stub-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": 7, "email": "operator@example.com"})
	})
	mux.HandleFunc("/api/assignments", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer stub-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("direction") == "OB" {
			json.NewEncoder(w).Encode([]any{})
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "version": 1, "load": map[string]any{"reference": "IB-2026-001", "direction": "IB"}},
		})
	})
	mux.HandleFunc("/api/assignments/1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var patch struct {
			Version int64 `json:"version"`
		}
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if patch.Version != 3 {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]any{
				"current_version":  3,
				"provided_version": patch.Version,
				"current_data":     map[string]any{"id": 1, "version": 3},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": 1, "version": 4})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func loggedInClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	apiClient := New(Config{BaseURL: baseURL})
	if _, err := apiClient.Login(context.Background(), "operator@example.com", "correct-password"); err != nil {
		t.Fatalf("unexpected login error: %v", err)
	}
	return apiClient
}

func TestLoginStoresTokenAndFetchesAccount(t *testing.T) {
	server := newStubServer(t)

	apiClient := New(Config{BaseURL: server.URL})
	account, err := apiClient.Login(context.Background(), "operator@example.com", "correct-password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if apiClient.Token() != "stub-token" {
		t.Fatalf("expected token stored, got %q", apiClient.Token())
	}
	if account.Email != "operator@example.com" {
		t.Fatalf("unexpected account: %+v", account)
	}
}

func TestLoginSurfacesAPIError(t *testing.T) {
	server := newStubServer(t)

	apiClient := New(Config{BaseURL: server.URL})
	_, err := apiClient.Login(context.Background(), "operator@example.com", "wrong-password")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", apiErr.StatusCode)
	}
	if apiErr.Detail != "incorrect email or password" {
		t.Fatalf("unexpected detail: %q", apiErr.Detail)
	}
}

func TestRequestsRequireLogin(t *testing.T) {
	server := newStubServer(t)

	apiClient := New(Config{BaseURL: server.URL})
	if _, err := apiClient.ListAssignments(context.Background(), ""); err == nil {
		t.Fatalf("expected error before login")
	}
}

func TestListAssignmentsPassesDirection(t *testing.T) {
	server := newStubServer(t)
	apiClient := loggedInClient(t, server.URL)

	all, err := apiClient.ListAssignments(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 1 || all[0].Load.Direction != dock.DirectionInbound {
		t.Fatalf("unexpected listing: %+v", all)
	}

	outbound, err := apiClient.ListAssignments(context.Background(), "OB")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outbound) != 0 {
		t.Fatalf("expected empty outbound listing, got %+v", outbound)
	}
}

func TestUpdateAssignmentConflict(t *testing.T) {
	server := newStubServer(t)
	apiClient := loggedInClient(t, server.URL)

	_, err := apiClient.UpdateAssignment(context.Background(), 1, AssignmentUpdate{Version: 1})

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected *ConflictError, got %v", err)
	}
	if conflict.CurrentVersion != 3 || conflict.ProvidedVersion != 1 {
		t.Fatalf("unexpected conflict: %+v", conflict)
	}
	if conflict.CurrentData.Version != 3 {
		t.Fatalf("expected the winning row on the conflict, got %+v", conflict.CurrentData)
	}

	updated, err := apiClient.UpdateAssignment(context.Background(), 1, AssignmentUpdate{Version: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Version != 4 {
		t.Fatalf("expected version 4, got %d", updated.Version)
	}
}
