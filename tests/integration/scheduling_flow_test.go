package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dcdock/dcdock/internal/audit"
	"github.com/dcdock/dcdock/internal/auth"
	"github.com/dcdock/dcdock/internal/database"
	"github.com/dcdock/dcdock/internal/dock"
	"github.com/dcdock/dcdock/internal/realtime"
	"github.com/dcdock/dcdock/internal/server"
	"github.com/dcdock/dcdock/internal/users"
)

const (
	signingSecret   = "integration-secret"
	adminEmail      = "admin@example.com"
	adminPassword   = "admin-password"
	jsonContentType = "application/json"
)

func TestSchedulingFlow(testContext *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite("file:integration?mode=memory&cache=shared", zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	userService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		testContext.Fatalf("failed to build user service: %v", err)
	}
	if _, err := userService.Create(context.Background(), users.CreateInput{
		Email:    adminEmail,
		FullName: "Integration Admin",
		Password: adminPassword,
		Role:     users.RoleAdmin,
	}); err != nil {
		testContext.Fatalf("failed to create admin: %v", err)
	}

	registry := realtime.NewRegistry()
	router := realtime.NewRouter(realtime.RouterConfig{Registry: registry})
	hub := realtime.NewHub(realtime.HubConfig{Registry: registry})

	dockService, err := dock.NewService(dock.ServiceConfig{
		Database: db,
		Recorder: audit.NewRecorder(time.Now),
		Notifier: router,
	})
	if err != nil {
		testContext.Fatalf("failed to build dock service: %v", err)
	}

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(signingSecret),
		Issuer:        "dcdock-auth",
		Audience:      "dcdock-api",
		TokenTTL:      time.Hour,
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Database:     db,
		TokenManager: tokenManager,
		UserService:  userService,
		DockService:  dockService,
		Hub:          hub,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}

	testServer := httptest.NewServer(handler)
	defer testServer.Close()

	accessToken := mustLogin(testContext, testServer.URL)

	rampID := mustCreateEntity(testContext, testServer.URL, accessToken, "/api/ramps", map[string]any{
		"code":      "R1",
		"direction": "IB",
		"type":      "PRIME",
	})
	loadID := mustCreateEntity(testContext, testServer.URL, accessToken, "/api/loads", map[string]any{
		"reference": "IB-2026-001",
		"direction": "IB",
	})
	statusID := mustCreateEntity(testContext, testServer.URL, accessToken, "/api/statuses", map[string]any{
		"code":       "PLANNED",
		"label":      "Planned",
		"color":      "#2563eb",
		"sort_order": 1,
	})

	wsConn := mustDialRealtime(testContext, testServer.URL, accessToken)
	defer wsConn.Close()

	ack := mustReadFrame(testContext, wsConn)
	if ack["type"] != "connection_ack" {
		testContext.Fatalf("expected connection_ack, got %v", ack["type"])
	}

	if err := wsConn.WriteJSON(map[string]any{"type": "subscribe"}); err != nil {
		testContext.Fatalf("subscribe failed: %v", err)
	}
	subscribeAck := mustReadFrame(testContext, wsConn)
	if subscribeAck["type"] != "subscribe_ack" {
		testContext.Fatalf("expected subscribe_ack, got %v", subscribeAck["type"])
	}

	assignmentID := mustCreateEntity(testContext, testServer.URL, accessToken, "/api/assignments", map[string]any{
		"ramp_id":   rampID,
		"load_id":   loadID,
		"status_id": statusID,
	})
	created := mustReadFrame(testContext, wsConn)
	if created["type"] != "assignment_created" {
		testContext.Fatalf("expected assignment_created, got %v", created["type"])
	}

	staleStatus, staleBody := doPatch(testContext, testServer.URL, accessToken, assignmentID, map[string]any{
		"version":   int64(99),
		"status_id": statusID,
	})
	if staleStatus != http.StatusConflict {
		testContext.Fatalf("expected 409 for stale version, got %d: %s", staleStatus, staleBody)
	}
	var conflictPayload struct {
		CurrentVersion  int64 `json:"current_version"`
		ProvidedVersion int64 `json:"provided_version"`
	}
	if err := json.Unmarshal(staleBody, &conflictPayload); err != nil {
		testContext.Fatalf("failed to decode conflict body: %v", err)
	}
	if conflictPayload.CurrentVersion != 1 || conflictPayload.ProvidedVersion != 99 {
		testContext.Fatalf("unexpected conflict payload: %+v", conflictPayload)
	}

	conflictFrame := mustReadFrame(testContext, wsConn)
	if conflictFrame["type"] != "conflict_detected" {
		testContext.Fatalf("expected conflict_detected, got %v", conflictFrame["type"])
	}
	if conflictFrame["current_version"].(float64) != 1 {
		testContext.Fatalf("unexpected broadcast current_version: %v", conflictFrame["current_version"])
	}

	updateStatus, updateBody := doPatch(testContext, testServer.URL, accessToken, assignmentID, map[string]any{
		"version":   int64(1),
		"status_id": statusID,
	})
	if updateStatus != http.StatusOK {
		testContext.Fatalf("expected 200 for current version, got %d: %s", updateStatus, updateBody)
	}
	var updatedAssignment struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(updateBody, &updatedAssignment); err != nil {
		testContext.Fatalf("failed to decode updated assignment: %v", err)
	}
	if updatedAssignment.Version != 2 {
		testContext.Fatalf("expected version 2 after update, got %d", updatedAssignment.Version)
	}

	updatedFrame := mustReadFrame(testContext, wsConn)
	if updatedFrame["type"] != "assignment_updated" {
		testContext.Fatalf("expected assignment_updated, got %v", updatedFrame["type"])
	}
	if updatedFrame["user_email"] != adminEmail {
		testContext.Fatalf("unexpected actor on broadcast: %v", updatedFrame["user_email"])
	}

	deleteReq, _ := http.NewRequest(http.MethodDelete, assignmentURL(testServer.URL, assignmentID), nil)
	deleteReq.Header.Set("Authorization", "Bearer "+accessToken)
	deleteResp, err := http.DefaultClient.Do(deleteReq)
	if err != nil {
		testContext.Fatalf("delete request failed: %v", err)
	}
	deleteResp.Body.Close()
	if deleteResp.StatusCode != http.StatusNoContent {
		testContext.Fatalf("unexpected delete status: %d", deleteResp.StatusCode)
	}

	deletedFrame := mustReadFrame(testContext, wsConn)
	if deletedFrame["type"] != "assignment_deleted" {
		testContext.Fatalf("expected assignment_deleted, got %v", deletedFrame["type"])
	}
}

func mustLogin(testContext *testing.T, baseURL string) string {
	testContext.Helper()

	body, _ := json.Marshal(map[string]string{"email": adminEmail, "password": adminPassword})
	response, err := http.Post(baseURL+"/api/auth/login", jsonContentType, bytes.NewReader(body))
	if err != nil {
		testContext.Fatalf("login request failed: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		testContext.Fatalf("unexpected login status: %d", response.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		testContext.Fatalf("failed to decode login response: %v", err)
	}
	if payload.AccessToken == "" {
		testContext.Fatalf("expected access token")
	}
	return payload.AccessToken
}

func mustCreateEntity(testContext *testing.T, baseURL, token, path string, payload map[string]any) int64 {
	testContext.Helper()

	body, _ := json.Marshal(payload)
	request, _ := http.NewRequest(http.MethodPost, baseURL+path, bytes.NewReader(body))
	request.Header.Set("Content-Type", jsonContentType)
	request.Header.Set("Authorization", "Bearer "+token)

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		testContext.Fatalf("create %s failed: %v", path, err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusCreated {
		testContext.Fatalf("unexpected status creating %s: %d", path, response.StatusCode)
	}

	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(response.Body).Decode(&created); err != nil {
		testContext.Fatalf("failed to decode %s response: %v", path, err)
	}
	if created.ID == 0 {
		testContext.Fatalf("expected id creating %s", path)
	}
	return created.ID
}

func mustDialRealtime(testContext *testing.T, baseURL, token string) *websocket.Conn {
	testContext.Helper()

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		testContext.Fatalf("websocket dial failed: %v", err)
	}
	return conn
}

func mustReadFrame(testContext *testing.T, conn *websocket.Conn) map[string]any {
	testContext.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		testContext.Fatalf("failed to set read deadline: %v", err)
	}
	var frame map[string]any
	if err := conn.ReadJSON(&frame); err != nil {
		testContext.Fatalf("failed to read frame: %v", err)
	}
	return frame
}

func doPatch(testContext *testing.T, baseURL, token string, assignmentID int64, payload map[string]any) (int, []byte) {
	testContext.Helper()

	body, _ := json.Marshal(payload)
	request, _ := http.NewRequest(http.MethodPatch, assignmentURL(baseURL, assignmentID), bytes.NewReader(body))
	request.Header.Set("Content-Type", jsonContentType)
	request.Header.Set("Authorization", "Bearer "+token)

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		testContext.Fatalf("patch request failed: %v", err)
	}
	defer response.Body.Close()

	var buffer bytes.Buffer
	if _, err := buffer.ReadFrom(response.Body); err != nil {
		testContext.Fatalf("failed to read patch body: %v", err)
	}
	return response.StatusCode, buffer.Bytes()
}

func assignmentURL(baseURL string, assignmentID int64) string {
	return baseURL + "/api/assignments/" + strconv.FormatInt(assignmentID, 10)
}
