package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ciadmin/ciadmin/pkg/engine"
)

type recordedRequest struct {
	method string
	path   string
	auth   string
	body   map[string]interface{}
}

// fakeService records requests and answers them with handler.
func fakeService(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			method: r.Method,
			path:   r.URL.EscapedPath(),
			auth:   r.Header.Get("Authorization"),
		}
		if r.Body != nil && r.ContentLength > 0 {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		requests = append(requests, rec)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(&Config{
		RootURL:     srv.URL,
		ClientID:    "static/ciadmin",
		AccessToken: "secret",
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c, &requests
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{"nil config", nil, true},
		{"missing root", &Config{}, true},
		{"bad scheme", &Config{RootURL: "ftp://example.com"}, true},
		{"valid", &Config{RootURL: "https://tc.example.com/"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewClient() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && c.RootURL() != "https://tc.example.com" {
				t.Errorf("Expected trailing slash to be trimmed, got %s", c.RootURL())
			}
		})
	}
}

func TestClient_Roles(t *testing.T) {
	c, requests := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(w, []Role{{RoleID: "repo:github.com/org/*", Description: "d", Scopes: []string{"a"}}})
			return
		}
		writeJSON(w, map[string]string{})
	})
	ctx := context.Background()

	roles, err := c.ListRoles(ctx)
	if err != nil {
		t.Fatalf("ListRoles failed: %v", err)
	}
	if len(roles) != 1 || roles[0].RoleID != "repo:github.com/org/*" {
		t.Errorf("Unexpected roles: %+v", roles)
	}

	role := Role{RoleID: "ignored", Description: "desc", Scopes: []string{"x", "y"}}
	if err := c.CreateRole(ctx, "project:a/b", role); err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}
	if err := c.UpdateRole(ctx, "project:a/b", role); err != nil {
		t.Fatalf("UpdateRole failed: %v", err)
	}
	if err := c.DeleteRole(ctx, "project:a/b"); err != nil {
		t.Fatalf("DeleteRole failed: %v", err)
	}

	got := *requests
	if len(got) != 4 {
		t.Fatalf("Expected 4 requests, got %d", len(got))
	}

	wantCalls := []struct{ method, path string }{
		{http.MethodGet, "/api/auth/v1/roles"},
		{http.MethodPut, "/api/auth/v1/roles/project:a%2Fb"},
		{http.MethodPost, "/api/auth/v1/roles/project:a%2Fb"},
		{http.MethodDelete, "/api/auth/v1/roles/project:a%2Fb"},
	}
	for i, want := range wantCalls {
		if got[i].method != want.method || got[i].path != want.path {
			t.Errorf("Request %d: expected %s %s, got %s %s", i, want.method, want.path, got[i].method, got[i].path)
		}
		if got[i].auth != "Bearer secret" {
			t.Errorf("Request %d: missing credentials", i)
		}
	}

	if _, ok := got[1].body["roleId"]; ok {
		t.Error("roleId must not be sent in the body")
	}
	if got[1].body["description"] != "desc" {
		t.Errorf("Unexpected body: %v", got[1].body)
	}
}

func TestClient_Hooks(t *testing.T) {
	c, requests := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/hooks/v1/hooks":
			writeJSON(w, hookGroupList{Groups: []string{"garbage"}})
		case "/api/hooks/v1/hooks/garbage":
			writeJSON(w, hookList{Hooks: []Hook{{HookGroupID: "garbage", HookID: "test"}}})
		default:
			writeJSON(w, map[string]string{})
		}
	})
	ctx := context.Background()

	groups, err := c.ListHookGroups(ctx)
	if err != nil || len(groups) != 1 || groups[0] != "garbage" {
		t.Fatalf("ListHookGroups = %v, %v", groups, err)
	}

	hooks, err := c.ListHooks(ctx, "garbage")
	if err != nil || len(hooks) != 1 || hooks[0].HookID != "test" {
		t.Fatalf("ListHooks = %v, %v", hooks, err)
	}

	hook := Hook{Metadata: HookMetadata{Name: "n"}}
	if err := c.CreateHook(ctx, "garbage", "test", hook); err != nil {
		t.Fatalf("CreateHook failed: %v", err)
	}
	if err := c.UpdateHook(ctx, "garbage", "test", hook); err != nil {
		t.Fatalf("UpdateHook failed: %v", err)
	}
	if err := c.RemoveHook(ctx, "garbage", "test"); err != nil {
		t.Fatalf("RemoveHook failed: %v", err)
	}

	got := *requests
	if got[2].method != http.MethodPut || got[2].path != "/api/hooks/v1/hooks/garbage/test" {
		t.Errorf("Unexpected create request: %s %s", got[2].method, got[2].path)
	}
	if got[2].body["hookGroupId"] != "garbage" || got[2].body["hookId"] != "test" {
		t.Errorf("Expected hook ids in body, got %v", got[2].body)
	}
	if got[3].method != http.MethodPost {
		t.Errorf("Expected POST for update, got %s", got[3].method)
	}
	if got[4].method != http.MethodDelete {
		t.Errorf("Expected DELETE for remove, got %s", got[4].method)
	}
}

func TestClient_WorkerTypes(t *testing.T) {
	c, requests := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/aws-provisioner/v1/list-worker-types":
			writeJSON(w, []string{"gecko-b-1"})
		case r.Method == http.MethodGet:
			writeJSON(w, WorkerType{Owner: "me", LastModified: "2019-01-01T00:00:00Z"})
		default:
			writeJSON(w, map[string]string{})
		}
	})
	ctx := context.Background()

	names, err := c.ListWorkerTypes(ctx)
	if err != nil || len(names) != 1 {
		t.Fatalf("ListWorkerTypes = %v, %v", names, err)
	}

	wt, err := c.GetWorkerType(ctx, "gecko-b-1")
	if err != nil {
		t.Fatalf("GetWorkerType failed: %v", err)
	}
	if wt.WorkerType != "gecko-b-1" || wt.Owner != "me" {
		t.Errorf("Unexpected worker type: %+v", wt)
	}

	if err := c.CreateWorkerType(ctx, "gecko-b-1", *wt); err != nil {
		t.Fatalf("CreateWorkerType failed: %v", err)
	}
	if err := c.UpdateWorkerType(ctx, "gecko-b-1", *wt); err != nil {
		t.Fatalf("UpdateWorkerType failed: %v", err)
	}
	if err := c.RemoveWorkerType(ctx, "gecko-b-1"); err != nil {
		t.Fatalf("RemoveWorkerType failed: %v", err)
	}

	got := *requests
	if _, ok := got[2].body["lastModified"]; ok {
		t.Error("lastModified must not be sent back")
	}
	if got[3].path != "/api/aws-provisioner/v1/worker-type/gecko-b-1/update" {
		t.Errorf("Unexpected update path: %s", got[3].path)
	}
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		wantClass engine.ErrorClass
		wantCode  string
	}{
		{http.StatusBadRequest, engine.ErrorClassPermanent, engine.ErrCodeValidation},
		{http.StatusUnauthorized, engine.ErrorClassPermanent, engine.ErrCodePermissionDenied},
		{http.StatusForbidden, engine.ErrorClassPermanent, engine.ErrCodePermissionDenied},
		{http.StatusNotFound, engine.ErrorClassPermanent, engine.ErrCodeNotFound},
		{http.StatusConflict, engine.ErrorClassConflict, engine.ErrCodeConflict},
		{http.StatusTooManyRequests, engine.ErrorClassThrottled, engine.ErrCodeRateLimited},
		{http.StatusInternalServerError, engine.ErrorClassTransient, engine.ErrCodeInternal},
		{http.StatusBadGateway, engine.ErrorClassTransient, engine.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c, _ := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				writeJSON(w, errorBody{Code: "SomeError", Message: "went wrong"})
			})

			err := c.DeleteRole(context.Background(), "r")
			if err == nil {
				t.Fatal("Expected error")
			}

			var engErr *engine.EngineError
			if !errors.As(err, &engErr) {
				t.Fatalf("Expected EngineError, got %T", err)
			}
			if engErr.Class != tt.wantClass {
				t.Errorf("Expected class %s, got %s", tt.wantClass, engErr.Class)
			}
			if engErr.Code != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, engErr.Code)
			}
			if engErr.Details["remote_code"] != "SomeError" {
				t.Errorf("Expected remote code detail, got %v", engErr.Details)
			}
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := NewClient(&Config{RootURL: srv.URL, RequestTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	err = c.DeleteRole(context.Background(), "slow")
	if !engine.IsTransient(err) {
		t.Fatalf("Expected transient error, got %v", err)
	}
	if engine.CodeOf(err) != engine.ErrCodeTimeout {
		t.Errorf("Expected timeout code, got %q", engine.CodeOf(err))
	}
}
