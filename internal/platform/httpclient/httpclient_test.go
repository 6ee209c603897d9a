package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPostJSONSendsBearerAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/send" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth = %q", got)
		}
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["msg"]})
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/", "tok", 0, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	var out struct {
		Echo string `json:"echo"`
	}
	if err := c.PostJSON(context.Background(), "api/send", map[string]string{"msg": "hola"}, &out); err != nil {
		t.Fatalf("post: %v", err)
	}
	if out.Echo != "hola" {
		t.Fatalf("echo = %q", out.Echo)
	}
}

func TestPostJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, _ := New(srv.URL, "", 0, nil)
	err := c.PostJSON(context.Background(), "/x", nil, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusTooManyRequests || !se.Temporary() {
		t.Fatalf("unexpected %+v", se)
	}
}

func TestRelativePathNeedsBaseURL(t *testing.T) {
	c, _ := New("", "", 0, nil)
	if err := c.PostJSON(context.Background(), "/x", nil, nil); err == nil {
		t.Fatalf("expected error")
	}
}
