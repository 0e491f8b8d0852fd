package aqua_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethsafari/opshub-go/internal/attest/aqua"
	"github.com/ethsafari/opshub-go/internal/config"
	"github.com/ethsafari/opshub-go/internal/httpclient"
)

func newHTTPClient() *httpclient.Client {
	return httpclient.New(&config.OutboundHTTPConfig{
		SSRFMode:         "off",
		TimeoutMS:        int((5 * time.Second).Milliseconds()),
		ConnectTimeoutMS: 1000,
		MaxRedirects:     1,
		MaxResponseBytes: 1 << 20,
	})
}

func TestAnchor_TreeHash(t *testing.T) {
	var gotAuth string
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{"tag":"ok","data":{"aquaTree":{"tree":{"hash":"0xabc"},"treeMapping":{"latestHash":"0xdef"}}}}`))
	}))
	defer srv.Close()

	c := aqua.New(newHTTPClient(), srv.URL, "svc-token")
	hash, err := c.Anchor(context.Background(), "approval-1.json", []byte(`{"k":1}`), "/attestations/approval")
	if err != nil {
		t.Fatalf("Anchor failed: %v", err)
	}
	if hash != "0xabc" {
		t.Errorf("expected tree hash to win, got %q", hash)
	}
	if gotAuth != "Bearer svc-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq["fileName"] != "approval-1.json" {
		t.Errorf("fileName = %v", gotReq["fileName"])
	}
	if gotReq["fileContent"] != `{"k":1}` {
		t.Errorf("fileContent = %v", gotReq["fileContent"])
	}
}

func TestAnchor_LatestHashFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tag":"ok","data":{"aquaTree":{"treeMapping":{"latestHash":"0xdef"}}}}`))
	}))
	defer srv.Close()

	c := aqua.New(newHTTPClient(), srv.URL, "t")
	hash, err := c.Anchor(context.Background(), "f.json", []byte(`{}`), "")
	if err != nil {
		t.Fatalf("Anchor failed: %v", err)
	}
	if hash != "0xdef" {
		t.Errorf("expected latest-mapping fallback, got %q", hash)
	}
}

func TestAnchor_NoHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tag":"ok","data":{"aquaTree":{}}}`))
	}))
	defer srv.Close()

	c := aqua.New(newHTTPClient(), srv.URL, "t")
	_, err := c.Anchor(context.Background(), "f.json", []byte(`{}`), "")
	if err != aqua.ErrNoHash {
		t.Errorf("expected ErrNoHash, got %v", err)
	}
}

func TestAnchor_ErrorTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tag":"error","logData":["sdk failed"]}`))
	}))
	defer srv.Close()

	c := aqua.New(newHTTPClient(), srv.URL, "t")
	_, err := c.Anchor(context.Background(), "f.json", []byte(`{}`), "")
	if err == nil {
		t.Fatal("expected error for error tag")
	}
}

func TestAnchor_ProviderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"aqua sdk disabled"}`))
	}))
	defer srv.Close()

	c := aqua.New(newHTTPClient(), srv.URL, "t")
	_, err := c.Anchor(context.Background(), "f.json", []byte(`{}`), "")
	if err == nil {
		t.Fatal("expected error for 503")
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"status":"ok","aquaEnabled":true}`))
	}))
	defer srv.Close()

	c := aqua.New(newHTTPClient(), srv.URL, "t")
	if err := c.Health(context.Background()); err != nil {
		t.Errorf("Health failed: %v", err)
	}
}
