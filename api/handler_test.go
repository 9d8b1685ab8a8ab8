package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xraph/wormhole"
	"github.com/xraph/wormhole/api"
	"github.com/xraph/wormhole/signature"
	"github.com/xraph/wormhole/store/memory"
	"github.com/xraph/wormhole/transport/memtransport"
)

type env struct {
	srv       *httptest.Server
	relay     *wormhole.Relay
	transport *memtransport.Transport
}

// testServer creates a Handler backed by a memory store and a recording
// transport, with the relay's event loop running.
func testServer(t *testing.T, cfg api.Config) *env {
	t.Helper()

	tr := memtransport.New()
	r, err := wormhole.New(
		wormhole.WithStore(memory.New()),
		wormhole.WithTransport(tr),
		wormhole.WithOwnerID(1),
	)
	if err != nil {
		t.Fatal(err)
	}
	r.Start(context.Background())

	srv := httptest.NewServer(api.NewHandler(r, cfg, nil))
	t.Cleanup(func() {
		srv.Close()
		_ = r.Close(context.Background())
	})
	return &env{srv: srv, relay: r, transport: tr}
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, b)
	}
}

// link creates beam "general" without a guild prefix and binds the channels.
func (e *env) link(t *testing.T, channels ...string) {
	t.Helper()
	expectStatus(t, doJSON(t, "POST", e.srv.URL+"/beams", map[string]any{"name": "general", "admin_id": 1}), http.StatusCreated)
	expectStatus(t, doJSON(t, "PATCH", e.srv.URL+"/beams/general", map[string]any{"key": "anonymity", "value": "none"}), http.StatusOK)
	for _, ch := range channels {
		expectStatus(t, doJSON(t, "POST", e.srv.URL+"/wormholes", map[string]any{"beam": "general", "channel_id": ch}), http.StatusCreated)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// --- Beams ---

func TestBeams_CRUD(t *testing.T) {
	e := testServer(t, api.Config{})

	resp := doJSON(t, "POST", e.srv.URL+"/beams", map[string]any{"name": "general", "admin_id": 7})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	var b map[string]any
	decodeBody(t, resp, &b)
	if b["name"] != "general" || b["active"] != true || b["anonymity"] != "guild" {
		t.Fatalf("unexpected beam: %v", b)
	}

	expectStatus(t, doJSON(t, "POST", e.srv.URL+"/beams", map[string]any{"name": "general"}), http.StatusConflict)
	expectStatus(t, doJSON(t, "POST", e.srv.URL+"/beams", map[string]any{"name": "bad name"}), http.StatusBadRequest)
	expectStatus(t, doJSON(t, "GET", e.srv.URL+"/beams/missing", nil), http.StatusNotFound)

	resp = doJSON(t, "PATCH", e.srv.URL+"/beams/general", map[string]any{"key": "timeout", "value": "90"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set: expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &b)
	if b["timeout"] != float64(90) {
		t.Fatalf("timeout: got %v", b["timeout"])
	}

	expectStatus(t, doJSON(t, "PATCH", e.srv.URL+"/beams/general", map[string]any{"key": "colour", "value": "red"}), http.StatusBadRequest)
	expectStatus(t, doJSON(t, "PATCH", e.srv.URL+"/beams/general", map[string]any{"key": "timeout"}), http.StatusBadRequest)

	resp = doJSON(t, "POST", e.srv.URL+"/beams/general/close", nil)
	decodeBody(t, resp, &b)
	if b["active"] != false {
		t.Fatalf("expected closed beam, got %v", b)
	}

	resp = doJSON(t, "GET", e.srv.URL+"/beams", nil)
	var list []map[string]any
	decodeBody(t, resp, &list)
	if len(list) != 1 {
		t.Fatalf("expected 1 beam, got %d", len(list))
	}
}

// --- Wormholes ---

func TestWormholes_CRUD(t *testing.T) {
	e := testServer(t, api.Config{})
	e.link(t, "A", "B")

	expectStatus(t, doJSON(t, "POST", e.srv.URL+"/wormholes", map[string]any{"beam": "general", "channel_id": "A"}), http.StatusConflict)
	expectStatus(t, doJSON(t, "POST", e.srv.URL+"/wormholes", map[string]any{"beam": "missing", "channel_id": "C"}), http.StatusNotFound)
	expectStatus(t, doJSON(t, "POST", e.srv.URL+"/wormholes", map[string]any{"beam": "general"}), http.StatusBadRequest)

	resp := doJSON(t, "GET", e.srv.URL+"/wormholes?beam=general", nil)
	var list []map[string]any
	decodeBody(t, resp, &list)
	if len(list) != 2 || list[0]["channel_id"] != "A" {
		t.Fatalf("unexpected wormholes: %v", list)
	}

	resp = doJSON(t, "PATCH", e.srv.URL+"/wormholes/B", map[string]any{"key": "readonly", "value": "1"})
	var wh map[string]any
	decodeBody(t, resp, &wh)
	if wh["readonly"] != true {
		t.Fatalf("expected readonly wormhole, got %v", wh)
	}

	expectStatus(t, doJSON(t, "DELETE", e.srv.URL+"/wormholes/B", nil), http.StatusNoContent)
	expectStatus(t, doJSON(t, "GET", e.srv.URL+"/wormholes/B", nil), http.StatusNotFound)
}

func TestAdminAnnouncements(t *testing.T) {
	e := testServer(t, api.Config{Announce: true})
	e.link(t, "A", "B")

	// A was bound first, so it saw B's arrival.
	if got := e.transport.Messages("A"); len(got) == 0 {
		t.Fatal("expected an announcement in A")
	}

	before := len(e.transport.Messages("B"))
	expectStatus(t, doJSON(t, "POST", e.srv.URL+"/beams/general/close", nil), http.StatusOK)
	if got := e.transport.Messages("B"); len(got) != before+1 {
		t.Fatalf("expected a close announcement in B, got %d messages", len(got))
	}

	resp := doJSON(t, "POST", e.srv.URL+"/beams/general/announce", map[string]any{"text": "hello all"})
	var out map[string]any
	decodeBody(t, resp, &out)
	if out["delivered"] != float64(2) {
		t.Fatalf("delivered: got %v", out["delivered"])
	}
}

// --- Users ---

func TestUsers_Permissions(t *testing.T) {
	e := testServer(t, api.Config{})

	expectStatus(t, doJSON(t, "POST", e.srv.URL+"/users", map[string]any{"account_id": 10, "nickname": "mod"}), http.StatusCreated)
	expectStatus(t, doJSON(t, "POST", e.srv.URL+"/users", map[string]any{"account_id": 11, "nickname": "mod"}), http.StatusConflict)
	expectStatus(t, doJSON(t, "POST", e.srv.URL+"/users", map[string]any{"account_id": 12, "nickname": "(x)"}), http.StatusBadRequest)

	// The owner promotes 10; a non-owner then cannot touch it.
	expectStatus(t, doJSON(t, "PATCH", e.srv.URL+"/users/10", map[string]any{"key": "mod", "value": "1", "actor": 1}), http.StatusOK)
	expectStatus(t, doJSON(t, "PATCH", e.srv.URL+"/users/10", map[string]any{"key": "readonly", "value": "1", "actor": 10}), http.StatusForbidden)
	expectStatus(t, doJSON(t, "DELETE", e.srv.URL+"/users/10?actor=10", nil), http.StatusForbidden)
	expectStatus(t, doJSON(t, "GET", e.srv.URL+"/users/abc", nil), http.StatusBadRequest)

	expectStatus(t, doJSON(t, "DELETE", e.srv.URL+"/users/10?actor=1", nil), http.StatusNoContent)
	expectStatus(t, doJSON(t, "GET", e.srv.URL+"/users/10", nil), http.StatusNotFound)
}

// --- Ingress ---

func TestIngress_RelayEditDelete(t *testing.T) {
	e := testServer(t, api.Config{})
	e.link(t, "A", "B")

	resp := doJSON(t, "POST", e.srv.URL+"/events/messages", map[string]any{
		"id": "m1", "channel_id": "A", "author_id": 100, "content": "hi",
	})
	expectStatus(t, resp, http.StatusAccepted)
	waitFor(t, "copy in B", func() bool { return len(e.transport.Messages("B")) == 1 })

	expectStatus(t, doJSON(t, "PUT", e.srv.URL+"/events/messages/A/m1", map[string]any{"content": "hi there"}), http.StatusAccepted)
	waitFor(t, "edited copy", func() bool {
		got := e.transport.Messages("B")
		return len(got) == 1 && got[0].Text == "hi there"
	})

	expectStatus(t, doJSON(t, "DELETE", e.srv.URL+"/events/messages/A/m1", nil), http.StatusAccepted)
	waitFor(t, "deleted copy", func() bool { return len(e.transport.Messages("B")) == 0 })
}

func TestIngress_InvalidBody(t *testing.T) {
	e := testServer(t, api.Config{})

	expectStatus(t, doJSON(t, "POST", e.srv.URL+"/events/messages", map[string]any{"id": "m1", "author_id": 1}), http.StatusBadRequest)
	expectStatus(t, doJSON(t, "POST", e.srv.URL+"/events/messages", map[string]any{"id": "m1", "channel_id": "A", "author_id": "x"}), http.StatusBadRequest)
	expectStatus(t, doJSON(t, "PUT", e.srv.URL+"/events/messages/A/m1", map[string]any{}), http.StatusBadRequest)
}

func TestIngress_NotRunning(t *testing.T) {
	e := testServer(t, api.Config{})
	if err := e.relay.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}

	expectStatus(t, doJSON(t, "DELETE", e.srv.URL+"/events/messages/A/m1", nil), http.StatusServiceUnavailable)
}

func TestIngress_Signature(t *testing.T) {
	const secret = "wsec_test"
	e := testServer(t, api.Config{Secret: secret})

	body := []byte(`{"id":"m1","channel_id":"A","author_id":1,"content":"hi"}`)
	send := func(sign bool, at time.Time) *http.Response {
		req, err := http.NewRequestWithContext(context.Background(), "POST", e.srv.URL+"/events/messages", bytes.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		if sign {
			signature.SignRequest(req, body, secret, at)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}

	expectStatus(t, send(false, time.Now()), http.StatusUnauthorized)
	expectStatus(t, send(true, time.Now().Add(-time.Hour)), http.StatusUnauthorized)
	expectStatus(t, send(true, time.Now()), http.StatusAccepted)
}

// --- Failures & stats ---

func TestFailuresAndStats(t *testing.T) {
	e := testServer(t, api.Config{})
	e.link(t, "A", "B")
	e.transport.Fail("B", errors.New("unavailable"))

	expectStatus(t, doJSON(t, "POST", e.srv.URL+"/events/messages", map[string]any{
		"id": "m1", "channel_id": "A", "author_id": 100, "content": "hi",
	}), http.StatusAccepted)

	var entries []map[string]any
	waitFor(t, "failure entry", func() bool {
		resp := doJSON(t, "GET", e.srv.URL+"/failures?beam=general", nil)
		decodeBody(t, resp, &entries)
		return len(entries) == 1
	})
	if entries[0]["channel_id"] != "B" || entries[0]["op"] != "send" {
		t.Fatalf("unexpected failure: %v", entries[0])
	}

	expectStatus(t, doJSON(t, "GET", e.srv.URL+"/failures/"+entries[0]["id"].(string), nil), http.StatusOK)
	expectStatus(t, doJSON(t, "GET", e.srv.URL+"/failures/nope", nil), http.StatusBadRequest)

	var stats map[string]any
	waitFor(t, "message counter", func() bool {
		resp := doJSON(t, "GET", e.srv.URL+"/stats", nil)
		decodeBody(t, resp, &stats)
		return stats["messages"] == float64(1)
	})
	if stats["beams"] != float64(1) || stats["wormholes"] != float64(2) || stats["messages"] != float64(1) || stats["failures"] != float64(1) {
		t.Fatalf("unexpected stats: %v", stats)
	}

	expectStatus(t, doJSON(t, "DELETE", e.srv.URL+"/failures", nil), http.StatusBadRequest)
	resp := doJSON(t, "DELETE", e.srv.URL+"/failures?before="+time.Now().Add(time.Minute).UTC().Format(time.RFC3339), nil)
	var purged map[string]any
	decodeBody(t, resp, &purged)
	if purged["purged"] != float64(1) {
		t.Fatalf("purged: got %v", purged)
	}
}
