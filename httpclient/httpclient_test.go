package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rschio/huestream/errs"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewTLSServer(handler)
	c := New(srv.Listener.Addr().String(), WithHTTPClient(srv.Client()))
	return c, srv
}

func TestDoSetsHeaders(t *testing.T) {
	var gotKey, gotCT string
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("hue-application-key")
		gotCT = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()
	c.SetUsername("user123")

	resp, err := c.Do(context.Background(), http.MethodGet, "/clip/v2/resource/bridge", nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if gotKey != "user123" {
		t.Fatalf("expected hue-application-key header, got %q", gotKey)
	}
	if gotCT != "application/json" {
		t.Fatalf("expected Content-Type header, got %q", gotCT)
	}
}

func TestDoMapsNon2xx(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad"))
	})
	defer srv.Close()

	_, err := c.Do(context.Background(), http.MethodGet, "/x", nil)
	var httpErr *errs.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *errs.HTTPError, got %v", err)
	}
	if !errors.Is(err, errs.ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestGetJSON(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"swversion": 1962097030}`))
	})
	defer srv.Close()

	var dst struct {
		SWVersion int `json:"swversion"`
	}
	if err := c.GetJSON(context.Background(), "/api/config", &dst); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if dst.SWVersion != 1962097030 {
		t.Fatalf("got %d", dst.SWVersion)
	}
}
