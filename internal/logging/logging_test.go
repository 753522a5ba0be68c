package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	t.Parallel()

	l, err := New("production", "debug")
	if err != nil {
		t.Fatal(err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug enabled")
	}

	l, err = New("development", "nope")
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(zapcore.DebugLevel) || !l.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("expected info fallback")
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	if FromContext(context.Background()) == nil {
		t.Fatal("expected nop logger")
	}
	l := zap.NewExample()
	if got := FromContext(WithLogger(context.Background(), l)); got != l {
		t.Fatal("expected stored logger")
	}
	if RequestID(context.Background()) != "" {
		t.Fatal("expected empty request id")
	}
}

func TestMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	orig := newRequestID
	t.Cleanup(func() { newRequestID = orig })
	newRequestID = func() string { return "generated" }

	var seenID string
	h := Middleware(zap.New(core), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = RequestID(r.Context())
		FromContext(r.Context()).Info("inside")
		switch r.URL.Path {
		case "/boom":
			w.WriteHeader(http.StatusInternalServerError)
		case "/implicit":
		default:
			_, _ = w.Write([]byte("ok"))
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seenID != "abc" || rec.Header().Get(RequestIDHeader) != "abc" {
		t.Fatalf("id=%q header=%q", seenID, rec.Header().Get(RequestIDHeader))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if seenID != "generated" {
		t.Fatalf("id=%q", seenID)
	}

	req = httptest.NewRequest(http.MethodGet, "/implicit", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seenID != "generated" {
		t.Fatalf("id=%q", seenID)
	}

	if n := logs.FilterMessage("inside").FilterField(zap.String("request_id", "abc")).Len(); n != 1 {
		t.Fatalf("inside logs=%d", n)
	}
	failed := logs.FilterMessage("http request failed").All()
	if len(failed) != 1 || failed[0].ContextMap()["status"] != int64(500) {
		t.Fatalf("failed=%v", failed)
	}
	done := logs.FilterMessage("http request completed").All()
	if len(done) != 2 || done[0].ContextMap()["bytes"] != int64(2) || done[1].ContextMap()["status"] != int64(200) {
		t.Fatalf("done=%v", done)
	}

	if Middleware(nil, http.NotFoundHandler()) == nil {
		t.Fatal("expected handler")
	}
}
