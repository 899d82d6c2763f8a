package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestPush(t *testing.T) {
	var gotMethod, gotPath, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "siphon_test_items_total",
		Help: "test counter",
	})
	reg.MustRegister(counter)
	counter.Add(3)

	err := Push(context.Background(), server.URL, "", reg, map[string]string{"collection": "foo"})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	if gotMethod != http.MethodPut {
		t.Errorf("Method = %s, want PUT", gotMethod)
	}
	if !strings.HasPrefix(gotPath, "/metrics/job/"+DefaultJob) || !strings.Contains(gotPath, "/collection/foo") {
		t.Errorf("Path = %q", gotPath)
	}
	if !strings.Contains(gotBody, "siphon_test_items_total") {
		t.Errorf("pushed body does not contain the metric")
	}
}

func TestPush_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if err := Push(context.Background(), server.URL, "job", prometheus.NewRegistry(), nil); err == nil {
		t.Error("Push() should fail when the gateway rejects the push")
	}
}

func TestPush_NoURL(t *testing.T) {
	if err := Push(context.Background(), "", "job", nil, nil); err == nil {
		t.Error("Push() should require a url")
	}
}
