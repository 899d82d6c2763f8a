package replicate

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/Sternrassler/stac-siphon/internal/testutil"
	"github.com/Sternrassler/stac-siphon/pkg/client"
	"github.com/Sternrassler/stac-siphon/pkg/dedupe"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// newHTTPClient creates a client with millisecond retry backoff.
func newHTTPClient(t *testing.T) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig("stac-siphon-test/1.0")
	cfg.Timeout = 5 * time.Second
	cfg.Retry = client.RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        time.Millisecond,
		BackoffMultiplier: 1,
	}

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	return c
}

// newTwoPageCatalog serves items a, b on the first page and c on the
// second, linked by a relative next href.
func newTwoPageCatalog(t *testing.T) *testutil.MockCatalog {
	t.Helper()

	mock := testutil.NewMockCatalog()
	t.Cleanup(mock.Close)

	mock.SetPage("/collections/foo/items", testutil.PageJSON([]string{"a", "b"}, "page2"))
	mock.SetPage("/collections/foo/page2", testutil.PageJSON([]string{"c"}, ""))
	return mock
}

func runOptions(mock *testutil.MockCatalog) Options {
	return Options{
		Source:      mock.URL(),
		Destination: mock.URL() + "/collections/foo",
		Bulk:        true,
		Replicator:  DefaultReplicatorConfig(),
	}
}

// postPaths lists "path:id" for every POST, in order.
func postPaths(mock *testutil.MockCatalog) []string {
	var out []string
	for _, p := range mock.Posts() {
		out = append(out, p.Path+":"+p.ID())
	}
	return out
}

func TestRun_EndToEnd(t *testing.T) {
	mock := newTwoPageCatalog(t)

	stats, err := Run(context.Background(), newHTTPClient(t), runOptions(mock))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{
		"/collections:foo",
		"/collections/foo/items:a",
		"/collections/foo/items:b",
		"/collections/foo/items:c",
	}
	if got := postPaths(mock); !reflect.DeepEqual(got, want) {
		t.Errorf("POSTs = %v, want %v", got, want)
	}
	if stats.Pages != 2 || stats.Written != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRun_WriteFailureAborts(t *testing.T) {
	mock := newTwoPageCatalog(t)
	mock.FailItem("b", http.StatusBadRequest)

	stats, err := Run(context.Background(), newHTTPClient(t), runOptions(mock))

	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("Run() error = %v, want WriteError", err)
	}
	if writeErr.ItemID != "b" {
		t.Errorf("ItemID = %q, want b", writeErr.ItemID)
	}
	if client.StatusCode(err) != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", client.StatusCode(err))
	}

	if got := mock.WrittenItemIDs(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("item writes = %v, want [a b]", got)
	}
	for _, r := range mock.Requests() {
		if r.Path == "/collections/foo/page2" {
			t.Error("second page fetched after abort")
		}
	}
	if stats.Written != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRun_WriteFailureContinueMode(t *testing.T) {
	mock := newTwoPageCatalog(t)
	mock.FailItem("b", http.StatusBadRequest)

	opts := runOptions(mock)
	opts.Replicator.Mode = ModeContinue

	stats, err := Run(context.Background(), newHTTPClient(t), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := mock.WrittenItemIDs(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("item writes = %v, want [a b c]", got)
	}
	if stats.Written != 2 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRun_MalformedDestinationMakesNoRequests(t *testing.T) {
	mock := newTwoPageCatalog(t)

	opts := runOptions(mock)
	opts.Destination = "no-separator"

	_, err := Run(context.Background(), newHTTPClient(t), opts)

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Run() error = %v, want ConfigError", err)
	}
	if n := mock.GetRequestCount(); n != 0 {
		t.Errorf("%d requests issued, want 0", n)
	}
}

func TestRun_MalformedSourceMakesNoRequests(t *testing.T) {
	mock := newTwoPageCatalog(t)

	opts := runOptions(mock)
	opts.Source = "not a url"

	_, err := Run(context.Background(), newHTTPClient(t), opts)

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Run() error = %v, want ConfigError", err)
	}
	if n := mock.GetRequestCount(); n != 0 {
		t.Errorf("%d requests issued, want 0", n)
	}
}

func TestRun_ProvisionFailureReadsNothing(t *testing.T) {
	mock := newTwoPageCatalog(t)
	mock.SetCollectionStatus(http.StatusForbidden)

	_, err := Run(context.Background(), newHTTPClient(t), runOptions(mock))

	var provErr *ProvisionError
	if !errors.As(err, &provErr) {
		t.Fatalf("Run() error = %v, want ProvisionError", err)
	}
	for _, r := range mock.Requests() {
		if r.Method == http.MethodGet {
			t.Errorf("source read after failed provisioning: %s", r.Path)
		}
	}
}

func TestRun_SourceFailure(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetPage("/collections/foo/items", testutil.PageJSON([]string{"a"}, "/broken"))
	mock.SetResponse(http.MethodGet, "/broken", testutil.NewServerErrorResponse())

	_, err := Run(context.Background(), newHTTPClient(t), runOptions(mock))

	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("Run() error = %v, want ReadError", err)
	}
	if !errors.Is(err, client.ErrRetryExhausted) {
		t.Errorf("expected page read to be retried before failing: %v", err)
	}
	if got := mock.WrittenItemIDs(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("item writes = %v, want [a]", got)
	}
}

func TestRun_SourceCollectionOverride(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetPage("/collections/upstream/items", testutil.PageJSON([]string{"x"}, ""))

	opts := runOptions(mock)
	opts.SourceCollection = "upstream"
	opts.PageSize = 50

	if _, err := Run(context.Background(), newHTTPClient(t), opts); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := mock.WrittenItemIDs(); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("item writes = %v, want [x]", got)
	}
	for _, r := range mock.Requests() {
		if r.Method == http.MethodGet && r.Query != "limit=50" {
			t.Errorf("page request query = %q, want limit=50", r.Query)
		}
	}
}

// Replication is not idempotent: a second run creates every item again.
func TestRun_TwiceDuplicatesItems(t *testing.T) {
	mock := newTwoPageCatalog(t)
	c := newHTTPClient(t)

	for i := 0; i < 2; i++ {
		if _, err := Run(context.Background(), c, runOptions(mock)); err != nil {
			t.Fatalf("run %d: Run() error = %v", i+1, err)
		}
	}

	want := []string{"a", "b", "c", "a", "b", "c"}
	if got := mock.WrittenItemIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("item writes = %v, want %v", got, want)
	}
}

func TestRun_TwiceWithDedupeStore(t *testing.T) {
	mock := newTwoPageCatalog(t)
	c := newHTTPClient(t)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	opts := runOptions(mock)
	opts.TolerateConflict = true
	opts.Replicator.Seen = dedupe.NewStore(redisClient, 0)

	if _, err := Run(context.Background(), c, opts); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	mock.SetCollectionStatus(http.StatusConflict)
	stats, err := Run(context.Background(), c, opts)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if got := mock.WrittenItemIDs(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("item writes = %v, want [a b c]", got)
	}
	if stats.Skipped != 3 || stats.Written != 0 {
		t.Errorf("second run stats = %+v", stats)
	}
}

func TestRun_ResumeAfterFailureWithDedupeStore(t *testing.T) {
	mock := newTwoPageCatalog(t)
	mock.FailItem("c", http.StatusServiceUnavailable)
	c := newHTTPClient(t)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	opts := runOptions(mock)
	opts.TolerateConflict = true
	opts.Replicator.Seen = dedupe.NewStore(redisClient, 0)

	if _, err := Run(context.Background(), c, opts); err == nil {
		t.Fatal("first Run() should fail on item c")
	}

	mock.AcceptItem("c")
	mock.SetCollectionStatus(http.StatusConflict)
	if _, err := Run(context.Background(), c, opts); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	want := []string{"a", "b", "c", "c"}
	if got := mock.WrittenItemIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("item writes = %v, want %v", got, want)
	}
}
