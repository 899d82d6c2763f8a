package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/Sternrassler/stac-siphon/internal/testutil"
)

func TestParseDestination(t *testing.T) {
	tests := []struct {
		name     string
		dst      string
		wantBase string
		wantID   string
		wantErr  bool
	}{
		{
			name:     "collection url",
			dst:      "https://example.org/collections/foo",
			wantBase: "https://example.org/collections",
			wantID:   "foo",
		},
		{
			name:     "splits at last separator",
			dst:      "https://example.org/api/v1/collections/sentinel-2-l2a",
			wantBase: "https://example.org/api/v1/collections",
			wantID:   "sentinel-2-l2a",
		},
		{name: "no separator", dst: "foo", wantErr: true},
		{name: "empty", dst: "", wantErr: true},
		{name: "trailing slash", dst: "https://example.org/collections/", wantErr: true},
		{name: "no host", dst: "https://foo", wantErr: true},
		{name: "relative", dst: "collections/foo", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDestination(tt.dst)
			if tt.wantErr {
				var cfgErr *ConfigError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("ParseDestination(%q) error = %v, want ConfigError", tt.dst, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDestination(%q) error = %v", tt.dst, err)
			}
			if d.CollectionsURL != tt.wantBase || d.CollectionID != tt.wantID {
				t.Errorf("ParseDestination(%q) = %+v, want base %q id %q", tt.dst, d, tt.wantBase, tt.wantID)
			}
			if d.URL() != tt.dst {
				t.Errorf("URL() = %q, want %q", d.URL(), tt.dst)
			}
			if d.ItemsURL() != tt.dst+"/items" {
				t.Errorf("ItemsURL() = %q", d.ItemsURL())
			}
		})
	}
}

func TestProvisioner_PostsMinimalCollection(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()

	dest, err := ParseDestination(mock.URL() + "/collections/foo")
	if err != nil {
		t.Fatalf("ParseDestination() error = %v", err)
	}

	p := NewProvisioner(newHTTPClient(t), false)
	if err := p.Provision(context.Background(), dest); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	posts := mock.Posts()
	if len(posts) != 1 {
		t.Fatalf("got %d POSTs, want 1", len(posts))
	}
	if posts[0].Path != "/collections" {
		t.Errorf("POST path = %q, want /collections", posts[0].Path)
	}

	var body map[string]any
	if err := json.Unmarshal(posts[0].Body, &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["id"] != "foo" || body["title"] != "foo" {
		t.Errorf("body id/title = %v/%v, want foo/foo", body["id"], body["title"])
	}
}

func TestProvisioner_Failure(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetCollectionStatus(http.StatusInternalServerError)

	dest, _ := ParseDestination(mock.URL() + "/collections/foo")
	err := NewProvisioner(newHTTPClient(t), true).Provision(context.Background(), dest)

	var provErr *ProvisionError
	if !errors.As(err, &provErr) {
		t.Fatalf("Provision() error = %v, want ProvisionError", err)
	}
	if provErr.CollectionID != "foo" {
		t.Errorf("CollectionID = %q, want foo", provErr.CollectionID)
	}
	if len(mock.Posts()) != 1 {
		t.Errorf("collection create must not be retried, got %d POSTs", len(mock.Posts()))
	}
}

func TestProvisioner_Conflict(t *testing.T) {
	tests := []struct {
		name     string
		tolerate bool
		wantErr  bool
	}{
		{name: "conflict is fatal by default", tolerate: false, wantErr: true},
		{name: "conflict tolerated", tolerate: true, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockCatalog()
			defer mock.Close()
			mock.SetCollectionStatus(http.StatusConflict)

			dest, _ := ParseDestination(mock.URL() + "/collections/foo")
			err := NewProvisioner(newHTTPClient(t), tt.tolerate).Provision(context.Background(), dest)

			if tt.wantErr != (err != nil) {
				t.Errorf("Provision() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
