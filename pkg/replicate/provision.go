package replicate

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/Sternrassler/stac-siphon/pkg/client"
	"github.com/Sternrassler/stac-siphon/pkg/logging"
	"github.com/Sternrassler/stac-siphon/pkg/stac"
	"github.com/rs/zerolog"
)

// Writer creates documents at a destination endpoint.
type Writer interface {
	PostJSON(ctx context.Context, url string, body any) error
}

// Destination is a parsed destination collection URL.
type Destination struct {
	// CollectionsURL is everything before the last "/"
	CollectionsURL string
	// CollectionID is everything after it
	CollectionID string
}

// ParseDestination splits a <collections-base>/<collection-id> URL at its last
// "/". It returns a *ConfigError if there is no separator, the id is empty or
// the base is not an absolute URL.
func ParseDestination(dst string) (Destination, error) {
	i := strings.LastIndex(dst, "/")
	if i < 0 {
		return Destination{}, &ConfigError{Input: dst, Reason: "no '/' separator between collections URL and collection id"}
	}

	d := Destination{CollectionsURL: dst[:i], CollectionID: dst[i+1:]}
	if d.CollectionID == "" {
		return Destination{}, &ConfigError{Input: dst, Reason: "empty collection id"}
	}

	u, err := url.Parse(d.CollectionsURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return Destination{}, &ConfigError{Input: dst, Reason: "collections URL is not an absolute URL"}
	}

	return d, nil
}

// URL returns the destination collection URL.
func (d Destination) URL() string {
	return d.CollectionsURL + "/" + d.CollectionID
}

// ItemsURL returns the item creation endpoint of the destination collection.
func (d Destination) ItemsURL() string {
	return d.URL() + "/items"
}

// Provisioner creates the destination collection.
type Provisioner struct {
	writer           Writer
	tolerateConflict bool
	logger           zerolog.Logger
}

// NewProvisioner creates a provisioner. With tolerateConflict a 409 Conflict
// answer is taken to mean the collection already exists.
func NewProvisioner(writer Writer, tolerateConflict bool) *Provisioner {
	return &Provisioner{
		writer:           writer,
		tolerateConflict: tolerateConflict,
		logger:           logging.NewLogger("provisioner"),
	}
}

// Provision POSTs a minimal collection to d.CollectionsURL. Any failure is
// returned as a *ProvisionError.
func (p *Provisioner) Provision(ctx context.Context, d Destination) error {
	err := p.writer.PostJSON(ctx, d.CollectionsURL, stac.NewCollection(d.CollectionID))
	if err == nil {
		collectionsProvisionedTotal.WithLabelValues("created").Inc()
		p.logger.Info().
			Str("collection_id", d.CollectionID).
			Str("url", d.CollectionsURL).
			Msg("Collection created")
		return nil
	}

	if p.tolerateConflict && client.StatusCode(err) == http.StatusConflict {
		collectionsProvisionedTotal.WithLabelValues("exists").Inc()
		p.logger.Warn().
			Str("collection_id", d.CollectionID).
			Msg("Collection already exists, continuing")
		return nil
	}

	collectionsProvisionedTotal.WithLabelValues("failed").Inc()
	return &ProvisionError{URL: d.CollectionsURL, CollectionID: d.CollectionID, Err: err}
}
