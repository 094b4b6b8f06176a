// Package fixtures holds the bundled review sets served when a provider is
// unreachable or returns nothing.
package fixtures

import (
	"embed"
	"fmt"

	"github.com/goccy/go-json"

	"flex_reviews/internal/domain"
)

//go:embed hostaway.json places.json
var files embed.FS

var byName = map[domain.Source]string{
	domain.SourceHostaway: "hostaway.json",
	domain.SourcePlaces:   "places.json",
}

// Load decodes every bundled file into a dataset keyed by source.
func Load() (domain.FallbackDataset, error) {
	out := make(domain.FallbackDataset, len(byName))
	for src, name := range byName {
		b, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read fixture %s: %w", name, err)
		}
		var raws []domain.RawReview
		if err := json.Unmarshal(b, &raws); err != nil {
			return nil, fmt.Errorf("decode fixture %s: %w", name, err)
		}
		out[src] = raws
	}
	return out, nil
}

// MustLoad is Load for main packages; the files are compiled in, so a failure is a build defect.
func MustLoad() domain.FallbackDataset {
	d, err := Load()
	if err != nil {
		panic(err)
	}
	return d
}
