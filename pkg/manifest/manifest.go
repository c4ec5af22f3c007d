// Package manifest inspects published image manifest lists.
package manifest

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// Verifier checks that a pushed image's manifest list covers the platforms
// a release was built for. `Fetch` retrieves the index manifest for an
// image reference; when nil, manifests are fetched from the image's
// registry.
type Verifier struct {
	Fetch func(ctx context.Context, image string) (*v1.IndexManifest, error)
}

// VerifyPlatforms fails unless the image's manifest list contains an entry
// for every wanted platform (e.g. `linux/amd64`). Extra entries, such as
// attestation manifests, are ignored.
func (verifier *Verifier) VerifyPlatforms(
	ctx context.Context,
	image string,
	platforms []string,
) error {
	fetch := verifier.Fetch
	if fetch == nil {
		fetch = FetchIndexManifest
	}

	index, err := fetch(ctx, image)
	if err != nil {
		return fmt.Errorf("verifying image `%s`: %w", image, err)
	}

	found := map[string]bool{}
	for i := range index.Manifests {
		platform := index.Manifests[i].Platform
		if platform == nil {
			continue
		}
		found[platform.OS+"/"+platform.Architecture] = true
	}

	for _, platform := range platforms {
		if !found[platform] {
			return fmt.Errorf(
				"verifying image `%s`: manifest list missing platform `%s`",
				image,
				platform,
			)
		}
	}

	return nil
}

// FetchIndexManifest fetches an image's index manifest from its registry.
func FetchIndexManifest(
	ctx context.Context,
	image string,
) (*v1.IndexManifest, error) {
	ref, err := name.ParseReference(image)
	if err != nil {
		return nil, fmt.Errorf("parsing image reference: %w", err)
	}

	desc, err := remote.Get(ref, remote.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching manifest: %w", err)
	}

	index, err := desc.ImageIndex()
	if err != nil {
		return nil, fmt.Errorf("interpreting manifest as index: %w", err)
	}

	manifest, err := index.IndexManifest()
	if err != nil {
		return nil, fmt.Errorf("decoding index manifest: %w", err)
	}

	return manifest, nil
}
