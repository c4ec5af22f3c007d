package manifest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	v1 "github.com/google/go-containerregistry/pkg/v1"
)

func index(platforms ...[2]string) *v1.IndexManifest {
	var manifests []v1.Descriptor
	for _, platform := range platforms {
		manifests = append(manifests, v1.Descriptor{
			Platform: &v1.Platform{
				OS:           platform[0],
				Architecture: platform[1],
			},
		})
	}
	return &v1.IndexManifest{Manifests: manifests}
}

func TestVerifier_VerifyPlatforms(t *testing.T) {
	for _, testCase := range []struct {
		name      string
		index     *v1.IndexManifest
		fetchErr  error
		platforms []string
		wantedErr string
	}{
		{
			name: "covered",
			index: index(
				[2]string{"linux", "amd64"},
				[2]string{"linux", "arm64"},
			),
			platforms: []string{"linux/amd64", "linux/arm64"},
		},
		{
			name: "attestation entries ignored",
			index: &v1.IndexManifest{Manifests: []v1.Descriptor{
				{Platform: &v1.Platform{OS: "linux", Architecture: "amd64"}},
				{Platform: &v1.Platform{OS: "linux", Architecture: "arm64"}},
				{Platform: &v1.Platform{
					OS:           "unknown",
					Architecture: "unknown",
				}},
				{},
			}},
			platforms: []string{"linux/amd64", "linux/arm64"},
		},
		{
			name:      "missing platform",
			index:     index([2]string{"linux", "amd64"}),
			platforms: []string{"linux/amd64", "linux/arm64"},
			wantedErr: "manifest list missing platform `linux/arm64`",
		},
		{
			name:      "fetch failure",
			fetchErr:  fmt.Errorf("MANIFEST_UNKNOWN"),
			platforms: []string{"linux/amd64"},
			wantedErr: "MANIFEST_UNKNOWN",
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			verifier := Verifier{
				Fetch: func(
					ctx context.Context,
					image string,
				) (*v1.IndexManifest, error) {
					if testCase.fetchErr != nil {
						return nil, testCase.fetchErr
					}
					return testCase.index, nil
				},
			}

			err := verifier.VerifyPlatforms(
				context.Background(),
				"stormdb/stormdb:community-v2.4.0",
				testCase.platforms,
			)

			if testCase.wantedErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf(
					"wanted error containing `%s`; found `nil`",
					testCase.wantedErr,
				)
			}
			if !strings.Contains(err.Error(), testCase.wantedErr) {
				t.Fatalf(
					"wanted error containing `%s`; found `%v`",
					testCase.wantedErr,
					err,
				)
			}
		})
	}
}
