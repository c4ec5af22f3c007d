// Package stage moves freshly compiled binaries into the fixed layout the
// image build expects.
package stage

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/weberc2/releaser/pkg/release"
)

// Stager relocates build artifacts into a per-variant staging tree. Staged
// artifacts live at `linux/<platform>/<binary>` under `Root`; image
// descriptors copy them from exactly those paths. Each variant stages into
// its own root, so concurrent variants never touch the same tree.
type Stager struct {
	Root string
}

// Stage moves every artifact into the staging tree and returns the
// artifacts with `StagedPath` filled in. An artifact whose source binary
// doesn't exist fails staging with a `*release.ArtifactMissingErr`.
func (stager *Stager) Stage(
	artifacts []release.BuildArtifact,
) ([]release.BuildArtifact, error) {
	staged := make([]release.BuildArtifact, len(artifacts))
	for i := range artifacts {
		artifact := artifacts[i]
		dir := filepath.Join(stager.Root, "linux", artifact.Platform)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf(
				"staging artifacts for variant `%s`: %w",
				artifact.Variant,
				err,
			)
		}

		target := filepath.Join(dir, artifact.Binary)
		if err := os.Rename(artifact.SourcePath, target); err != nil {
			if os.IsNotExist(err) {
				return nil, &release.ArtifactMissingErr{
					Variant:  artifact.Variant,
					Platform: artifact.Platform,
					Binary:   artifact.Binary,
					Path:     artifact.SourcePath,
				}
			}
			return nil, fmt.Errorf(
				"staging artifacts for variant `%s`: moving `%s` to `%s`: %w",
				artifact.Variant,
				artifact.SourcePath,
				target,
				err,
			)
		}

		log.WithFields(log.Fields{
			"variant":  artifact.Variant,
			"platform": artifact.Platform,
			"binary":   artifact.Binary,
		}).Infof("staged artifact at `%s`", target)

		artifact.StagedPath = target
		staged[i] = artifact
	}
	return staged, nil
}
