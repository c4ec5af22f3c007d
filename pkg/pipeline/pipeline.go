// Package pipeline drives release runs: it authorizes the invocation,
// establishes registry credentials once, and fans out over the catalog's
// variants, each compiling, staging, and publishing in isolation from its
// siblings.
package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/weberc2/releaser/pkg/archive"
	"github.com/weberc2/releaser/pkg/catalog"
	"github.com/weberc2/releaser/pkg/crossbuild"
	"github.com/weberc2/releaser/pkg/gate"
	"github.com/weberc2/releaser/pkg/manifest"
	"github.com/weberc2/releaser/pkg/publish"
	"github.com/weberc2/releaser/pkg/release"
	"github.com/weberc2/releaser/pkg/stage"
)

// Recorder persists run ledger records. Recording is best-effort: a ledger
// failure is logged but never fails a release.
type Recorder interface {
	Record(record *release.RunRecord) error
}

// Pipeline executes release runs. `Builder` and `Publisher` are required;
// `Credentials` may be nil when the image engine is already authenticated,
// and `Archiver`, `Verifier`, and `Recorder` are optional extras. Each
// variant stages into its own subtree of `StagingRoot`, so two variants
// never share artifact paths.
type Pipeline struct {
	Gate        gate.Gate
	Builder     *crossbuild.Builder
	Publisher   *publish.Publisher
	Credentials *publish.Credentials
	Archiver    *archive.Archiver
	Verifier    *manifest.Verifier
	Recorder    Recorder
	StagingRoot string
}

// Run executes one release run and returns one outcome per catalog variant,
// in catalog order. Gate denial and registry login failure abort the run
// before any variant starts; after that, every variant runs to completion
// regardless of its siblings' outcomes — a failure is reported in the
// variant's outcome slot, never as a run error.
func (pipeline *Pipeline) Run(
	ctx context.Context,
	catalog *catalog.Catalog,
	invocation *release.Invocation,
) ([]release.VariantOutcome, error) {
	if err := invocation.Validate(); err != nil {
		return nil, err
	}

	if err := pipeline.Gate.Authorize(invocation); err != nil {
		log.WithFields(log.Fields{
			"project": invocation.Project.String(),
			"branch":  invocation.SourceBranch,
		}).Infof("release gate denied invocation; skipping run")
		return nil, err
	}

	runID := uuid.New()
	log.WithFields(log.Fields{
		"runID":    runID,
		"tag":      invocation.Tag,
		"commit":   invocation.SourceCommit,
		"variants": len(catalog.Variants),
	}).Infof("starting release run")

	if pipeline.Credentials != nil {
		if err := pipeline.Publisher.Login(
			ctx,
			pipeline.Credentials,
		); err != nil {
			return nil, err
		}
	}

	outcomes := make([]release.VariantOutcome, len(catalog.Variants))
	var wg sync.WaitGroup
	for i := range catalog.Variants {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = pipeline.runVariant(
				ctx,
				runID,
				invocation,
				&catalog.Variants[i],
				catalog.Architectures,
			)
		}()
	}
	wg.Wait()

	succeeded := 0
	for i := range outcomes {
		if outcomes[i].Status == release.StatusDone {
			succeeded++
		}
	}
	log.WithFields(log.Fields{
		"runID":     runID,
		"succeeded": succeeded,
		"failed":    len(outcomes) - succeeded,
	}).Infof("release run finished")

	return outcomes, nil
}

// runVariant walks one variant through the status machine. Every stage
// starts only after its predecessor succeeded; the first failure marks the
// variant failed and aborts its remaining stages.
func (pipeline *Pipeline) runVariant(
	ctx context.Context,
	runID uuid.UUID,
	invocation *release.Invocation,
	variant *catalog.ImageVariant,
	architectures []catalog.TargetArchitecture,
) release.VariantOutcome {
	started := time.Now()
	execution := release.NewExecution(variant.Name)
	pipeline.record(runID, invocation, variant.Name, execution.Status, nil)

	fail := func(err error) release.VariantOutcome {
		if e := execution.Fail(); e != nil {
			log.Errorf("failing variant `%s`: %v", variant.Name, e)
		}
		pipeline.record(
			runID,
			invocation,
			variant.Name,
			release.StatusFailed,
			err,
		)
		log.WithFields(log.Fields{
			"runID":   runID,
			"variant": variant.Name,
		}).Errorf("variant failed: %v", err)
		return release.VariantOutcome{
			Variant: variant.Name,
			Status:  release.StatusFailed,
			Err:     err,
			Elapsed: time.Since(started),
		}
	}

	advance := func(status release.VariantStatus) error {
		if err := execution.Advance(status); err != nil {
			return err
		}
		pipeline.record(runID, invocation, variant.Name, status, nil)
		return nil
	}

	// an incomplete catalog entry fails this variant before any toolchain
	// work starts; sibling variants are unaffected
	if err := variant.Validate(); err != nil {
		return fail(err)
	}

	if err := advance(release.StatusCompiling); err != nil {
		return fail(err)
	}
	artifacts, err := pipeline.Builder.Build(ctx, variant, architectures)
	if err != nil {
		return fail(err)
	}

	stager := stage.Stager{
		Root: filepath.Join(pipeline.StagingRoot, variant.Name),
	}
	staged, err := stager.Stage(artifacts)
	if err != nil {
		return fail(err)
	}
	if err := advance(release.StatusStaged); err != nil {
		return fail(err)
	}

	if pipeline.Archiver != nil {
		if err := pipeline.Archiver.Archive(invocation, staged); err != nil {
			return fail(err)
		}
	}

	if err := advance(release.StatusPublishing); err != nil {
		return fail(err)
	}
	image, err := pipeline.Publisher.Publish(
		ctx,
		invocation,
		variant,
		architectures,
		stager.Root,
	)
	if err != nil {
		return fail(err)
	}

	if pipeline.Verifier != nil {
		platforms := make([]string, len(architectures))
		for i := range architectures {
			platforms[i] = architectures[i].OCIPlatform()
		}
		if err := pipeline.Verifier.VerifyPlatforms(
			ctx,
			image.Tag,
			platforms,
		); err != nil {
			return fail(&release.PublishErr{
				Variant: variant.Name,
				Image:   image.Tag,
				Err:     err,
			})
		}
	}

	if err := advance(release.StatusDone); err != nil {
		return fail(err)
	}
	return release.VariantOutcome{
		Variant: variant.Name,
		Status:  release.StatusDone,
		Image:   image,
		Elapsed: time.Since(started),
	}
}

func (pipeline *Pipeline) record(
	runID uuid.UUID,
	invocation *release.Invocation,
	variant string,
	status release.VariantStatus,
	failure error,
) {
	if pipeline.Recorder == nil {
		return
	}
	record := release.RunRecord{
		RunID:        runID,
		Tag:          invocation.Tag,
		SourceCommit: invocation.SourceCommit,
		Variant:      variant,
		Status:       status,
		Created:      time.Now().UTC(),
	}
	if failure != nil {
		record.Error = failure.Error()
	}
	if err := pipeline.Recorder.Record(&record); err != nil {
		log.WithFields(log.Fields{
			"variant": variant,
			"status":  status,
		}).Errorf("recording run ledger entry: %v", err)
	}
}
