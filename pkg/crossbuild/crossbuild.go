// Package crossbuild compiles a variant's packages for every target
// architecture, one toolchain invocation per architecture.
package crossbuild

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/weberc2/releaser/pkg/catalog"
	"github.com/weberc2/releaser/pkg/release"
	"github.com/weberc2/releaser/pkg/runner"
)

// Builder cross-compiles image variants. `Workdir` is the source checkout
// the toolchain runs in. `CacheDir`, when set, points every invocation at a
// shared build cache; the cache is content-addressed, so concurrent builds
// may read and write it simultaneously. `CompilerWrapper`, when set,
// prefixes the C compiler with a caching wrapper.
type Builder struct {
	Runner          runner.Runner
	Workdir         string
	Toolchain       string
	CacheDir        string
	CompilerWrapper string
}

func (builder *Builder) toolchain() string {
	if builder.Toolchain == "" {
		return "go"
	}
	return builder.Toolchain
}

// Build compiles every package of `variant` for every architecture. The
// per-architecture builds run concurrently and independently; the first
// toolchain failure fails the variant. On success it returns one artifact
// per (architecture, binary) pair, in catalog order.
func (builder *Builder) Build(
	ctx context.Context,
	variant *catalog.ImageVariant,
	architectures []catalog.TargetArchitecture,
) ([]release.BuildArtifact, error) {
	group, ctx := errgroup.WithContext(ctx)
	byArchitecture := make([][]release.BuildArtifact, len(architectures))
	for i := range architectures {
		group.Go(func() error {
			artifacts, err := builder.buildArchitecture(
				ctx,
				variant,
				&architectures[i],
			)
			if err != nil {
				return err
			}
			byArchitecture[i] = artifacts
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var out []release.BuildArtifact
	for i := range byArchitecture {
		out = append(out, byArchitecture[i]...)
	}
	return out, nil
}

func (builder *Builder) buildArchitecture(
	ctx context.Context,
	variant *catalog.ImageVariant,
	architecture *catalog.TargetArchitecture,
) ([]release.BuildArtifact, error) {
	var buildLogs bytes.Buffer
	cmd := runner.Command{
		Name: builder.toolchain(),
		Args: append(
			[]string{"build", "-trimpath", "-o", architecture.OutputDir + "/"},
			variant.BuildPackages...,
		),
		Dir:    builder.Workdir,
		Env:    builder.environment(architecture),
		Stdout: &buildLogs,
		Stderr: &buildLogs,
	}

	log.WithFields(log.Fields{
		"variant":  variant.Name,
		"platform": architecture.PlatformLabel,
	}).Infof("compiling: %s", &cmd)

	if err := builder.Runner.Run(ctx, &cmd); err != nil {
		log.WithFields(log.Fields{
			"variant":   variant.Name,
			"platform":  architecture.PlatformLabel,
			"buildLogs": buildLogs.String(),
		}).Infof("build failed")
		return nil, &release.ToolchainErr{
			Variant:  variant.Name,
			Platform: architecture.PlatformLabel,
			Err:      err,
		}
	}

	artifacts := make([]release.BuildArtifact, len(variant.BinaryNames))
	for i, binary := range variant.BinaryNames {
		artifacts[i] = release.BuildArtifact{
			Variant:  variant.Name,
			Platform: architecture.PlatformLabel,
			Binary:   binary,
			SourcePath: filepath.Join(
				builder.Workdir,
				architecture.OutputDir,
				binary,
			),
		}
	}
	return artifacts, nil
}

// environment returns the toolchain environment for one architecture. All
// targets are linux with cgo enabled; foreign targets link with the
// architecture's cross compiler instead of the host toolchain.
func (builder *Builder) environment(
	architecture *catalog.TargetArchitecture,
) []string {
	env := []string{
		"GOOS=linux",
		fmt.Sprintf("GOARCH=%s", architecture.PlatformLabel),
		"CGO_ENABLED=1",
	}
	if builder.CacheDir != "" {
		env = append(env, fmt.Sprintf("GOCACHE=%s", builder.CacheDir))
	}

	var cc string
	if !architecture.Native() {
		cc = architecture.CrossCompiler()
	}
	if builder.CompilerWrapper != "" {
		if cc == "" {
			cc = "gcc"
		}
		cc = builder.CompilerWrapper + " " + cc
	}
	if cc != "" {
		env = append(env, fmt.Sprintf("CC=%s", cc))
	}

	return env
}
