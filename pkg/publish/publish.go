// Package publish builds and pushes the multi-platform image for each
// variant, and handles registry authentication for the run.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/weberc2/releaser/pkg/catalog"
	"github.com/weberc2/releaser/pkg/release"
	"github.com/weberc2/releaser/pkg/runner"
)

// Credentials authenticates image pushes. The password is only ever written
// to the engine's standard input; it never appears in command arguments,
// build arguments, or logs. An empty `Server` means the engine's default
// registry.
type Credentials struct {
	Server   string
	Username string
	Password string
}

// Publisher publishes variant images. `Registry` is the namespace published
// image names live under, e.g. `stormdb` or `ghcr.io/stormdb`. `Workdir` is
// the source checkout that image descriptors are resolved against.
type Publisher struct {
	Runner   runner.Runner
	Engine   string
	Registry string
	Workdir  string
}

func (publisher *Publisher) engine() string {
	if publisher.Engine == "" {
		return "docker"
	}
	return publisher.Engine
}

// ImageTag returns the image name for a variant at a release tag.
func ImageTag(registry, variant, releaseTag string) string {
	return fmt.Sprintf("%s/%s:community-%s", registry, variant, releaseTag)
}

// Login authenticates the engine against the registry. It runs once per
// release, before any variant publishes.
func (publisher *Publisher) Login(
	ctx context.Context,
	credentials *Credentials,
) error {
	args := []string{
		"login",
		"--username",
		credentials.Username,
		"--password-stdin",
	}
	if credentials.Server != "" {
		args = append(args, credentials.Server)
	}

	var loginLogs bytes.Buffer
	cmd := runner.Command{
		Name:   publisher.engine(),
		Args:   args,
		Stdin:  strings.NewReader(credentials.Password),
		Stdout: &loginLogs,
		Stderr: &loginLogs,
	}

	log.WithFields(log.Fields{
		"server":   credentials.Server,
		"username": credentials.Username,
	}).Infof("logging in to registry")

	if err := publisher.Runner.Run(ctx, &cmd); err != nil {
		return fmt.Errorf(
			"logging in to registry as `%s`: %w",
			credentials.Username,
			err,
		)
	}
	return nil
}

// Publish builds and pushes one image covering every architecture. The
// image embeds the invocation's source commit as the `git_hash` build
// argument, and the multi-platform manifest becomes visible only when the
// single build-and-push invocation succeeds.
func (publisher *Publisher) Publish(
	ctx context.Context,
	invocation *release.Invocation,
	variant *catalog.ImageVariant,
	architectures []catalog.TargetArchitecture,
	contextDir string,
) (*release.PublishedImage, error) {
	tag := ImageTag(publisher.Registry, variant.Name, invocation.Tag)

	platforms := make([]string, len(architectures))
	labels := make([]string, len(architectures))
	for i := range architectures {
		platforms[i] = architectures[i].OCIPlatform()
		labels[i] = architectures[i].PlatformLabel
	}

	var buildLogs bytes.Buffer
	cmd := runner.Command{
		Name: publisher.engine(),
		Args: []string{
			"buildx",
			"build",
			"--platform",
			strings.Join(platforms, ","),
			"--file",
			filepath.Join(publisher.Workdir, variant.Descriptor),
			"--build-arg",
			fmt.Sprintf("git_hash=%s", invocation.SourceCommit),
			"--tag",
			tag,
			"--push",
			contextDir,
		},
		Stdout: &buildLogs,
		Stderr: &buildLogs,
	}

	log.WithFields(log.Fields{
		"variant": variant.Name,
		"image":   tag,
	}).Infof("building and pushing image: %s", &cmd)

	if err := publisher.Runner.Run(ctx, &cmd); err != nil {
		log.WithFields(log.Fields{
			"variant":   variant.Name,
			"image":     tag,
			"buildLogs": buildLogs.String(),
		}).Infof("image publish failed")
		return nil, &release.PublishErr{
			Variant: variant.Name,
			Image:   tag,
			Err:     err,
		}
	}

	log.WithFields(log.Fields{
		"variant":   variant.Name,
		"image":     tag,
		"platforms": strings.Join(platforms, ","),
	}).Infof("published image")

	return &release.PublishedImage{
		Tag:       tag,
		Platforms: labels,
		GitHash:   invocation.SourceCommit,
	}, nil
}
