package release

import (
	"errors"
	"fmt"
)

// DeniedErr reports that the release gate declined an invocation because it
// didn't originate from the expected project and branch. Denial skips the
// run; it is not a pipeline failure.
type DeniedErr struct {
	Project ProjectIdentity
	Branch  string
}

func (err *DeniedErr) Error() string {
	return fmt.Sprintf(
		"release gate denied invocation: project=%s branch=%s",
		err.Project,
		err.Branch,
	)
}

func (wanted *DeniedErr) CompareErr(err error) error {
	var other *DeniedErr
	if errors.As(err, &other) {
		return wanted.Compare(other)
	}
	return fmt.Errorf(
		"Wanted `*release.DeniedErr`; found `%T`: %v",
		err,
		err,
	)
}

func (wanted *DeniedErr) Compare(other *DeniedErr) error {
	if wanted == other {
		return nil
	}

	if wanted == nil && other != nil {
		return fmt.Errorf("wanted `nil`; found not-nil")
	}

	if wanted != nil && other == nil {
		return fmt.Errorf("wanted not-nil; found `nil`")
	}

	if wanted.Project != other.Project {
		return fmt.Errorf(
			"DeniedErr.Project: wanted `%s`; found `%s`",
			wanted.Project,
			other.Project,
		)
	}

	if wanted.Branch != other.Branch {
		return fmt.Errorf(
			"DeniedErr.Branch: wanted `%s`; found `%s`",
			wanted.Branch,
			other.Branch,
		)
	}

	return nil
}

// ConfigErr reports an invalid variant mapping. It fails the variant before
// any toolchain work starts.
type ConfigErr struct {
	Variant string
	Reason  string
}

func (err *ConfigErr) Error() string {
	return fmt.Sprintf(
		"variant `%s`: invalid configuration: %s",
		err.Variant,
		err.Reason,
	)
}

func (wanted *ConfigErr) CompareErr(err error) error {
	var other *ConfigErr
	if errors.As(err, &other) {
		return wanted.Compare(other)
	}
	return fmt.Errorf(
		"Wanted `*release.ConfigErr`; found `%T`: %v",
		err,
		err,
	)
}

func (wanted *ConfigErr) Compare(other *ConfigErr) error {
	if wanted == other {
		return nil
	}

	if wanted == nil && other != nil {
		return fmt.Errorf("wanted `nil`; found not-nil")
	}

	if wanted != nil && other == nil {
		return fmt.Errorf("wanted not-nil; found `nil`")
	}

	if wanted.Variant != other.Variant {
		return fmt.Errorf(
			"ConfigErr.Variant: wanted `%s`; found `%s`",
			wanted.Variant,
			other.Variant,
		)
	}

	if wanted.Reason != other.Reason {
		return fmt.Errorf(
			"ConfigErr.Reason: wanted `%s`; found `%s`",
			wanted.Reason,
			other.Reason,
		)
	}

	return nil
}

// ToolchainErr reports a compiler invocation that exited non-zero for one
// (variant, platform) pair.
type ToolchainErr struct {
	Variant  string
	Platform string
	Err      error
}

func (err *ToolchainErr) Error() string {
	return fmt.Sprintf(
		"variant `%s`: compiling for platform `%s`: %v",
		err.Variant,
		err.Platform,
		err.Err,
	)
}

func (err *ToolchainErr) Unwrap() error { return err.Err }

func (wanted *ToolchainErr) CompareErr(err error) error {
	var other *ToolchainErr
	if errors.As(err, &other) {
		return wanted.Compare(other)
	}
	return fmt.Errorf(
		"Wanted `*release.ToolchainErr`; found `%T`: %v",
		err,
		err,
	)
}

// Compare matches on variant and platform; the wrapped toolchain error is
// environment-dependent and not compared.
func (wanted *ToolchainErr) Compare(other *ToolchainErr) error {
	if wanted == other {
		return nil
	}

	if wanted == nil && other != nil {
		return fmt.Errorf("wanted `nil`; found not-nil")
	}

	if wanted != nil && other == nil {
		return fmt.Errorf("wanted not-nil; found `nil`")
	}

	if wanted.Variant != other.Variant {
		return fmt.Errorf(
			"ToolchainErr.Variant: wanted `%s`; found `%s`",
			wanted.Variant,
			other.Variant,
		)
	}

	if wanted.Platform != other.Platform {
		return fmt.Errorf(
			"ToolchainErr.Platform: wanted `%s`; found `%s`",
			wanted.Platform,
			other.Platform,
		)
	}

	return nil
}

// ArtifactMissingErr reports that a binary the toolchain should have
// produced wasn't found where the stager expected it.
type ArtifactMissingErr struct {
	Variant  string
	Platform string
	Binary   string
	Path     string
}

func (err *ArtifactMissingErr) Error() string {
	return fmt.Sprintf(
		"variant `%s`: missing artifact `%s` for platform `%s` at `%s`",
		err.Variant,
		err.Binary,
		err.Platform,
		err.Path,
	)
}

func (wanted *ArtifactMissingErr) CompareErr(err error) error {
	var other *ArtifactMissingErr
	if errors.As(err, &other) {
		return wanted.Compare(other)
	}
	return fmt.Errorf(
		"Wanted `*release.ArtifactMissingErr`; found `%T`: %v",
		err,
		err,
	)
}

func (wanted *ArtifactMissingErr) Compare(other *ArtifactMissingErr) error {
	if wanted == other {
		return nil
	}

	if wanted == nil && other != nil {
		return fmt.Errorf("wanted `nil`; found not-nil")
	}

	if wanted != nil && other == nil {
		return fmt.Errorf("wanted not-nil; found `nil`")
	}

	if wanted.Variant != other.Variant {
		return fmt.Errorf(
			"ArtifactMissingErr.Variant: wanted `%s`; found `%s`",
			wanted.Variant,
			other.Variant,
		)
	}

	if wanted.Platform != other.Platform {
		return fmt.Errorf(
			"ArtifactMissingErr.Platform: wanted `%s`; found `%s`",
			wanted.Platform,
			other.Platform,
		)
	}

	if wanted.Binary != other.Binary {
		return fmt.Errorf(
			"ArtifactMissingErr.Binary: wanted `%s`; found `%s`",
			wanted.Binary,
			other.Binary,
		)
	}

	if wanted.Path != other.Path {
		return fmt.Errorf(
			"ArtifactMissingErr.Path: wanted `%s`; found `%s`",
			wanted.Path,
			other.Path,
		)
	}

	return nil
}

// PublishErr reports a failed image build, push, or registry login.
type PublishErr struct {
	Variant string
	Image   string
	Err     error
}

func (err *PublishErr) Error() string {
	return fmt.Sprintf(
		"variant `%s`: publishing `%s`: %v",
		err.Variant,
		err.Image,
		err.Err,
	)
}

func (err *PublishErr) Unwrap() error { return err.Err }

func (wanted *PublishErr) CompareErr(err error) error {
	var other *PublishErr
	if errors.As(err, &other) {
		return wanted.Compare(other)
	}
	return fmt.Errorf(
		"Wanted `*release.PublishErr`; found `%T`: %v",
		err,
		err,
	)
}

// Compare matches on variant and image; the wrapped backend error is not
// compared.
func (wanted *PublishErr) Compare(other *PublishErr) error {
	if wanted == other {
		return nil
	}

	if wanted == nil && other != nil {
		return fmt.Errorf("wanted `nil`; found not-nil")
	}

	if wanted != nil && other == nil {
		return fmt.Errorf("wanted not-nil; found `nil`")
	}

	if wanted.Variant != other.Variant {
		return fmt.Errorf(
			"PublishErr.Variant: wanted `%s`; found `%s`",
			wanted.Variant,
			other.Variant,
		)
	}

	if wanted.Image != other.Image {
		return fmt.Errorf(
			"PublishErr.Image: wanted `%s`; found `%s`",
			wanted.Image,
			other.Image,
		)
	}

	return nil
}

// fail compilation if the pipeline error kinds don't satisfy the
// `WantedError` interface.
var _ WantedError = &DeniedErr{}
var _ WantedError = &ConfigErr{}
var _ WantedError = &ToolchainErr{}
var _ WantedError = &ArtifactMissingErr{}
var _ WantedError = &PublishErr{}
