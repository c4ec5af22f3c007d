// Package release holds the types shared by every stage of the release
// pipeline: the invocation that triggers a run, the artifacts and images the
// run produces, and the per-variant outcome reported when the run finishes.
package release

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissingTag rejects invocations that don't carry a release tag. The tag
// is the only required input; everything else can be discovered from the
// source checkout.
var ErrMissingTag = errors.New("invocation missing release tag")

// ProjectIdentity identifies a source project as an owner/name pair, e.g.
// `stormdb/stormdb`.
type ProjectIdentity struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

func (pi ProjectIdentity) String() string {
	return pi.Owner + "/" + pi.Name
}

// ParseProjectIdentity parses an `owner/name` pair.
func ParseProjectIdentity(s string) (ProjectIdentity, error) {
	i := strings.IndexByte(s, '/')
	if i < 1 || i+1 >= len(s) || strings.ContainsRune(s[i+1:], '/') {
		return ProjectIdentity{}, fmt.Errorf(
			"parsing project identity `%s`: wanted `owner/name`",
			s,
		)
	}
	return ProjectIdentity{Owner: s[:i], Name: s[i+1:]}, nil
}

// Invocation is a single request to cut a release. `Tag` is provided by the
// operator; the remaining fields describe the source checkout the invocation
// runs against and are inputs to the release gate.
type Invocation struct {
	Tag          string          `json:"tag"`
	SourceCommit string          `json:"sourceCommit"`
	Project      ProjectIdentity `json:"project"`
	SourceBranch string          `json:"sourceBranch"`
}

func (inv *Invocation) Validate() error {
	if inv.Tag == "" {
		return ErrMissingTag
	}
	return nil
}

// BuildArtifact is one binary produced by the cross-compilation stage.
// `SourcePath` is where the toolchain wrote it; `StagedPath` is where the
// stager moved it, and is empty until staging completes.
type BuildArtifact struct {
	Variant    string `json:"variant"`
	Platform   string `json:"platform"`
	Binary     string `json:"binary"`
	SourcePath string `json:"sourcePath"`
	StagedPath string `json:"stagedPath,omitempty"`
}

// PublishedImage describes the multi-platform image pushed for a variant.
// `GitHash` is the source commit baked into the image as provenance.
type PublishedImage struct {
	Tag       string   `json:"tag"`
	Platforms []string `json:"platforms"`
	GitHash   string   `json:"gitHash"`
}

// VariantOutcome is the terminal result of one variant's pipeline. `Image`
// is set iff the variant published successfully; `Err` is set iff it failed.
type VariantOutcome struct {
	Variant string
	Status  VariantStatus
	Image   *PublishedImage
	Err     error
	Elapsed time.Duration
}

func (out *VariantOutcome) Failed() bool {
	return out.Status == StatusFailed
}

// OutcomeReport is the wire form of a `VariantOutcome`, rendered by the CLI
// and the dispatch API. Unlike the outcome itself it flattens the failure
// into a message so it survives JSON marshaling.
type OutcomeReport struct {
	Variant string          `json:"variant"`
	Status  VariantStatus   `json:"status"`
	Image   *PublishedImage `json:"image,omitempty"`
	Error   string          `json:"error,omitempty"`
	Elapsed string          `json:"elapsed"`
}

func (out *VariantOutcome) Report() OutcomeReport {
	report := OutcomeReport{
		Variant: out.Variant,
		Status:  out.Status,
		Image:   out.Image,
		Elapsed: out.Elapsed.String(),
	}
	if out.Err != nil {
		report.Error = out.Err.Error()
	}
	return report
}

// Reports renders one report per outcome, preserving order.
func Reports(outcomes []VariantOutcome) []OutcomeReport {
	reports := make([]OutcomeReport, len(outcomes))
	for i := range outcomes {
		reports[i] = outcomes[i].Report()
	}
	return reports
}

// AllDone reports whether every variant in the run reached `DONE`. This is
// the overall result of a release run; one failed variant fails the run even
// though its siblings ran to completion.
func AllDone(outcomes []VariantOutcome) bool {
	for i := range outcomes {
		if outcomes[i].Status != StatusDone {
			return false
		}
	}
	return true
}
