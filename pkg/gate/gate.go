// Package gate decides whether a release invocation may run at all.
package gate

import (
	"github.com/weberc2/releaser/pkg/release"
)

// Gate authorizes release invocations. Only invocations originating from
// `Project` on `Branch` may proceed; everything else is denied before any
// compilation or publishing work starts. Denial is a skip, not a failure.
type Gate struct {
	Project release.ProjectIdentity
	Branch  string
}

// Authorize returns nil if the invocation may proceed and a
// `*release.DeniedErr` carrying the invocation's origin otherwise.
func (gate *Gate) Authorize(invocation *release.Invocation) error {
	if invocation.Project != gate.Project ||
		invocation.SourceBranch != gate.Branch {
		return &release.DeniedErr{
			Project: invocation.Project,
			Branch:  invocation.SourceBranch,
		}
	}
	return nil
}
