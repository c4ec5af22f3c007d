package gate

import (
	"fmt"
	"strings"

	git "github.com/go-git/go-git/v5"

	"github.com/weberc2/releaser/pkg/release"
)

// Discover fills the invocation fields that weren't provided explicitly
// from the git checkout at `workdir`: the HEAD commit, the checked-out
// branch, and the project identity from the `origin` remote. Fields that
// are already set are left alone, and if nothing is missing the checkout
// isn't consulted at all. A detached HEAD leaves the branch empty.
func Discover(workdir string, invocation *release.Invocation) error {
	if invocation.SourceCommit != "" &&
		invocation.SourceBranch != "" &&
		invocation.Project != (release.ProjectIdentity{}) {
		return nil
	}

	repo, err := git.PlainOpen(workdir)
	if err != nil {
		return fmt.Errorf(
			"discovering invocation context in `%s`: %w",
			workdir,
			err,
		)
	}

	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf(
			"discovering invocation context in `%s`: resolving HEAD: %w",
			workdir,
			err,
		)
	}

	if invocation.SourceCommit == "" {
		invocation.SourceCommit = head.Hash().String()
	}

	if invocation.SourceBranch == "" && head.Name().IsBranch() {
		invocation.SourceBranch = head.Name().Short()
	}

	if invocation.Project == (release.ProjectIdentity{}) {
		remote, err := repo.Remote(git.DefaultRemoteName)
		if err != nil {
			return fmt.Errorf(
				"discovering invocation context in `%s`: resolving remote "+
					"`%s`: %w",
				workdir,
				git.DefaultRemoteName,
				err,
			)
		}
		urls := remote.Config().URLs
		if len(urls) < 1 {
			return fmt.Errorf(
				"discovering invocation context in `%s`: remote `%s` has no "+
					"URLs",
				workdir,
				git.DefaultRemoteName,
			)
		}
		project, err := ParseRemoteURL(urls[0])
		if err != nil {
			return fmt.Errorf(
				"discovering invocation context in `%s`: %w",
				workdir,
				err,
			)
		}
		invocation.Project = project
	}

	return nil
}

// ParseRemoteURL extracts the owner/name project identity from a git remote
// URL. It understands https/ssh URLs as well as scp-style
// `git@host:owner/name` remotes.
func ParseRemoteURL(url string) (release.ProjectIdentity, error) {
	trimmed := strings.TrimSuffix(url, ".git")
	trimmed = strings.TrimSuffix(trimmed, "/")

	if i := strings.Index(trimmed, "://"); i >= 0 {
		rest := trimmed[i+len("://"):]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			return parseRemotePath(url, rest[j+1:])
		}
	} else if i := strings.IndexByte(trimmed, ':'); i >= 0 {
		return parseRemotePath(url, trimmed[i+1:])
	}

	return release.ProjectIdentity{}, fmt.Errorf(
		"parsing remote URL `%s`: unrecognized format",
		url,
	)
}

func parseRemotePath(
	url string,
	path string,
) (release.ProjectIdentity, error) {
	project, err := release.ParseProjectIdentity(path)
	if err != nil {
		return release.ProjectIdentity{}, fmt.Errorf(
			"parsing remote URL `%s`: %w",
			url,
			err,
		)
	}
	return project, nil
}
