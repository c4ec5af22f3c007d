package dispatch

import (
	"strings"
	"testing"

	pz "github.com/weberc2/httpeasy"

	"github.com/weberc2/releaser/pkg/catalog"
	"github.com/weberc2/releaser/pkg/crossbuild"
	"github.com/weberc2/releaser/pkg/gate"
	"github.com/weberc2/releaser/pkg/pipeline"
	"github.com/weberc2/releaser/pkg/publish"
	"github.com/weberc2/releaser/pkg/release"
	"github.com/weberc2/releaser/pkg/testsupport"
)

func testService(t *testing.T, rf *testsupport.RunnerFake) *DispatchService {
	t.Helper()
	workdir := t.TempDir()
	return &DispatchService{
		Pipeline: &pipeline.Pipeline{
			Gate: gate.Gate{
				Project: release.ProjectIdentity{
					Owner: "stormdb",
					Name:  "stormdb",
				},
				Branch: "main",
			},
			Builder: &crossbuild.Builder{Runner: rf, Workdir: workdir},
			Publisher: &publish.Publisher{
				Runner:   rf,
				Registry: "stormdb",
				Workdir:  workdir,
			},
			StagingRoot: t.TempDir(),
		},
		Catalog: catalog.Default(),
		Invocation: release.Invocation{
			SourceCommit: "0123abcdef",
			Project: release.ProjectIdentity{
				Owner: "stormdb",
				Name:  "stormdb",
			},
			SourceBranch: "main",
		},
	}
}

func TestDispatchService_Dispatch(t *testing.T) {
	rf := testsupport.RunnerFake{Callback: testsupport.ToolchainFake}
	service := testService(t, &rf)

	rsp := service.DispatchRoute().Handler(pz.Request{
		Body: strings.NewReader(`{"tag": "v2.4.0"}`),
	})

	if rsp.Status != 200 {
		t.Fatalf("wanted `200`; found `%d`", rsp.Status)
	}

	// the dispatched run published both variants under the requested tag
	published := map[string]bool{}
	for _, cmd := range rf.Commands() {
		for _, arg := range cmd.Args {
			if strings.HasPrefix(arg, "stormdb/") {
				published[arg] = true
			}
		}
	}
	for _, tag := range []string{
		"stormdb/stormdb:community-v2.4.0",
		"stormdb/stormdb-meta:community-v2.4.0",
	} {
		if !published[tag] {
			t.Fatalf("image `%s` was never published", tag)
		}
	}
}

func TestDispatchService_Dispatch_BadJSON(t *testing.T) {
	rf := testsupport.RunnerFake{}
	service := testService(t, &rf)

	rsp := service.DispatchRoute().Handler(pz.Request{
		Body: strings.NewReader(";"),
	})

	if rsp.Status != 400 {
		t.Fatalf("wanted `400`; found `%d`", rsp.Status)
	}
	if commands := rf.Commands(); len(commands) != 0 {
		t.Fatalf("wanted `0` commands; found `%d`", len(commands))
	}
}

func TestDispatchService_Dispatch_MissingTag(t *testing.T) {
	rf := testsupport.RunnerFake{}
	service := testService(t, &rf)

	rsp := service.DispatchRoute().Handler(pz.Request{
		Body: strings.NewReader(`{}`),
	})

	if rsp.Status != 400 {
		t.Fatalf("wanted `400`; found `%d`", rsp.Status)
	}
	if commands := rf.Commands(); len(commands) != 0 {
		t.Fatalf("wanted `0` commands; found `%d`", len(commands))
	}
}

func TestDispatchService_Dispatch_Denied(t *testing.T) {
	rf := testsupport.RunnerFake{}
	service := testService(t, &rf)

	// the service is running against a fork checkout; the gate must deny
	// every dispatch before any build or publish work starts
	service.Invocation.Project = release.ProjectIdentity{
		Owner: "fork-owner",
		Name:  "stormdb",
	}

	rsp := service.DispatchRoute().Handler(pz.Request{
		Body: strings.NewReader(`{"tag": "v2.4.0"}`),
	})

	if rsp.Status != 401 {
		t.Fatalf("wanted `401`; found `%d`", rsp.Status)
	}
	if commands := rf.Commands(); len(commands) != 0 {
		t.Fatalf("wanted `0` commands; found `%d`", len(commands))
	}
}

func TestDispatchService_Variants(t *testing.T) {
	rf := testsupport.RunnerFake{}
	service := testService(t, &rf)

	rsp := service.VariantsRoute().Handler(pz.Request{})

	if rsp.Status != 200 {
		t.Fatalf("wanted `200`; found `%d`", rsp.Status)
	}
}
