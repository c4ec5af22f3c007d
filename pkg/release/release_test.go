package release

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestParseProjectIdentity(t *testing.T) {
	for _, testCase := range []struct {
		name      string
		input     string
		wanted    ProjectIdentity
		wantedErr bool
	}{
		{
			name:   "simple",
			input:  "stormdb/stormdb",
			wanted: ProjectIdentity{Owner: "stormdb", Name: "stormdb"},
		},
		{
			name:   "distinct owner and name",
			input:  "stormdb/stormdb-meta",
			wanted: ProjectIdentity{Owner: "stormdb", Name: "stormdb-meta"},
		},
		{
			name:      "missing separator",
			input:     "stormdb",
			wantedErr: true,
		},
		{
			name:      "missing owner",
			input:     "/stormdb",
			wantedErr: true,
		},
		{
			name:      "missing name",
			input:     "stormdb/",
			wantedErr: true,
		},
		{
			name:      "extra separator",
			input:     "stormdb/stormdb/extra",
			wantedErr: true,
		},
		{
			name:      "empty",
			input:     "",
			wantedErr: true,
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			found, err := ParseProjectIdentity(testCase.input)
			if testCase.wantedErr {
				if err == nil {
					t.Fatalf("wanted error; found `nil`")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if found != testCase.wanted {
				t.Fatalf(
					"wanted `%s`; found `%s`",
					testCase.wanted,
					found,
				)
			}
		})
	}
}

func TestInvocation_Validate(t *testing.T) {
	for _, testCase := range []struct {
		name       string
		invocation Invocation
		wantedErr  WantedError
	}{
		{
			name: "simple",
			invocation: Invocation{
				Tag:          "v2.4.0",
				SourceCommit: "0123abc",
				Project:      ProjectIdentity{"stormdb", "stormdb"},
				SourceBranch: "main",
			},
		},
		{
			name:       "tag only",
			invocation: Invocation{Tag: "v2.4.0"},
		},
		{
			name:       "missing tag",
			invocation: Invocation{SourceCommit: "0123abc"},
			wantedErr: WantedErrFunc(func(err error) error {
				if !errors.Is(err, ErrMissingTag) {
					return fmt.Errorf(
						"wanted `ErrMissingTag`; found `%v`",
						err,
					)
				}
				return nil
			}),
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			if err := CompareErrs(
				testCase.wantedErr,
				testCase.invocation.Validate(),
			); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestVariantOutcome_Report(t *testing.T) {
	outcomes := []VariantOutcome{
		{
			Variant: "stormdb",
			Status:  StatusDone,
			Image: &PublishedImage{
				Tag:       "stormdb/stormdb:community-v2.4.0",
				Platforms: []string{"amd64", "arm64"},
				GitHash:   "0123abc",
			},
			Elapsed: 90 * time.Second,
		},
		{
			Variant: "stormdb-meta",
			Status:  StatusFailed,
			Err: &ToolchainErr{
				Variant:  "stormdb-meta",
				Platform: "arm64",
				Err:      fmt.Errorf("exit status 1"),
			},
		},
	}

	reports := Reports(outcomes)
	if len(reports) != 2 {
		t.Fatalf("wanted `2` reports; found `%d`", len(reports))
	}

	if reports[0].Error != "" {
		t.Fatalf("wanted no error; found `%s`", reports[0].Error)
	}
	if reports[0].Image != outcomes[0].Image {
		t.Fatalf("wanted `%+v`; found `%+v`", outcomes[0].Image, reports[0].Image)
	}
	if reports[0].Elapsed != "1m30s" {
		t.Fatalf("wanted `1m30s`; found `%s`", reports[0].Elapsed)
	}

	// the failure must survive JSON marshaling as a message
	if wanted := outcomes[1].Err.Error(); reports[1].Error != wanted {
		t.Fatalf("wanted `%s`; found `%s`", wanted, reports[1].Error)
	}
	data, err := json.Marshal(reports[1])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "compiling for platform `arm64`") {
		t.Fatalf("failure missing from marshaled report: %s", data)
	}
}

func TestAllDone(t *testing.T) {
	for _, testCase := range []struct {
		name     string
		outcomes []VariantOutcome
		wanted   bool
	}{
		{
			name:   "empty",
			wanted: true,
		},
		{
			name: "all done",
			outcomes: []VariantOutcome{
				{Variant: "stormdb", Status: StatusDone},
				{Variant: "stormdb-meta", Status: StatusDone},
			},
			wanted: true,
		},
		{
			name: "one failed",
			outcomes: []VariantOutcome{
				{Variant: "stormdb", Status: StatusDone},
				{
					Variant: "stormdb-meta",
					Status:  StatusFailed,
					Err: &ConfigErr{
						Variant: "stormdb-meta",
						Reason:  "missing descriptor",
					},
				},
			},
			wanted: false,
		},
		{
			name: "all failed",
			outcomes: []VariantOutcome{
				{Variant: "stormdb", Status: StatusFailed},
				{Variant: "stormdb-meta", Status: StatusFailed},
			},
			wanted: false,
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			if found := AllDone(testCase.outcomes); found != testCase.wanted {
				t.Fatalf("wanted `%t`; found `%t`", testCase.wanted, found)
			}
		})
	}
}
