package catalog

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/weberc2/releaser/pkg/release"
)

func TestImageVariant_Validate(t *testing.T) {
	for _, testCase := range []struct {
		name      string
		variant   ImageVariant
		wantedErr release.WantedError
	}{
		{
			name: "simple",
			variant: ImageVariant{
				Name:          "stormdb",
				BuildPackages: []string{"./cmd/stormdb"},
				BinaryNames:   []string{"stormdb"},
				Descriptor:    "docker/stormdb/Dockerfile",
			},
		},
		{
			name: "missing name",
			variant: ImageVariant{
				BuildPackages: []string{"./cmd/stormdb"},
				BinaryNames:   []string{"stormdb"},
				Descriptor:    "docker/stormdb/Dockerfile",
			},
			wantedErr: &release.ConfigErr{Reason: "missing variant name"},
		},
		{
			name: "name isn't slug-form",
			variant: ImageVariant{
				Name:          "StormDB Meta",
				BuildPackages: []string{"./cmd/stormdb-meta"},
				BinaryNames:   []string{"stormdb-meta"},
				Descriptor:    "docker/stormdb-meta/Dockerfile",
			},
			wantedErr: &release.ConfigErr{
				Variant: "StormDB Meta",
				Reason:  "variant name isn't slug-form: wanted `stormdb-meta`",
			},
		},
		{
			name: "no build packages",
			variant: ImageVariant{
				Name:       "stormdb",
				Descriptor: "docker/stormdb/Dockerfile",
			},
			wantedErr: &release.ConfigErr{
				Variant: "stormdb",
				Reason:  "no build packages",
			},
		},
		{
			name: "mismatched binary names",
			variant: ImageVariant{
				Name: "stormdb",
				BuildPackages: []string{
					"./cmd/stormdb",
					"./cmd/stormdb-cli",
				},
				BinaryNames: []string{"stormdb"},
				Descriptor:  "docker/stormdb/Dockerfile",
			},
			wantedErr: &release.ConfigErr{
				Variant: "stormdb",
				Reason:  "2 build packages but 1 binary names",
			},
		},
		{
			name: "invalid binary name",
			variant: ImageVariant{
				Name:          "stormdb",
				BuildPackages: []string{"./cmd/stormdb"},
				BinaryNames:   []string{"bin/stormdb"},
				Descriptor:    "docker/stormdb/Dockerfile",
			},
			wantedErr: &release.ConfigErr{
				Variant: "stormdb",
				Reason:  "invalid binary name: `bin/stormdb`",
			},
		},
		{
			name: "duplicate binary name",
			variant: ImageVariant{
				Name: "stormdb",
				BuildPackages: []string{
					"./cmd/stormdb",
					"./cmd/other/stormdb",
				},
				BinaryNames: []string{"stormdb", "stormdb"},
				Descriptor:  "docker/stormdb/Dockerfile",
			},
			wantedErr: &release.ConfigErr{
				Variant: "stormdb",
				Reason:  "duplicate binary name: `stormdb`",
			},
		},
		{
			name: "binary name doesn't match package",
			variant: ImageVariant{
				Name:          "stormdb",
				BuildPackages: []string{"./cmd/stormdb-server"},
				BinaryNames:   []string{"stormdb"},
				Descriptor:    "docker/stormdb/Dockerfile",
			},
			wantedErr: &release.ConfigErr{
				Variant: "stormdb",
				Reason: "package `./cmd/stormdb-server` builds binary " +
					"`stormdb-server`, not `stormdb`",
			},
		},
		{
			name: "missing descriptor",
			variant: ImageVariant{
				Name:          "stormdb",
				BuildPackages: []string{"./cmd/stormdb"},
				BinaryNames:   []string{"stormdb"},
			},
			wantedErr: &release.ConfigErr{
				Variant: "stormdb",
				Reason:  "missing image descriptor",
			},
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			if err := release.CompareErrs(
				testCase.wantedErr,
				testCase.variant.Validate(),
			); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestCatalog_Validate(t *testing.T) {
	valid := Default()
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, testCase := range []struct {
		name    string
		mutate  func(*Catalog)
		message string
	}{
		{
			name:    "no variants",
			mutate:  func(c *Catalog) { c.Variants = nil },
			message: "catalog has no variants",
		},
		{
			name: "duplicate variant",
			mutate: func(c *Catalog) {
				c.Variants = append(c.Variants, c.Variants[0])
			},
			message: "catalog has duplicate variant `stormdb`",
		},
		{
			name: "binary collision across variants",
			mutate: func(c *Catalog) {
				c.Variants[1].BuildPackages = []string{"./cmd/stormdb"}
				c.Variants[1].BinaryNames = []string{"stormdb"}
			},
			message: "variants `stormdb` and `stormdb-meta` both build " +
				"binary `stormdb`",
		},
		{
			name:    "no architectures",
			mutate:  func(c *Catalog) { c.Architectures = nil },
			message: "catalog has no architectures",
		},
		{
			name: "duplicate architecture",
			mutate: func(c *Catalog) {
				c.Architectures = append(
					c.Architectures,
					c.Architectures[0],
				)
			},
			message: "catalog has duplicate architecture `amd64`",
		},
		{
			name: "architecture missing triple",
			mutate: func(c *Catalog) {
				c.Architectures[1].Triple = ""
			},
			message: "architecture `arm64`: missing triple",
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			catalog := Default()
			testCase.mutate(catalog)
			err := catalog.Validate()
			if err == nil {
				t.Fatalf("wanted error; found `nil`")
			}
			if err.Error() != testCase.message {
				t.Fatalf(
					"wanted `%s`; found `%s`",
					testCase.message,
					err.Error(),
				)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte(`variants:
- name: stormdb
  buildPackages:
  - ./cmd/stormdb
  binaryNames:
  - stormdb
  descriptor: docker/stormdb/Dockerfile
architectures:
- triple: x86_64-linux-gnu
  platformLabel: amd64
  outputDir: target/linux-amd64
- triple: aarch64-linux-gnu
  platformLabel: arm64
  outputDir: target/linux-arm64
`), 0644); err != nil {
		t.Fatal(err)
	}

	catalog, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(catalog.Variants) != 1 {
		t.Fatalf("wanted `1` variant; found `%d`", len(catalog.Variants))
	}
	if catalog.Variants[0].Name != "stormdb" {
		t.Fatalf(
			"wanted variant `stormdb`; found `%s`",
			catalog.Variants[0].Name,
		)
	}
	wanted := []string{"amd64", "arm64"}
	found := catalog.PlatformLabels()
	if len(found) != len(wanted) {
		t.Fatalf("wanted `%d` labels; found `%d`", len(wanted), len(found))
	}
	for i := range wanted {
		if found[i] != wanted[i] {
			t.Fatalf("wanted `%s`; found `%s`", wanted[i], found[i])
		}
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte(`variants:
- name: stormdb
  buildPackages: [./cmd/stormdb]
  binaryNames: [stormdb]
  descriptor: docker/stormdb/Dockerfile
  bogus: true
architectures:
- triple: x86_64-linux-gnu
  platformLabel: amd64
  outputDir: target/linux-amd64
`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("wanted error; found `nil`")
	}
}

func TestTargetArchitecture_Native(t *testing.T) {
	native := TargetArchitecture{
		Triple:        "x86_64-linux-gnu",
		PlatformLabel: runtime.GOARCH,
		OutputDir:     "target/native",
	}
	if !native.Native() {
		t.Fatalf("wanted `%s` native; found foreign", native.PlatformLabel)
	}

	foreignLabel := "arm64"
	if runtime.GOARCH == "arm64" {
		foreignLabel = "amd64"
	}
	foreign := TargetArchitecture{
		Triple:        "aarch64-linux-gnu",
		PlatformLabel: foreignLabel,
		OutputDir:     "target/foreign",
	}
	if foreign.Native() {
		t.Fatalf("wanted `%s` foreign; found native", foreignLabel)
	}
}

func TestTargetArchitecture_Helpers(t *testing.T) {
	arch := TargetArchitecture{
		Triple:        "aarch64-linux-gnu",
		PlatformLabel: "arm64",
		OutputDir:     "target/linux-arm64",
	}
	if wanted, found := "aarch64-linux-gnu-gcc", arch.CrossCompiler(); found != wanted {
		t.Fatalf("wanted `%s`; found `%s`", wanted, found)
	}
	if wanted, found := "linux/arm64", arch.OCIPlatform(); found != wanted {
		t.Fatalf("wanted `%s`; found `%s`", wanted, found)
	}
}
