// Package catalog defines the build matrix for a release: which image
// variants exist, which binaries each variant ships, and which architectures
// every variant is compiled for.
package catalog

import (
	"fmt"
	"os"
	"path"
	"runtime"
	"strings"

	"github.com/gosimple/slug"
	"gopkg.in/yaml.v2"

	"github.com/weberc2/releaser/pkg/release"
)

// TargetArchitecture is one compilation target. `PlatformLabel` is the
// container platform architecture (`amd64`, `arm64`) and doubles as the
// toolchain's GOARCH value; `Triple` names the C cross toolchain used when
// the target isn't the host architecture. `OutputDir` is where the
// toolchain drops binaries, relative to the source checkout.
type TargetArchitecture struct {
	Triple        string `yaml:"triple" json:"triple"`
	PlatformLabel string `yaml:"platformLabel" json:"platformLabel"`
	OutputDir     string `yaml:"outputDir" json:"outputDir"`
}

func (arch *TargetArchitecture) Validate() error {
	if arch.PlatformLabel == "" {
		return fmt.Errorf("architecture missing platform label")
	}
	if arch.Triple == "" {
		return fmt.Errorf(
			"architecture `%s`: missing triple",
			arch.PlatformLabel,
		)
	}
	if arch.OutputDir == "" {
		return fmt.Errorf(
			"architecture `%s`: missing output directory",
			arch.PlatformLabel,
		)
	}
	return nil
}

// Native reports whether the target matches the host architecture. Native
// builds use the host C toolchain; foreign builds link with the target
// triple's cross compiler.
func (arch *TargetArchitecture) Native() bool {
	return arch.PlatformLabel == runtime.GOARCH
}

// CrossCompiler returns the C compiler executable for the target triple,
// e.g. `aarch64-linux-gnu-gcc`.
func (arch *TargetArchitecture) CrossCompiler() string {
	return arch.Triple + "-gcc"
}

// OCIPlatform returns the platform string container tooling understands,
// e.g. `linux/amd64`.
func (arch *TargetArchitecture) OCIPlatform() string {
	return "linux/" + arch.PlatformLabel
}

// ImageVariant maps one deliverable image onto the packages compiled into
// it. `BuildPackages` and `BinaryNames` are parallel: the i'th package
// builds the i'th binary. `Descriptor` is the image build file, relative to
// the source checkout.
type ImageVariant struct {
	Name          string   `yaml:"name" json:"name"`
	BuildPackages []string `yaml:"buildPackages" json:"buildPackages"`
	BinaryNames   []string `yaml:"binaryNames" json:"binaryNames"`
	Descriptor    string   `yaml:"descriptor" json:"descriptor"`
}

func (variant *ImageVariant) Validate() error {
	if variant.Name == "" {
		return &release.ConfigErr{Reason: "missing variant name"}
	}
	if s := slug.Make(variant.Name); s != variant.Name {
		return &release.ConfigErr{
			Variant: variant.Name,
			Reason: fmt.Sprintf(
				"variant name isn't slug-form: wanted `%s`",
				s,
			),
		}
	}
	if len(variant.BuildPackages) == 0 {
		return &release.ConfigErr{
			Variant: variant.Name,
			Reason:  "no build packages",
		}
	}
	if len(variant.BinaryNames) != len(variant.BuildPackages) {
		return &release.ConfigErr{
			Variant: variant.Name,
			Reason: fmt.Sprintf(
				"%d build packages but %d binary names",
				len(variant.BuildPackages),
				len(variant.BinaryNames),
			),
		}
	}
	seen := map[string]bool{}
	for i, binary := range variant.BinaryNames {
		if binary == "" || strings.ContainsRune(binary, '/') {
			return &release.ConfigErr{
				Variant: variant.Name,
				Reason:  fmt.Sprintf("invalid binary name: `%s`", binary),
			}
		}
		if seen[binary] {
			return &release.ConfigErr{
				Variant: variant.Name,
				Reason:  fmt.Sprintf("duplicate binary name: `%s`", binary),
			}
		}
		seen[binary] = true

		// the toolchain names each binary after its package's base name
		if base := path.Base(variant.BuildPackages[i]); base != binary {
			return &release.ConfigErr{
				Variant: variant.Name,
				Reason: fmt.Sprintf(
					"package `%s` builds binary `%s`, not `%s`",
					variant.BuildPackages[i],
					base,
					binary,
				),
			}
		}
	}
	if variant.Descriptor == "" {
		return &release.ConfigErr{
			Variant: variant.Name,
			Reason:  "missing image descriptor",
		}
	}
	return nil
}

// Catalog is the full build matrix. Every variant is built for every
// architecture; there is no per-variant architecture subsetting.
type Catalog struct {
	Variants      []ImageVariant       `yaml:"variants" json:"variants"`
	Architectures []TargetArchitecture `yaml:"architectures" json:"architectures"`
}

func (catalog *Catalog) Validate() error {
	if len(catalog.Variants) == 0 {
		return fmt.Errorf("catalog has no variants")
	}
	names := map[string]bool{}
	// variants share the toolchain output directories, so binary names must
	// be unique across the whole catalog, not just within a variant
	binaries := map[string]string{}
	for i := range catalog.Variants {
		if err := catalog.Variants[i].Validate(); err != nil {
			return err
		}
		if names[catalog.Variants[i].Name] {
			return fmt.Errorf(
				"catalog has duplicate variant `%s`",
				catalog.Variants[i].Name,
			)
		}
		names[catalog.Variants[i].Name] = true

		for _, binary := range catalog.Variants[i].BinaryNames {
			if owner, found := binaries[binary]; found {
				return fmt.Errorf(
					"variants `%s` and `%s` both build binary `%s`",
					owner,
					catalog.Variants[i].Name,
					binary,
				)
			}
			binaries[binary] = catalog.Variants[i].Name
		}
	}

	if len(catalog.Architectures) == 0 {
		return fmt.Errorf("catalog has no architectures")
	}
	labels := map[string]bool{}
	for i := range catalog.Architectures {
		if err := catalog.Architectures[i].Validate(); err != nil {
			return err
		}
		label := catalog.Architectures[i].PlatformLabel
		if labels[label] {
			return fmt.Errorf(
				"catalog has duplicate architecture `%s`",
				label,
			)
		}
		labels[label] = true
	}

	return nil
}

// PlatformLabels returns the architectures' platform labels in catalog
// order.
func (catalog *Catalog) PlatformLabels() []string {
	out := make([]string, len(catalog.Architectures))
	for i := range catalog.Architectures {
		out[i] = catalog.Architectures[i].PlatformLabel
	}
	return out
}

// Load reads and validates a catalog from a YAML file. Unknown fields are
// rejected.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	var catalog Catalog
	if err := yaml.UnmarshalStrict(data, &catalog); err != nil {
		return nil, fmt.Errorf("loading catalog `%s`: %w", path, err)
	}
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("loading catalog `%s`: %w", path, err)
	}
	return &catalog, nil
}

// Default returns the build matrix shipped with the releaser: the `stormdb`
// and `stormdb-meta` images, each compiled for amd64 and arm64.
func Default() *Catalog {
	return &Catalog{
		Variants: []ImageVariant{
			{
				Name: "stormdb",
				BuildPackages: []string{
					"./cmd/stormdb",
					"./cmd/stormdb-cli",
				},
				BinaryNames: []string{"stormdb", "stormdb-cli"},
				Descriptor:  "docker/stormdb/Dockerfile",
			},
			{
				Name:          "stormdb-meta",
				BuildPackages: []string{"./cmd/stormdb-meta"},
				BinaryNames:   []string{"stormdb-meta"},
				Descriptor:    "docker/stormdb-meta/Dockerfile",
			},
		},
		Architectures: []TargetArchitecture{
			{
				Triple:        "x86_64-linux-gnu",
				PlatformLabel: "amd64",
				OutputDir:     "target/linux-amd64",
			},
			{
				Triple:        "aarch64-linux-gnu",
				PlatformLabel: "arm64",
				OutputDir:     "target/linux-arm64",
			},
		},
	}
}
