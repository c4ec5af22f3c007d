package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/weberc2/releaser/pkg/archive"
	"github.com/weberc2/releaser/pkg/catalog"
	"github.com/weberc2/releaser/pkg/crossbuild"
	"github.com/weberc2/releaser/pkg/gate"
	"github.com/weberc2/releaser/pkg/manifest"
	"github.com/weberc2/releaser/pkg/pipeline"
	"github.com/weberc2/releaser/pkg/publish"
	"github.com/weberc2/releaser/pkg/release"
	"github.com/weberc2/releaser/pkg/runner"
	"github.com/weberc2/releaser/pkg/runstore"
)

const (
	envVarPrefix = "RELEASER"
	appName      = "releaser"
)

type Config struct {
	Addr            string  `envconfig:"RELEASER_ADDR"             yaml:"addr"`
	Workdir         string  `envconfig:"RELEASER_WORKDIR"          yaml:"workdir"`
	Registry        string  `envconfig:"RELEASER_REGISTRY"         yaml:"registry"`
	StagingRoot     string  `envconfig:"RELEASER_STAGING_ROOT"     yaml:"stagingRoot"`
	CatalogFile     string  `envconfig:"RELEASER_CATALOG_FILE"     yaml:"catalogFile"`
	Project         Project `envconfig:"RELEASER_PROJECT"          yaml:"project"`
	Branch          string  `envconfig:"RELEASER_BRANCH"           yaml:"branch"`
	BuildCache      string  `envconfig:"RELEASER_BUILD_CACHE"      yaml:"buildCache"`
	CompilerWrapper string  `envconfig:"RELEASER_COMPILER_WRAPPER" yaml:"compilerWrapper"`
	RegistryServer  string  `envconfig:"RELEASER_REGISTRY_SERVER"  yaml:"registryServer"`
	RegistryUser    string  `envconfig:"RELEASER_REGISTRY_USER"    yaml:"registryUser"`
	ArchiveBucket   string  `envconfig:"RELEASER_ARCHIVE_BUCKET"   yaml:"archiveBucket"`
	ArchivePrefix   string  `envconfig:"RELEASER_ARCHIVE_PREFIX"   yaml:"archivePrefix"`
	VerifyManifests bool    `envconfig:"RELEASER_VERIFY_MANIFESTS" yaml:"verifyManifests"`
	RecordRuns      bool    `envconfig:"RELEASER_RECORD_RUNS"      yaml:"recordRuns"`

	// the registry password is a secret; it comes from the environment only,
	// never from the config file
	RegistryPassword string `envconfig:"RELEASER_REGISTRY_PASSWORD" yaml:"-"`

	// overrides for the source context normally discovered from the working
	// tree's git metadata; set by CI harnesses, not config files
	SourceCommit  string  `envconfig:"RELEASER_SOURCE_COMMIT"  yaml:"-"`
	SourceBranch  string  `envconfig:"RELEASER_SOURCE_BRANCH"  yaml:"-"`
	SourceProject Project `envconfig:"RELEASER_SOURCE_PROJECT" yaml:"-"`
}

func LoadConfig() (*Config, error) {
	configFile := os.Getenv(envVarPrefix + "_CONFIG_FILE")
	if configFile == "" {
		configFile = filepath.Join(
			os.Getenv("HOME"),
			".config",
			appName+".yaml",
		)
	}

	var c Config
	data, err := os.ReadFile(configFile)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshaling config file: %w", err)
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	// envconfig `default` tags would overwrite values already unmarshaled
	// from the config file, so apply fallbacks after processing
	if c.Addr == "" {
		c.Addr = "127.0.0.1:8080"
	}
	if c.Workdir == "" {
		c.Workdir = "."
	}
	if c.Branch == "" {
		c.Branch = "main"
	}
	if c.ArchivePrefix == "" {
		c.ArchivePrefix = "community"
	}

	return &c, nil
}

func (c *Config) Validate() error {
	if y, e := func() (string, string) {
		if c.Registry == "" {
			return "registry", "REGISTRY"
		}
		if c.Project == (Project{}) {
			return "project", "PROJECT"
		}
		if c.Branch == "" {
			return "branch", "BRANCH"
		}
		if c.Workdir == "" {
			return "workdir", "WORKDIR"
		}
		return "", ""
	}(); y != "" {
		return fmt.Errorf(
			"missing required configuration: %s / %s_%s",
			y,
			envVarPrefix,
			e,
		)
	}
	return nil
}

// Catalog loads the configured catalog file, falling back to the built-in
// release matrix when none is configured.
func (c *Config) Catalog() (*catalog.Catalog, error) {
	if c.CatalogFile == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(c.CatalogFile)
}

// Invocation assembles the invocation for one release run: the operator's
// tag plus the source context, taken from the environment overrides where
// set and discovered from the working tree's git metadata otherwise.
func (c *Config) Invocation(tag string) (*release.Invocation, error) {
	invocation := release.Invocation{
		Tag:          tag,
		SourceCommit: c.SourceCommit,
		SourceBranch: c.SourceBranch,
		Project:      c.SourceProject.Std(),
	}
	if err := gate.Discover(c.Workdir, &invocation); err != nil {
		return nil, err
	}
	return &invocation, nil
}

// Pipeline assembles the release pipeline from the configuration. Optional
// pieces (credentials, the artifact archive, manifest verification, the run
// ledger) are wired only when configured.
func (c *Config) Pipeline() (*pipeline.Pipeline, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	stagingRoot := c.StagingRoot
	if stagingRoot == "" {
		stagingRoot = filepath.Join(c.Workdir, "target", "stage")
	}

	p := pipeline.Pipeline{
		Gate: gate.Gate{Project: c.Project.Std(), Branch: c.Branch},
		Builder: &crossbuild.Builder{
			Runner:          runner.ExecRunner{},
			Workdir:         c.Workdir,
			CacheDir:        c.BuildCache,
			CompilerWrapper: c.CompilerWrapper,
		},
		Publisher: &publish.Publisher{
			Runner:   runner.ExecRunner{},
			Registry: c.Registry,
			Workdir:  c.Workdir,
		},
		StagingRoot: stagingRoot,
	}

	if c.RegistryUser != "" {
		p.Credentials = &publish.Credentials{
			Server:   c.RegistryServer,
			Username: c.RegistryUser,
			Password: c.RegistryPassword,
		}
	}

	if c.ArchiveBucket != "" {
		sess, err := session.NewSession()
		if err != nil {
			return nil, fmt.Errorf("creating AWS session: %w", err)
		}
		p.Archiver = &archive.Archiver{
			Store:  &archive.S3ObjectStore{Client: s3.New(sess)},
			Bucket: c.ArchiveBucket,
			Prefix: c.ArchivePrefix,
		}
	}

	if c.VerifyManifests {
		p.Verifier = &manifest.Verifier{}
	}

	if c.RecordRuns {
		store, err := runstore.OpenEnv()
		if err != nil {
			return nil, fmt.Errorf("opening run ledger: %w", err)
		}
		if err := store.EnsureTable(); err != nil {
			return nil, err
		}
		p.Recorder = store
	}

	return &p, nil
}

type Project release.ProjectIdentity

func (p *Project) Decode(value string) error {
	project, err := release.ParseProjectIdentity(value)
	if err != nil {
		return err
	}
	*p = Project(project)
	return nil
}

func (p *Project) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("yaml-unmarshaling *Project: %w", err)
	}

	if err := p.Decode(s); err != nil {
		return fmt.Errorf("yaml-unmarshaling *Project: %w", err)
	}

	return nil
}

func (p Project) Std() release.ProjectIdentity {
	return release.ProjectIdentity(p)
}
