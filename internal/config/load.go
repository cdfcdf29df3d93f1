package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/CourtJesterG/conary/internal/errs"
)

// Repository is the repository-server config file shape: the option
// families §6 enumerates, narrowed to the settings this core's store and
// query engine actually consume. CLI front-ends may layer their own
// options on top; this struct covers only what the core reads.
type Repository struct {
	// DataSourceName is the database/sql DSN the store opens.
	DataSourceName string `yaml:"dataSourceName"`
	// ContentRoot is the sharded content-store root directory.
	ContentRoot PathValue `yaml:"-"`
	ContentRootRaw string `yaml:"contentRoot"`
	// RequireSigs, if true, makes digest verification strict (§4.3,
	// §7's "strict under an explicit flag").
	RequireSigs bool `yaml:"requireSigs"`
	// MinSupportedMajor gates §4.9's SchemaVersionError floor.
	MinSupportedMajor int `yaml:"minSupportedMajor"`
	// LabelPath is the default search path used when a caller omits one.
	LabelPath []string `yaml:"labelPath"`
	// TrustedFingerprints restricts which keys verifyDigests() will treat
	// as known, leaving all others reported-but-not-fatal per §4.3.
	TrustedFingerprints []string `yaml:"trustedFingerprints"`
}

// Load reads a YAML repository config file from path. contentRoot is
// expanded through CfgPath and minSupportedMajor must not be negative;
// the other fields are taken as yaml.v3 decodes them. Read and decode
// failures surface as KindParse errors.
func Load(path string) (*Repository, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(errs.KindParse, err, "read config %s", path)
	}
	var r Repository
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return nil, errs.Wrapf(errs.KindParse, err, "parse config %s", path)
	}

	if r.ContentRootRaw != "" {
		v, err := CfgPath{}.ParseString(r.ContentRootRaw)
		if err != nil {
			return nil, err
		}
		r.ContentRoot = v.(PathValue)
	}
	if r.MinSupportedMajor < 0 {
		return nil, errs.Newf(errs.KindParse, "minSupportedMajor must be >= 0, got %d", r.MinSupportedMajor)
	}
	return &r, nil
}

// Default returns the zero-configuration Repository a fresh local
// repository runs with: an on-disk SQLite file and content root under
// the current directory, lenient digest verification.
func Default() *Repository {
	return &Repository{
		DataSourceName:    "conary.db",
		ContentRoot:       PathValue{Raw: "./content", Expanded: "./content"},
		RequireSigs:       false,
		MinSupportedMajor: 13,
	}
}
