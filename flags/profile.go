package flags

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Profile holds connection defaults that would otherwise be repeated on every
// invocation.
type Profile struct {
	Elastic    ElasticProfile `koanf:"elastic"`
	Index      string         `koanf:"index"`
	DocType    string         `koanf:"doctype"`
	Format     string         `koanf:"format"`
	Workers    int            `koanf:"workers"`
	StagingDir string         `koanf:"staging_dir"`
	LogLevel   string         `koanf:"log_level"`
}

type ElasticProfile struct {
	URL       string `koanf:"url"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`
	VerifySSL bool   `koanf:"verify_ssl"`
	ClientCrt string `koanf:"client_crt"`
	ClientKey string `koanf:"client_key"`
	Version   int    `koanf:"version"`
}

// LoadProfile reads the YAML profile at path.
func LoadProfile(path string) (*Profile, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading profile from %s: %w", path, err)
	}

	var p Profile
	if err := k.Unmarshal("", &p); err != nil {
		return nil, fmt.Errorf("unmarshaling profile: %w", err)
	}
	return &p, nil
}

// Apply copies profile values into conf where no flag was given.
func (p *Profile) Apply(conf *Flags) {
	setString(&conf.ElasticURL, p.Elastic.URL)
	setString(&conf.ElasticUser, p.Elastic.Username)
	setString(&conf.ElasticPass, p.Elastic.Password)
	setString(&conf.ElasticClientCrt, p.Elastic.ClientCrt)
	setString(&conf.ElasticClientKey, p.Elastic.ClientKey)
	setString(&conf.Index, p.Index)
	setString(&conf.DocType, p.DocType)
	setString(&conf.Format, p.Format)
	setString(&conf.StagingDir, p.StagingDir)
	setString(&conf.LogLevel, p.LogLevel)
	if !conf.ElasticVerifySSL {
		conf.ElasticVerifySSL = p.Elastic.VerifySSL
	}
	if conf.ElasticVersion == 0 {
		conf.ElasticVersion = p.Elastic.Version
	}
	if conf.Workers == 0 {
		conf.Workers = p.Workers
	}
}

func setString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
