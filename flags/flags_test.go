package flags

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	conf := &Flags{Index: "iris", Fieldlist: "a, b,,c"}
	SetDefaults(conf)

	assert.Equal(t, "http://localhost:9200", conf.ElasticURL)
	assert.Equal(t, 8, conf.ElasticVersion)
	assert.Equal(t, ModeExport, conf.Mode)
	assert.Equal(t, FormatCSV, conf.Format)
	assert.Equal(t, "-", conf.Outfile)
	assert.Equal(t, 1, conf.Workers)
	assert.Equal(t, []string{"a", "b", "c"}, conf.Fields)
	assert.NoError(t, Validate(conf))
}

func TestValidate(t *testing.T) {
	valid := func() *Flags {
		conf := &Flags{Index: "iris"}
		SetDefaults(conf)
		return conf
	}

	tests := []struct {
		name   string
		modify func(*Flags)
	}{
		{"missing index", func(f *Flags) { f.Index = "" }},
		{"unknown mode", func(f *Flags) { f.Mode = "dump" }},
		{"version", func(f *Flags) { f.ElasticVersion = 6 }},
		{"both queries", func(f *Flags) { f.RAWQuery = `{}`; f.Query = "*" }},
		{"negative size", func(f *Flags) { f.Size = -1 }},
		{"no workers", func(f *Flags) { f.Workers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := valid()
			tt.modify(conf)
			assert.Error(t, Validate(conf))
		})
	}

	info := &Flags{Mode: ModeInfo}
	SetDefaults(info)
	assert.NoError(t, Validate(info))
}

func TestIDList(t *testing.T) {
	assert.Equal(t, []string{"1", "2"}, (&Flags{IDs: " 1,2 ,"}).IDList())
	assert.Nil(t, (&Flags{}).IDList())
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
elastic:
  url: https://es.example.com:9243
  username: reader
  password: secret
  verify_ssl: true
  version: 7
index: iris
format: json
workers: 4
`), 0o600))

	p, err := LoadProfile(path)
	require.NoError(t, err)

	conf := &Flags{Index: "shakespeare", Format: "yaml"}
	p.Apply(conf)

	assert.Equal(t, "https://es.example.com:9243", conf.ElasticURL)
	assert.Equal(t, "reader", conf.ElasticUser)
	assert.Equal(t, "secret", conf.ElasticPass)
	assert.True(t, conf.ElasticVerifySSL)
	assert.Equal(t, 7, conf.ElasticVersion)
	assert.Equal(t, 4, conf.Workers)
	// explicit flags win
	assert.Equal(t, "shakespeare", conf.Index)
	assert.Equal(t, "yaml", conf.Format)
}

func TestLoadProfile_Missing(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
