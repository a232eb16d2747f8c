package flags

import (
	"fmt"
	"strings"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

const (
	ModeExport = "export"
	ModeImport = "import"
	ModeDelete = "delete"
	ModeCreate = "create"
	ModeInfo   = "info"
)

type Flags struct {
	Config           string `cli:"config" usage:"YAML profile with connection defaults"`
	Mode             string `cli:"mode" cliAlt:"m" usage:"What to do. [export|import|delete|create|info]"`
	ElasticURL       string `cli:"connect" cliAlt:"c" usage:"ElasticSearch URL"`
	ElasticUser      string `cli:"user" usage:"ElasticSearch Username"`
	ElasticPass      string `cli:"pass" usage:"ElasticSearch Password"`
	ElasticVerifySSL bool   `cli:"verifySSL" usage:"Verify SSL certificate"`
	ElasticClientCrt string `cli:"clientcrt" usage:"Path to a client certificate for TLS authentication"`
	ElasticClientKey string `cli:"clientkey" usage:"Path to the key of the client certificate"`
	ElasticVersion   int    `cli:"esversion" usage:"Major version of the ElasticSearch cluster. [7|8|9]"`
	Index            string `cli:"index" cliAlt:"i" usage:"ElasticSearch Index"`
	DocType          string `cli:"doctype" cliAlt:"t" usage:"Document type inside the index (clusters before 7.x)"`
	RAWQuery         string `cli:"rawquery" cliAlt:"r" usage:"ElasticSearch raw query string"`
	Query            string `cli:"query" cliAlt:"q" usage:"Lucene query same that is used in Kibana search input"`
	StartDate        string `cli:"start" cliAlt:"s" usage:"Start date for included documents"`
	EndDate          string `cli:"end" cliAlt:"e" usage:"End date for included documents"`
	Timefield        string `cli:"timefield" usage:"Field name to use for start and end date query"`
	Sort             string `cli:"sort" usage:"Sort clause as JSON"`
	Aggs             string `cli:"aggs" cliAlt:"a" usage:"Aggregations as JSON, exports the aggregation result instead of documents"`
	Size             int    `cli:"size" usage:"Maximum number of documents to export, 0 exports all"`
	Fieldlist        string `cli:"fields" usage:"Fields to include in export as comma separated list"`
	Format           string `cli:"format" cliAlt:"f" usage:"Format of the data files. [csv|json|yaml]"`
	Outfile          string `cli:"outfile" cliAlt:"o" usage:"Path to output file, - for stdout"`
	Infile           string `cli:"infile" usage:"Path to input file for import, - for stdin"`
	Mapping          string `cli:"mapping" usage:"Path to a mapping JSON file, or keyword|fielddata for a predefined one"`
	IDs              string `cli:"ids" usage:"Comma separated document ids to delete instead of all documents"`
	Approve          bool   `cli:"approve" usage:"Confirm deleting all documents of the index or type"`
	Workers          int    `cli:"workers" usage:"Number of parallel bulk uploads"`
	StagingDir       string `cli:"staging" usage:"Stage bulk payloads as temporary files in this directory"`
	LogLevel         string `cli:"loglevel" usage:"Log level. [debug|info|warn|error]"`
	Trace            bool   `cli:"trace" usage:"Log every request to the cluster"`
	Fields           []string
}

// SetDefaults fills everything that was neither given as flag nor in a profile.
func SetDefaults(conf *Flags) {
	if conf.ElasticURL == "" {
		conf.ElasticURL = "http://localhost:9200"
	}
	if conf.ElasticVersion == 0 {
		conf.ElasticVersion = 8
	}
	if conf.Mode == "" {
		conf.Mode = ModeExport
	}
	if conf.Format == "" {
		conf.Format = FormatCSV
	}
	if conf.Outfile == "" {
		conf.Outfile = "-"
	}
	if conf.Infile == "" {
		conf.Infile = "-"
	}
	if conf.Timefield == "" {
		conf.Timefield = "@timestamp"
	}
	if conf.Workers == 0 {
		conf.Workers = 1
	}
	if conf.LogLevel == "" {
		conf.LogLevel = "info"
	}
	if conf.Fieldlist != "" && conf.Fields == nil {
		conf.Fields = splitList(conf.Fieldlist)
	}
}

// Validate checks the combination of flags for the selected mode.
func Validate(conf *Flags) error {
	switch conf.Mode {
	case ModeExport, ModeImport, ModeDelete, ModeCreate:
		if conf.Index == "" {
			return fmt.Errorf("mode %s needs an index", conf.Mode)
		}
	case ModeInfo:
	default:
		return fmt.Errorf("unknown mode %q", conf.Mode)
	}

	switch conf.ElasticVersion {
	case 7, 8, 9:
	default:
		return fmt.Errorf("unsupported ElasticSearch version %d", conf.ElasticVersion)
	}

	if conf.RAWQuery != "" && conf.Query != "" {
		return fmt.Errorf("rawquery and query are mutually exclusive")
	}
	if conf.Size < 0 {
		return fmt.Errorf("size must not be negative")
	}
	if conf.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	return nil
}

// IDList splits the ids flag.
func (f *Flags) IDList() []string {
	return splitList(f.IDs)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
