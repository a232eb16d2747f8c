package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/elasticsearch"

	"github.com/pteich/elastic-frame/flags"
)

func TestExportE2E(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}

	tests := []struct {
		version int
		image   string
	}{
		{version: 7, image: "docker.elastic.co/elasticsearch/elasticsearch:7.17.10"},
		{version: 8, image: "docker.elastic.co/elasticsearch/elasticsearch:8.17.0"},
		{version: 9, image: "docker.elastic.co/elasticsearch/elasticsearch:9.2.3"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("Elasticsearch_v%d", tt.version), func(t *testing.T) {
			ctx := context.Background()

			esContainer, err := elasticsearch.Run(ctx, tt.image,
				testcontainers.CustomizeRequest(testcontainers.GenericContainerRequest{
					ContainerRequest: testcontainers.ContainerRequest{
						Env: map[string]string{
							"discovery.type":         "single-node",
							"xpack.security.enabled": "false",
						},
					},
				}),
			)
			if err != nil {
				t.Fatalf("failed to start container: %s", err)
			}
			defer func() {
				if err := esContainer.Terminate(ctx); err != nil {
					t.Fatalf("failed to terminate container: %s", err)
				}
			}()

			endpoint := esContainer.Settings.Address
			dir := t.TempDir()

			// Seed data through the bulk import
			inFileName := filepath.Join(dir, "iris.csv")
			seedFile(t, inFileName, 3)

			run(t, ctx, &flags.Flags{
				Mode:           flags.ModeCreate,
				ElasticURL:     endpoint,
				ElasticVersion: tt.version,
				Index:          "test-index",
				Mapping:        "keyword",
			})
			run(t, ctx, &flags.Flags{
				Mode:           flags.ModeImport,
				ElasticURL:     endpoint,
				ElasticVersion: tt.version,
				Index:          "test-index",
				Format:         flags.FormatCSV,
				Infile:         inFileName,
			})

			// Run export
			outFileName := filepath.Join(dir, fmt.Sprintf("test_output_v%d.csv", tt.version))
			run(t, ctx, &flags.Flags{
				Mode:           flags.ModeExport,
				ElasticURL:     endpoint,
				ElasticVersion: tt.version,
				Index:          "test-index",
				Query:          "*",
				Format:         flags.FormatCSV,
				Outfile:        outFileName,
				Sort:           `[{"id":"asc"}]`,
			})

			// Verify output
			verifyOutput(t, outFileName, 3)

			// Aggregations come back as one row per bucket
			aggFileName := filepath.Join(dir, "aggs.csv")
			run(t, ctx, &flags.Flags{
				Mode:           flags.ModeExport,
				ElasticURL:     endpoint,
				ElasticVersion: tt.version,
				Index:          "test-index",
				Aggs:           `{"species":{"terms":{"field":"species"}}}`,
				Format:         flags.FormatCSV,
				Outfile:        aggFileName,
			})
			verifyOutput(t, aggFileName, 1)

			run(t, ctx, &flags.Flags{
				Mode:           flags.ModeDelete,
				ElasticURL:     endpoint,
				ElasticVersion: tt.version,
				Index:          "test-index",
				Approve:        true,
			})
		})
	}
}

func run(t *testing.T, ctx context.Context, conf *flags.Flags) {
	t.Helper()
	flags.SetDefaults(conf)
	if err := flags.Validate(conf); err != nil {
		t.Fatalf("invalid flags: %s", err)
	}
	if err := Run(ctx, conf); err != nil {
		t.Fatalf("%s failed: %s", conf.Mode, err)
	}
}

func seedFile(t *testing.T, filename string, rows int) {
	var buf bytes.Buffer
	buf.WriteString("id,Sepal.Length,Species,message\n")
	for i := 1; i <= rows; i++ {
		fmt.Fprintf(&buf, "%d,5.%d,setosa,test message %d\n", i, i, i)
	}
	if err := os.WriteFile(filename, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write seed file: %s", err)
	}
}

func verifyOutput(t *testing.T, filename string, expectedLines int) {
	data, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("failed to read output file: %s", err)
	}

	lines := bytes.Count(data, []byte("\n"))
	// CSV header + expectedLines
	if lines != expectedLines+1 {
		t.Errorf("expected %d lines in output (including header), got %d", expectedLines+1, lines)
	}
}
