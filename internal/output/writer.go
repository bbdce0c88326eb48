// Package output provides the interface and configuration and implementation for
// writers of the per-listing audit log and the end-of-run report.
package output

import (
	"fmt"

	"github.com/jakopako/goapply/internal/types"
)

// Writer defines the interface for all writers that are responsible
// for writing the audit log of a run to a specific output.
type Writer interface {
	// Write consumes records until recordChan is closed.
	Write(recordChan <-chan types.ListingRecord)
	// WriteSummary is called once, after Write returned, and releases
	// whatever the writer holds on to.
	WriteSummary(summary types.RunSummary)
}

// WriterConfig defines the necessary paramters to make a new writer
// which is responsible for writing the audit log to a specific output
// eg. stdout.
type WriterConfig struct {
	Type       WriterType `yaml:"type" env:"WRITER_TYPE"`
	Uri        string     `yaml:"uri,omitempty" env:"WRITER_URI"`
	UriSummary string     `yaml:"uri_summary,omitempty" env:"WRITER_URI_SUMMARY"`
	User       string     `yaml:"user,omitempty" env:"WRITER_USER"`         // we want to be able to pass credentials via env vars
	Password   string     `yaml:"password,omitempty" env:"WRITER_PASSWORD"` // we want to be able to pass credentials via env vars
	FileDir    string     `yaml:"filedir,omitempty" env:"WRITER_FILEDIR"`
	DSN        string     `yaml:"dsn,omitempty" env:"WRITER_DSN"`
	BatchSize  int        `yaml:"batch_size,omitempty"`
}

// WriterType encapsulates the type of a writer
// See below constants for possible types
type WriterType string

const (
	STDOUT_WRITER_TYPE   WriterType = "stdout"
	FILE_WRITER_TYPE     WriterType = "file"
	API_WRITER_TYPE      WriterType = "api"
	SQLITE_WRITER_TYPE   WriterType = "sqlite"
	POSTGRES_WRITER_TYPE WriterType = "postgres"
)

// NewWriter returns a new writer depending on the writer type
func NewWriter(wc *WriterConfig) (Writer, error) {
	switch wc.Type {
	case STDOUT_WRITER_TYPE, "":
		return NewStdoutWriter(wc), nil
	case FILE_WRITER_TYPE:
		return NewFileWriter(wc)
	case API_WRITER_TYPE:
		return NewAPIWriter(wc)
	case SQLITE_WRITER_TYPE:
		return NewSQLiteWriter(wc)
	case POSTGRES_WRITER_TYPE:
		return NewPostgresWriter(wc)
	default:
		return nil, fmt.Errorf("writer of type '%s' not implemented", wc.Type)
	}
}
