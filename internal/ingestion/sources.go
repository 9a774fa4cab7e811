package ingestion

import (
	"context"
	"fmt"
	"os"

	"optionforge/internal/domain"
	"optionforge/internal/storage/parquet"
)

// Import formats, also used as metric labels.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// QuoteSource yields option quotes from an external file or feed.
type QuoteSource interface {
	Format() string
	Quotes(ctx context.Context) ([]*domain.OptionQuote, error)
}

// CSVSource reads a header-driven CSV option chain file.
type CSVSource struct {
	Path    string
	Options CSVOptions
}

func (s *CSVSource) Format() string { return FormatCSV }

// Quotes parses the whole file.
func (s *CSVSource) Quotes(_ context.Context) ([]*domain.OptionQuote, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()

	quotes, err := ParseQuotesCSV(f, s.Options)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return quotes, nil
}

// ParquetSource reads quotes written by the parquet store or exported in its schema.
type ParquetSource struct {
	Path string
}

func (s *ParquetSource) Format() string { return FormatParquet }

// Quotes reads every row of the file.
func (s *ParquetSource) Quotes(_ context.Context) ([]*domain.OptionQuote, error) {
	return parquet.ReadQuotes(s.Path)
}

// SourceForPath picks a source by file extension.
func SourceForPath(path string, opts CSVOptions) (QuoteSource, error) {
	switch ext := fileExt(path); ext {
	case ".csv":
		return &CSVSource{Path: path, Options: opts}, nil
	case ".parquet":
		return &ParquetSource{Path: path}, nil
	default:
		return nil, fmt.Errorf("unsupported file type %q (want .csv or .parquet)", ext)
	}
}
