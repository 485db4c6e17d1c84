package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"item-diversity/internal/purchases"

	parquet "github.com/parquet-go/parquet-go"
)

// WriteParquet writes Snappy-compressed Parquet copies of the mythic and
// combined tables next to their CSV files. The combined table also carries
// the position of each item.
func WriteParquet(dir string, names FileNames, t *Tables) error {
	if err := checkDir(dir); err != nil {
		return err
	}

	if err := writeParquetFile(filepath.Join(dir, parquetName(names.Mythics)),
		parquet.SchemaOf(new(purchases.MythicRow)), t.Mythics); err != nil {
		return err
	}
	return writeParquetFile(filepath.Join(dir, parquetName(names.Items)),
		parquet.SchemaOf(new(purchases.ItemRow)), t.Items)
}

func parquetName(csvName string) string {
	return strings.TrimSuffix(csvName, ".csv") + ".parquet"
}

func writeParquetFile[T any](path string, schema *parquet.Schema, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := parquet.NewWriter(f, schema, parquet.Compression(&parquet.Snappy))
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			_ = w.Close()
			_ = f.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	if err := w.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to finish %s: %w", path, err)
	}
	return f.Close()
}
