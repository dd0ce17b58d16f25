package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	dbSQLite "github.com/kailas-cloud/recall/internal/db/sqlite"
)

const embeddingColumn = "embedding"

// parquetHandle wraps parquet.File + underlying os.File for proper cleanup.
type parquetHandle struct {
	pf   *parquet.File
	file *os.File
}

func (h *parquetHandle) Close() {
	_ = h.file.Close()
}

func openParquet(path string) (*parquetHandle, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	return &parquetHandle{pf: pf, file: f}, nil
}

// readRecords streams rows of a parquet file as table records.
// Every top-level column except embedding becomes a field; embedding must be a list of floats.
func readRecords(path, table string, cb func(dbSQLite.Record) error) (int, error) {
	h, err := openParquet(path)
	if err != nil {
		return 0, err
	}
	defer h.Close()

	// Leaf index -> top-level column name. List columns have longer paths.
	leaves := h.pf.Schema().Columns()
	names := make([]string, len(leaves))
	hasEmbedding := false
	for i, p := range leaves {
		if len(p) > 0 {
			names[i] = p[0]
			hasEmbedding = hasEmbedding || p[0] == embeddingColumn
		}
	}
	if !hasEmbedding {
		return 0, fmt.Errorf("%s column not found in parquet schema", embeddingColumn)
	}

	n := 0
	for _, rg := range h.pf.RowGroups() {
		rows := parquet.NewRowGroupReader(rg)
		buf := make([]parquet.Row, 256)

		for {
			cnt, readErr := rows.ReadRows(buf)
			for i := 0; i < cnt; i++ {
				if err := cb(rowToRecord(buf[i], names, table)); err != nil {
					return n, fmt.Errorf("row %d: %w", n, err)
				}
				n++
			}
			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					break
				}
				return n, fmt.Errorf("read rows: %w", readErr)
			}
		}
	}
	return n, nil
}

func rowToRecord(row parquet.Row, names []string, table string) dbSQLite.Record {
	rec := dbSQLite.Record{Table: table, Fields: make(map[string]any, len(names))}
	for _, v := range row {
		col := v.Column()
		if col < 0 || col >= len(names) || v.IsNull() {
			continue
		}
		if names[col] == embeddingColumn {
			if f, ok := numeric(v); ok {
				rec.Embedding = append(rec.Embedding, float32(f))
			}
			continue
		}
		if val := scalar(v); val != nil {
			rec.Fields[names[col]] = val
		}
	}
	return rec
}

func numeric(v parquet.Value) (float64, bool) {
	switch v.Kind() {
	case parquet.Float:
		return float64(v.Float()), true
	case parquet.Double:
		return v.Double(), true
	case parquet.Int32:
		return float64(v.Int32()), true
	case parquet.Int64:
		return float64(v.Int64()), true
	default:
		return 0, false
	}
}

func scalar(v parquet.Value) any {
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return v.Int32()
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return v.Float()
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return v.String()
	default:
		return nil
	}
}
