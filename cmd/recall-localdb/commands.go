package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/recall/internal/db"
	dbSQLite "github.com/kailas-cloud/recall/internal/db/sqlite"
	"github.com/kailas-cloud/recall/internal/version"
)

const (
	defaultDBPath    = "recall_memory.db"
	defaultThreshold = 0.3
	defaultLimit     = 5
	commandTimeout   = 30 * time.Second
)

// searchInput is read from stdin. Absent fields fall back to the flags.
type searchInput struct {
	Vector    []float32 `json:"vector"`
	Threshold *float64  `json:"threshold"`
	Limit     *int      `json:"limit"`
}

func newRootCmd() *cobra.Command {
	var dbPath string

	root := &cobra.Command{
		Use:           "recall-localdb",
		Short:         "Local SQLite memory store",
		Version:       version.String(),
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath, "Path to the SQLite database")

	root.AddCommand(
		newSearchCmd(&dbPath),
		newUpsertCmd(&dbPath),
		newImportCmd(&dbPath),
		newDeleteCmd(&dbPath),
	)
	return root
}

func newSearchCmd(dbPath *string) *cobra.Command {
	var (
		table     string
		threshold float64
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search a table by embedding read as JSON from stdin",
		Long: `
Reads {"vector": [...], "threshold": 0.3, "limit": 5} from stdin and writes a JSON
array of matching rows to stdout, each with a "similarity" field, best first.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in searchInput
			if err := json.NewDecoder(cmd.InOrStdin()).Decode(&in); err != nil {
				return fmt.Errorf("decode request: %w", err)
			}
			if in.Threshold != nil {
				threshold = *in.Threshold
			}
			if in.Limit != nil {
				limit = *in.Limit
			}
			return runSearch(cmd.Context(), *dbPath, table, &in, threshold, limit, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "Table to search")
	cmd.Flags().Float64Var(&threshold, "threshold", defaultThreshold, "Minimum cosine similarity")
	cmd.Flags().IntVar(&limit, "limit", defaultLimit, "Maximum number of rows")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

func runSearch(
	ctx context.Context, dbPath, table string, in *searchInput, threshold float64, limit int, out io.Writer,
) error {
	if math.IsNaN(threshold) {
		return errors.New("threshold must be a number")
	}
	s, err := dbSQLite.NewStore(dbSQLite.Config{Path: dbPath, ReadOnly: true})
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	sr, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: table, Vector: in.Vector, K: limit, Threshold: threshold})
	if err != nil {
		return err
	}

	rows := make([]map[string]any, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		row := make(map[string]any, len(e.Fields)+1)
		for k, v := range e.Fields {
			row[k] = v
		}
		row["similarity"] = e.Score
		rows = append(rows, row)
	}
	return json.NewEncoder(out).Encode(rows)
}

func newUpsertCmd(dbPath *string) *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Insert or update one row read as JSON from stdin",
		Long: `
Reads a flat JSON object of column values plus an "embedding" array from stdin.
Rows are keyed by file_path; an existing row is updated in place.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, err := decodeRecord(cmd.InOrStdin(), table)
			if err != nil {
				return err
			}

			s, err := dbSQLite.NewStore(dbSQLite.Config{Path: *dbPath})
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			if err = s.Upsert(ctx, rec); err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"ok": true})
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "Table to write")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

func decodeRecord(r io.Reader, table string) (dbSQLite.Record, error) {
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return dbSQLite.Record{}, fmt.Errorf("decode document: %w", err)
	}

	rec := dbSQLite.Record{Table: table, Fields: make(map[string]any, len(doc))}
	for k, raw := range doc {
		if k == "embedding" {
			if err := json.Unmarshal(raw, &rec.Embedding); err != nil {
				return dbSQLite.Record{}, fmt.Errorf("decode embedding: %w", err)
			}
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return dbSQLite.Record{}, fmt.Errorf("decode %s: %w", k, err)
		}
		rec.Fields[k] = v
	}
	if len(rec.Embedding) == 0 {
		return dbSQLite.Record{}, errors.New("embedding is required")
	}
	return rec, nil
}

func newImportCmd(dbPath *string) *cobra.Command {
	var table, file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk upsert rows from a parquet file",
		Long: `
Reads a parquet file whose columns are table columns plus an "embedding"
list of floats. Columns that the table does not have are rejected.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := dbSQLite.NewStore(dbSQLite.Config{Path: *dbPath})
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			n, err := readRecords(file, table, func(rec dbSQLite.Record) error {
				if len(rec.Embedding) == 0 {
					return errors.New("embedding is required")
				}
				return s.Upsert(ctx, rec)
			})
			if err != nil {
				return fmt.Errorf("import %s: %w", file, err)
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"imported": n})
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "Table to write")
	cmd.Flags().StringVar(&file, "file", "", "Parquet file to read")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newDeleteCmd(dbPath *string) *cobra.Command {
	var table, filePath string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the row with the given file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := dbSQLite.NewStore(dbSQLite.Config{Path: *dbPath})
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			n, err := s.Delete(ctx, table, map[string]string{"file_path": filePath})
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"deleted": n})
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "Table to delete from")
	cmd.Flags().StringVar(&filePath, "file-path", "", "file_path of the row to delete")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("file-path")
	return cmd
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, commandTimeout)
}
