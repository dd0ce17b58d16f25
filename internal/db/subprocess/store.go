package subprocess

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/kailas-cloud/recall/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

const (
	defaultMaxOutputBytes = 16 << 20
	maxStderrBytes        = 4 << 10
	scoreField            = "similarity"
)

var errOutputTooLarge = errors.New("output exceeds limit")

// Config describes an external search program.
// The program is started with a fixed argument vector; query data only ever travels on stdin.
type Config struct {
	// Command is the executable, resolved via PATH when not absolute.
	Command string
	// Args are fixed leading arguments, e.g. a script path for an interpreter.
	Args []string
	// DBPath is passed as --db.
	DBPath string
	// Env is the complete child environment. Nothing is inherited from the parent.
	Env map[string]string
	// MaxOutputBytes caps stdout; 0 selects 16 MiB.
	MaxOutputBytes int
}

// Request is the JSON document written to the program's stdin.
type Request struct {
	Vector    []float32 `json:"vector"`
	Threshold float64   `json:"threshold"`
	Limit     int       `json:"limit"`
}

// Store runs one search process per query.
type Store struct {
	cfg Config
	env []string
}

// NewStore validates the program configuration.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("command is required")
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = defaultMaxOutputBytes
	}

	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+cfg.Env[k])
	}

	return &Store{cfg: cfg, env: env}, nil
}

// Ping checks that the program resolves and the database file exists.
func (s *Store) Ping(_ context.Context) error {
	if _, err := exec.LookPath(s.cfg.Command); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	if _, err := os.Stat(s.cfg.DBPath); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close is a no-op; processes do not outlive a query.
func (s *Store) Close() error { return nil }

// SearchKNN runs `<command> <args...> search --db <path> --table <index>` and decodes its stdout.
// Records without a numeric similarity come back with a NaN score.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.IndexName == "" {
		return nil, fmt.Errorf("%w: index name is required", db.ErrInvalidQuery)
	}

	payload, err := json.Marshal(Request{Vector: q.Vector, Threshold: q.Threshold, Limit: q.K})
	if err != nil {
		return nil, &db.Error{Op: db.OpExec, Err: err}
	}

	args := make([]string, 0, len(s.cfg.Args)+5)
	args = append(args, s.cfg.Args...)
	args = append(args, "search", "--db", s.cfg.DBPath, "--table", q.IndexName)

	cmd := exec.CommandContext(ctx, s.cfg.Command, args...)
	cmd.Env = s.env
	cmd.Stdin = bytes.NewReader(payload)
	cmd.WaitDelay = time.Second
	stdout := &limitedBuffer{max: s.cfg.MaxOutputBytes}
	stderr := &limitedBuffer{max: maxStderrBytes, truncate: true}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &db.Error{Op: db.OpExec, Err: ctxErr}
		}
		if stderr.Len() > 0 {
			err = fmt.Errorf("%w: %s", err, bytes.TrimSpace(stderr.Bytes()))
		}
		return nil, &db.Error{Op: db.OpExec, Err: err}
	}

	entries, err := decodeOutput(stdout.Bytes())
	if err != nil {
		return nil, &db.Error{Op: db.OpDecode, Err: err}
	}
	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

func decodeOutput(out []byte) ([]db.SearchEntry, error) {
	var records []map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(out), &records); err != nil {
		return nil, fmt.Errorf("%w: %v", db.ErrMalformedOutput, err)
	}

	entries := make([]db.SearchEntry, 0, len(records))
	for _, rec := range records {
		score := math.NaN()
		if v, ok := rec[scoreField].(float64); ok {
			score = v
		}
		fields := db.FlattenFields(rec, scoreField, "embedding")
		entries = append(entries, db.SearchEntry{
			Key:    fields["file_path"],
			Score:  score,
			Fields: fields,
		})
	}
	return entries, nil
}

// limitedBuffer stops accepting writes past max. With truncate set it drops the excess silently.
type limitedBuffer struct {
	bytes.Buffer
	max      int
	truncate bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	room := max(b.max-b.Len(), 0)
	if len(p) <= room {
		return b.Buffer.Write(p)
	}
	if room > 0 {
		_, _ = b.Buffer.Write(p[:room])
	}
	if b.truncate {
		return len(p), nil
	}
	return room, errOutputTooLarge
}
