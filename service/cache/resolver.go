package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/itchyny/gojq"
)

const (
	marketFile = "market.json"
	poolFile   = "pool.json"

	// DevnetPrefix is prepended to snapshot file names on devnet.
	DevnetPrefix = "devnet_"
)

var (
	ErrNotFound   = errors.New("cache file not found")
	ErrRead       = errors.New("unable to read cache file")
	ErrMalformed  = errors.New("cache file is not well-formed")
	ErrIDMismatch = errors.New("market id does not match")
)

// Error reports a failed cache lookup and the file involved.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PrefixForNetwork returns the file prefix used by a network's snapshots.
func PrefixForNetwork(network string) string {
	if network == "devnet" {
		return DevnetPrefix
	}
	return ""
}

// Resolver loads market and pool snapshots. Files are re-read on every
// call so an updated snapshot is picked up without a restart.
type Resolver struct {
	dir      string
	prefix   string
	envelope *gojq.Code
	logger   *slog.Logger
}

// NewResolver creates a Resolver reading <dir>/<prefix>market.json and
// <dir>/<prefix>pool.json.
func NewResolver(dir, prefix string, logger *slog.Logger) (*Resolver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	query, err := gojq.Parse(".address")
	if err != nil {
		return nil, fmt.Errorf("parse envelope query: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("compile envelope query: %w", err)
	}
	return &Resolver{dir: dir, prefix: prefix, envelope: code, logger: logger}, nil
}

// MarketPath returns the market snapshot location.
func (r *Resolver) MarketPath() string {
	return filepath.Join(r.dir, r.prefix+marketFile)
}

// PoolPath returns the pool snapshot location.
func (r *Resolver) PoolPath() string {
	return filepath.Join(r.dir, r.prefix+poolFile)
}

// ResolveMarket loads the market snapshot.
func (r *Resolver) ResolveMarket(ctx context.Context) (*Market, error) {
	path := r.MarketPath()
	var m Market
	if err := r.load(ctx, "resolve market", path, &m); err != nil {
		return nil, err
	}
	if err := m.validate(); err != nil {
		return nil, &Error{Op: "resolve market", Path: path, Err: err}
	}
	r.logger.DebugContext(ctx, "resolved market", "path", path, "market_id", m.MarketID)
	return &m, nil
}

// ResolvePool loads the pool snapshot and checks it belongs to
// expectedMarketID.
func (r *Resolver) ResolvePool(ctx context.Context, expectedMarketID string) (*Pool, error) {
	path := r.PoolPath()
	var p Pool
	if err := r.load(ctx, "resolve pool", path, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, &Error{Op: "resolve pool", Path: path, Err: err}
	}
	if p.MarketID != expectedMarketID {
		r.logger.ErrorContext(ctx, "pool snapshot references a different market",
			"path", path,
			"pool_market_id", p.MarketID,
			"expected_market_id", expectedMarketID,
		)
		return nil, &Error{
			Op:   "resolve pool",
			Path: path,
			Err:  fmt.Errorf("%w: pool %s references %q, expected %q", ErrIDMismatch, p.AmmID, p.MarketID, expectedMarketID),
		}
	}
	r.logger.DebugContext(ctx, "resolved pool", "path", path, "amm_id", p.AmmID)
	return &p, nil
}

// Resolve loads the market and then the pool that must reference it.
func (r *Resolver) Resolve(ctx context.Context) (*Market, *Pool, error) {
	m, err := r.ResolveMarket(ctx)
	if err != nil {
		return nil, nil, err
	}
	p, err := r.ResolvePool(ctx, m.MarketID)
	if err != nil {
		return nil, nil, err
	}
	return m, p, nil
}

// Raw returns the decoded JSON document at path, for ad-hoc queries.
func (r *Resolver) Raw(ctx context.Context, path string) (interface{}, error) {
	return r.readDocument(ctx, "read", path)
}

func (r *Resolver) load(ctx context.Context, op, path string, out interface{}) error {
	doc, err := r.readDocument(ctx, op, path)
	if err != nil {
		return err
	}

	iter := r.envelope.RunWithContext(ctx, doc)
	v, ok := iter.Next()
	if !ok || v == nil {
		return &Error{Op: op, Path: path, Err: fmt.Errorf("%w: address field not found", ErrMalformed)}
	}
	if qerr, isErr := v.(error); isErr {
		return &Error{Op: op, Path: path, Err: fmt.Errorf("%w: %v", ErrMalformed, qerr)}
	}
	if _, isObject := v.(map[string]interface{}); !isObject {
		return &Error{Op: op, Path: path, Err: fmt.Errorf("%w: address is %T, not an object", ErrMalformed, v)}
	}

	record, err := json.Marshal(v)
	if err != nil {
		return &Error{Op: op, Path: path, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	if err := json.Unmarshal(record, out); err != nil {
		return &Error{Op: op, Path: path, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	return nil
}

func (r *Resolver) readDocument(ctx context.Context, op, path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.logger.ErrorContext(ctx, "cache file not found", "path", path)
			return nil, &Error{Op: op, Path: path, Err: ErrNotFound}
		}
		r.logger.ErrorContext(ctx, "unable to read cache file", "path", path, "error", err)
		return nil, &Error{Op: op, Path: path, Err: fmt.Errorf("%w: %v", ErrRead, err)}
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Op: op, Path: path, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	return doc, nil
}
