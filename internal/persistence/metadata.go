package persistence

import (
	"ArtistExchange/internal/ledger"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrMetadataNotFound is returned when no listing details exist for an asset.
var ErrMetadataNotFound = errors.New("artist metadata not found")

// ArtistMetadata is the off-ledger listing shown next to a token. It is
// written by the artist CRUD service; the exchange only reads it.
type ArtistMetadata struct {
	AssetID     int64     `db:"asset_id" json:"asset_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	ImageURL    string    `db:"image_url" json:"image_url"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// MetadataStore reads artist metadata keyed by asset id.
type MetadataStore struct {
	db *sqlx.DB
}

// NewMetadataStore wraps an open *sql.DB; driverName selects the bind
// variable style ("postgres" uses $n).
func NewMetadataStore(db *sql.DB, driverName string) *MetadataStore {
	return &MetadataStore{db: sqlx.NewDb(db, driverName)}
}

func (s *MetadataStore) Get(ctx context.Context, asset ledger.AssetID) (*ArtistMetadata, error) {
	var m ArtistMetadata
	err := s.db.GetContext(ctx, &m, `
		SELECT asset_id, name, description, image_url, created_at
		FROM public.artist_metadata
		WHERE asset_id = $1
	`, int64(asset))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %d: %w", asset, ErrMetadataNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get artist metadata %d: %w", asset, err)
	}
	return &m, nil
}

// List returns metadata for the given assets, keyed by asset id. Assets
// without a row are absent from the result.
func (s *MetadataStore) List(ctx context.Context, assets []ledger.AssetID) (map[ledger.AssetID]ArtistMetadata, error) {
	out := make(map[ledger.AssetID]ArtistMetadata, len(assets))
	if len(assets) == 0 {
		return out, nil
	}

	ids := make([]int64, len(assets))
	for i, a := range assets {
		ids[i] = int64(a)
	}
	query, args, err := sqlx.In(`
		SELECT asset_id, name, description, image_url, created_at
		FROM public.artist_metadata
		WHERE asset_id IN (?)
		ORDER BY asset_id
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("build metadata query: %w", err)
	}

	var rows []ArtistMetadata
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list artist metadata: %w", err)
	}
	for _, m := range rows {
		out[ledger.AssetID(m.AssetID)] = m
	}
	return out, nil
}
