package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"hk-market-scraper/models"
)

// ArchiveWriter appends successfully scraped snapshots to PostgreSQL as a
// write-only history. The file cache remains the source of truth; the
// archive exists for later offline analysis and is entirely optional.
type ArchiveWriter struct {
	db *sql.DB
}

// NewArchiveWriter opens a connection, runs schema migration, and returns a
// ready-to-use writer.
func NewArchiveWriter(dsn string) (*ArchiveWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("archive: ping failed after retries: %w", err)
	}

	w := &ArchiveWriter{db: db}
	if err := w.migrate(); err != nil {
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}

	return w, nil
}

func (w *ArchiveWriter) migrate() error {
	_, err := w.db.Exec(`
		CREATE TABLE IF NOT EXISTS market_listings (
			id                 SERIAL PRIMARY KEY,
			listing_id         VARCHAR(64)  NOT NULL,
			source             VARCHAR(32)  NOT NULL,
			district           VARCHAR(32)  NOT NULL,
			url                TEXT         NOT NULL DEFAULT '',
			address            TEXT         NOT NULL DEFAULT '',
			rooms              INT          NOT NULL DEFAULT 1,
			size_sqft          INT          NOT NULL DEFAULT 0,
			floor              VARCHAR(32),
			price_hkd          BIGINT       NOT NULL DEFAULT 0,
			price_per_sqft_hkd BIGINT       NOT NULL DEFAULT 0,
			monthly_rent_hkd   BIGINT,
			gross_yield_pct    NUMERIC(5,1),
			listing_status     VARCHAR(16)  NOT NULL,
			scraped_at         TIMESTAMPTZ  NOT NULL,
			UNIQUE (listing_id, scraped_at)
		);

		CREATE INDEX IF NOT EXISTS idx_market_listings_district ON market_listings(district);
		CREATE INDEX IF NOT EXISTS idx_market_listings_scraped  ON market_listings(scraped_at);
	`)
	return err
}

// Archive batch-inserts one scraped snapshot. Re-archiving the same scrape
// is a no-op via the uniqueness constraint.
func (w *ArchiveWriter) Archive(listings []*models.MarketListing) error {
	if len(listings) == 0 {
		return nil
	}

	const batchSize = 50
	for i := 0; i < len(listings); i += batchSize {
		end := i + batchSize
		if end > len(listings) {
			end = len(listings)
		}
		if err := w.insertBatch(listings[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (w *ArchiveWriter) insertBatch(batch []*models.MarketListing) error {
	const cols = 14
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cols)

	for idx, l := range batch {
		base := idx * cols
		placeholders := make([]string, cols)
		for c := 0; c < cols; c++ {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			l.ID, string(l.Source), string(l.District), l.URL, l.Address,
			l.Rooms, l.SizeSqft, l.Floor, l.PriceHKD, l.PricePerSqftHKD,
			l.MonthlyRentHKD, l.GrossYieldPct, string(l.ListingStatus), l.ScrapedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO market_listings (
			listing_id, source, district, url, address,
			rooms, size_sqft, floor, price_hkd, price_per_sqft_hkd,
			monthly_rent_hkd, gross_yield_pct, listing_status, scraped_at
		)
		VALUES %s
		ON CONFLICT (listing_id, scraped_at) DO NOTHING
	`, strings.Join(valueStrings, ","))

	_, err := w.db.Exec(query, valueArgs...)
	return err
}

// CountForDistrict reports how many archived rows exist for a district —
// used by the status surface.
func (w *ArchiveWriter) CountForDistrict(district models.District) (int, error) {
	var n int
	err := w.db.QueryRow(
		"SELECT COUNT(*) FROM market_listings WHERE district = $1",
		string(district),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("archive: count: %w", err)
	}
	return n, nil
}

func (w *ArchiveWriter) Close() error {
	return w.db.Close()
}
