package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"emlak-scraper/internal/domain"
)

// PostgresStore is the durable property catalog.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

// Migrate creates the schema if it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sellers (
			id                BIGSERIAL PRIMARY KEY,
			name              TEXT NOT NULL DEFAULT '',
			company           TEXT NOT NULL DEFAULT '',
			phone             TEXT NOT NULL DEFAULT '',
			membership_status TEXT NOT NULL DEFAULT '',
			profile_url       TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS properties (
			id             BIGSERIAL PRIMARY KEY,
			external_id    TEXT,
			url            TEXT UNIQUE NOT NULL,
			title          TEXT NOT NULL DEFAULT '',
			price          DOUBLE PRECISION NOT NULL DEFAULT 0,
			currency       VARCHAR(8) NOT NULL DEFAULT 'TL',
			location       TEXT NOT NULL DEFAULT '',
			category       TEXT NOT NULL DEFAULT '',
			size           TEXT NOT NULL DEFAULT '',
			room_count     TEXT NOT NULL DEFAULT '',
			floor          TEXT NOT NULL DEFAULT '',
			building_age   TEXT NOT NULL DEFAULT '',
			heating_type   TEXT NOT NULL DEFAULT '',
			bathroom_count TEXT NOT NULL DEFAULT '',
			balcony        TEXT NOT NULL DEFAULT '',
			furnished      TEXT NOT NULL DEFAULT '',
			description    TEXT NOT NULL DEFAULT '',
			raw_data       JSONB,
			seller_id      BIGINT REFERENCES sellers(id),
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_properties_price      ON properties(price);
		CREATE INDEX IF NOT EXISTS idx_properties_location   ON properties(location);
		CREATE INDEX IF NOT EXISTS idx_properties_category   ON properties(category);
		CREATE INDEX IF NOT EXISTS idx_properties_created_at ON properties(created_at DESC);

		CREATE TABLE IF NOT EXISTS features (
			id   BIGSERIAL PRIMARY KEY,
			name TEXT UNIQUE NOT NULL
		);

		CREATE TABLE IF NOT EXISTS property_features (
			property_id BIGINT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
			feature_id  BIGINT NOT NULL REFERENCES features(id),
			PRIMARY KEY (property_id, feature_id)
		);

		CREATE TABLE IF NOT EXISTS property_images (
			id          BIGSERIAL PRIMARY KEY,
			property_id BIGINT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
			url         TEXT NOT NULL,
			is_primary  BOOLEAN NOT NULL DEFAULT FALSE
		);

		CREATE INDEX IF NOT EXISTS idx_property_images_property ON property_images(property_id);

		CREATE TABLE IF NOT EXISTS search_runs (
			id            BIGSERIAL PRIMARY KEY,
			search_url    TEXT NOT NULL,
			search_params JSONB,
			results_count INT NOT NULL DEFAULT 0,
			status        TEXT NOT NULL DEFAULT 'running',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

// FindPropertyByURL returns the stored scalar fields for a canonical
// URL, or ErrNotFound. The associations are not loaded; the scalars are
// all the reconciler diffs against.
func (s *PostgresStore) FindPropertyByURL(ctx context.Context, url string) (*domain.Property, error) {
	var p domain.Property
	err := s.db.QueryRow(ctx,
		`SELECT id, COALESCE(external_id, ''), url, title, price, currency, location, category, created_at, updated_at
		 FROM properties WHERE url = $1`,
		url,
	).Scan(&p.ID, &p.ExternalID, &p.URL, &p.Title, &p.Price, &p.Currency, &p.Location, &p.Category, &p.CreatedAt, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ApplyBatch flushes one batch of staged writes in a single
// transaction. Creates upsert on the URL key, so a concurrent insert of
// the same listing degrades to an update instead of failing the batch.
// Feature and image sets are replaced wholesale, never merged.
func (s *PostgresStore) ApplyBatch(ctx context.Context, writes []domain.StagedWrite) error {
	if len(writes) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := range writes {
		if err := s.applyWrite(ctx, tx, &writes[i]); err != nil {
			return fmt.Errorf("write %s: %w", writes[i].Property.URL, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) applyWrite(ctx context.Context, tx pgx.Tx, w *domain.StagedWrite) error {
	p := w.Property

	var sellerID *int64
	if p.Seller != nil {
		id, err := insertSeller(ctx, tx, p.Seller)
		if err != nil {
			return fmt.Errorf("seller: %w", err)
		}
		sellerID = &id
	}

	switch w.Kind {
	case domain.WriteCreate:
		err := tx.QueryRow(ctx,
			`INSERT INTO properties
			   (url, title, price, currency, location, category, size, room_count, floor,
			    building_age, heating_type, bathroom_count, balcony, furnished, description,
			    raw_data, seller_id, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
			 ON CONFLICT (url) DO UPDATE SET
			   title = EXCLUDED.title, price = EXCLUDED.price, currency = EXCLUDED.currency,
			   location = EXCLUDED.location, category = EXCLUDED.category, size = EXCLUDED.size,
			   room_count = EXCLUDED.room_count, floor = EXCLUDED.floor,
			   building_age = EXCLUDED.building_age, heating_type = EXCLUDED.heating_type,
			   bathroom_count = EXCLUDED.bathroom_count, balcony = EXCLUDED.balcony,
			   furnished = EXCLUDED.furnished, description = EXCLUDED.description,
			   raw_data = EXCLUDED.raw_data, seller_id = EXCLUDED.seller_id,
			   updated_at = EXCLUDED.updated_at
			 RETURNING id`,
			p.URL, p.Title, p.Price, p.Currency, p.Location, p.Category, p.Size, p.RoomCount,
			p.Floor, p.BuildingAge, p.HeatingType, p.BathroomCnt, p.Balcony, p.Furnished,
			p.Description, p.RawData, sellerID, p.CreatedAt, p.UpdatedAt,
		).Scan(&p.ID)
		if err != nil {
			return err
		}

	case domain.WriteUpdate:
		_, err := tx.Exec(ctx,
			`UPDATE properties SET
			   title = $2, price = $3, currency = $4, location = $5, category = $6, size = $7,
			   room_count = $8, floor = $9, building_age = $10, heating_type = $11,
			   bathroom_count = $12, balcony = $13, furnished = $14, description = $15,
			   raw_data = $16, seller_id = COALESCE($17, seller_id), updated_at = $18
			 WHERE id = $1`,
			p.ID, p.Title, p.Price, p.Currency, p.Location, p.Category, p.Size, p.RoomCount,
			p.Floor, p.BuildingAge, p.HeatingType, p.BathroomCnt, p.Balcony, p.Furnished,
			p.Description, p.RawData, sellerID, p.UpdatedAt)
		if err != nil {
			return err
		}
	}

	if err := replaceFeatures(ctx, tx, p.ID, w.FeatureIDs); err != nil {
		return fmt.Errorf("features: %w", err)
	}
	if err := replaceImages(ctx, tx, p.ID, p.Images); err != nil {
		return fmt.Errorf("images: %w", err)
	}
	return nil
}

// insertSeller stores the seller snapshot as observed. Sellers are not
// deduplicated in this path.
func insertSeller(ctx context.Context, tx pgx.Tx, seller *domain.Seller) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx,
		`INSERT INTO sellers (name, company, phone, membership_status, profile_url)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		seller.Name, seller.Company, seller.Phone, seller.Membership, seller.ProfileURL,
	).Scan(&id)
	return id, err
}

func replaceFeatures(ctx context.Context, tx pgx.Tx, propertyID int64, featureIDs []int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM property_features WHERE property_id = $1`, propertyID); err != nil {
		return err
	}
	if len(featureIDs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, fid := range featureIDs {
		batch.Queue(`INSERT INTO property_features (property_id, feature_id) VALUES ($1, $2)
		             ON CONFLICT DO NOTHING`, propertyID, fid)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func replaceImages(ctx context.Context, tx pgx.Tx, propertyID int64, images []domain.Image) error {
	if _, err := tx.Exec(ctx, `DELETE FROM property_images WHERE property_id = $1`, propertyID); err != nil {
		return err
	}
	if len(images) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, img := range images {
		batch.Queue(`INSERT INTO property_images (property_id, url, is_primary) VALUES ($1, $2, $3)`,
			propertyID, img.URL, img.Primary)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// FeatureIDByName looks up a feature by its exact normalized name.
func (s *PostgresStore) FeatureIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `SELECT id FROM features WHERE name = $1`, name).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, ErrNotFound
	}
	return id, err
}

// CreateFeature inserts and commits a new feature. A unique violation
// surfaces as ErrDuplicate so the registry can re-fetch.
func (s *PostgresStore) CreateFeature(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `INSERT INTO features (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrDuplicate
	}
	return id, err
}

// CreateSearchRun records the audit row for a crawl invocation.
func (s *PostgresStore) CreateSearchRun(ctx context.Context, searchURL string, params map[string]any) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO search_runs (search_url, search_params, status) VALUES ($1, $2, $3) RETURNING id`,
		searchURL, params, domain.RunRunning,
	).Scan(&id)
	return id, err
}

// FinishSearchRun stamps the result count and terminal status.
func (s *PostgresStore) FinishSearchRun(ctx context.Context, id int64, resultCount int, status string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE search_runs SET results_count = $2, status = $3 WHERE id = $1`,
		id, resultCount, status)
	return err
}

func (s *PostgresStore) GetSearchRun(ctx context.Context, id int64) (*domain.SearchRun, error) {
	var run domain.SearchRun
	err := s.db.QueryRow(ctx,
		`SELECT id, search_url, search_params, results_count, status, created_at
		 FROM search_runs WHERE id = $1`, id,
	).Scan(&run.ID, &run.SearchURL, &run.Params, &run.ResultCount, &run.Status, &run.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *PostgresStore) ListSearchRuns(ctx context.Context) ([]domain.SearchRun, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, search_url, search_params, results_count, status, created_at
		 FROM search_runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.SearchRun
	for rows.Next() {
		var run domain.SearchRun
		if err := rows.Scan(&run.ID, &run.SearchURL, &run.Params, &run.ResultCount, &run.Status, &run.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListProperties runs a filtered catalog query, newest first, and
// returns the page plus the unpaginated total.
func (s *PostgresStore) ListProperties(ctx context.Context, filter domain.PropertyFilter) ([]domain.Property, int, error) {
	where, args := buildFilter(filter)

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM properties`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 12
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(
		`SELECT id, COALESCE(external_id, ''), url, title, price, currency, location, category,
		        size, room_count, floor, building_age, heating_type, bathroom_count, balcony,
		        furnished, description, raw_data, created_at, updated_at
		 FROM properties%s
		 ORDER BY created_at DESC
		 LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var props []domain.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, 0, err
		}
		props = append(props, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := s.loadAssociations(ctx, props); err != nil {
		return nil, 0, err
	}
	return props, total, nil
}

// GetProperty loads one catalog entry with features, images and seller.
func (s *PostgresStore) GetProperty(ctx context.Context, id int64) (*domain.Property, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, COALESCE(external_id, ''), url, title, price, currency, location, category,
		        size, room_count, floor, building_age, heating_type, bathroom_count, balcony,
		        furnished, description, raw_data, created_at, updated_at
		 FROM properties WHERE id = $1`, id)

	p, err := scanProperty(row)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	props := []domain.Property{*p}
	if err := s.loadAssociations(ctx, props); err != nil {
		return nil, err
	}
	return &props[0], nil
}

func scanProperty(row pgx.Row) (*domain.Property, error) {
	var p domain.Property
	err := row.Scan(&p.ID, &p.ExternalID, &p.URL, &p.Title, &p.Price, &p.Currency, &p.Location,
		&p.Category, &p.Size, &p.RoomCount, &p.Floor, &p.BuildingAge, &p.HeatingType,
		&p.BathroomCnt, &p.Balcony, &p.Furnished, &p.Description, &p.RawData,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// loadAssociations fills features, images and seller for a page of
// properties with three grouped queries.
func (s *PostgresStore) loadAssociations(ctx context.Context, props []domain.Property) error {
	if len(props) == 0 {
		return nil
	}

	ids := make([]int64, len(props))
	byID := make(map[int64]*domain.Property, len(props))
	for i := range props {
		ids[i] = props[i].ID
		byID[props[i].ID] = &props[i]
	}

	rows, err := s.db.Query(ctx,
		`SELECT pf.property_id, f.name
		 FROM property_features pf JOIN features f ON f.id = pf.feature_id
		 WHERE pf.property_id = ANY($1) ORDER BY f.name`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var pid int64
		var name string
		if err := rows.Scan(&pid, &name); err != nil {
			rows.Close()
			return err
		}
		byID[pid].Features = append(byID[pid].Features, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.Query(ctx,
		`SELECT property_id, id, url, is_primary
		 FROM property_images WHERE property_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var pid int64
		var img domain.Image
		if err := rows.Scan(&pid, &img.ID, &img.URL, &img.Primary); err != nil {
			rows.Close()
			return err
		}
		byID[pid].Images = append(byID[pid].Images, img)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.Query(ctx,
		`SELECT p.id, s.id, s.name, s.company, s.phone, s.membership_status, s.profile_url
		 FROM properties p JOIN sellers s ON s.id = p.seller_id
		 WHERE p.id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var pid int64
		var seller domain.Seller
		if err := rows.Scan(&pid, &seller.ID, &seller.Name, &seller.Company, &seller.Phone,
			&seller.Membership, &seller.ProfileURL); err != nil {
			rows.Close()
			return err
		}
		byID[pid].Seller = &seller
	}
	rows.Close()
	return rows.Err()
}

// buildFilter composes the WHERE clause for catalog queries.
func buildFilter(filter domain.PropertyFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Title != "" {
		add(`title ILIKE '%%' || $%d || '%%'`, filter.Title)
	}
	if filter.Location != "" {
		add(`location ILIKE '%%' || $%d || '%%'`, filter.Location)
	}
	if filter.Category != "" {
		add(`category = $%d`, filter.Category)
	}
	if filter.MinPrice != nil {
		add(`price >= $%d`, *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		add(`price <= $%d`, *filter.MaxPrice)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
