package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"spec-extractor/internal/config"
	"spec-extractor/internal/models"
)

// SpecRecord is an archived extraction result.
type SpecRecord struct {
	bun.BaseModel `bun:"table:spec_records,alias:sr"`
	ID            int64     `bun:"id,pk,autoincrement"`
	SessionID     string    `bun:"session_id,notnull"`
	SourceFile    string    `bun:"source_file,notnull"`
	Query         string    `bun:"query,notnull"`
	Component     string    `bun:"component"`
	SpecType      string    `bun:"spec_type"`
	Value         string    `bun:"value"`
	Unit          string    `bun:"unit"`
	Conditions    string    `bun:"conditions"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, &models.ConfigError{Field: "database.dsn", Msg: "required to archive records"}
	}
	opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
	if cfg.Password != "" {
		opts = append(opts, pgdriver.WithPassword(cfg.Password))
	}
	return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
}

func InitDB(ctx context.Context, db *bun.DB) error {
	_, err := createTableQuery(db).Exec(ctx)
	return err
}

func createTableQuery(db *bun.DB) *bun.CreateTableQuery {
	return db.NewCreateTable().Model((*SpecRecord)(nil)).IfNotExists()
}

// ToRows converts the records of one query into archive rows.
func ToRows(sessionID string, response *models.QueryResponse, now time.Time) []SpecRecord {
	rows := make([]SpecRecord, 0, len(response.Records))
	for _, r := range response.Records {
		rows = append(rows, SpecRecord{
			SessionID:  sessionID,
			SourceFile: response.Source,
			Query:      response.Query,
			Component:  r.Component,
			SpecType:   r.SpecType,
			Value:      r.Value,
			Unit:       r.Unit,
			Conditions: r.Conditions,
			CreatedAt:  now,
		})
	}
	return rows
}

// StoreRecords archives the records of a query response. Responses without
// records are skipped.
func StoreRecords(ctx context.Context, db *bun.DB, sessionID string, response *models.QueryResponse) (int, error) {
	if response == nil {
		return 0, errors.New("nil response")
	}
	rows := ToRows(sessionID, response, time.Now().UTC())
	if len(rows) == 0 {
		return 0, nil
	}
	if _, err := db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ListRecords returns archived records for a source file, newest first.
func ListRecords(ctx context.Context, db *bun.DB, sourceFile string, limit int) ([]SpecRecord, error) {
	var rows []SpecRecord
	q := db.NewSelect().Model(&rows).OrderExpr("created_at DESC, id DESC")
	if sourceFile != "" {
		q = q.Where("source_file = ?", sourceFile)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Scan(ctx)
	return rows, err
}

// DropRecords removes the archive table and every record in it.
func DropRecords(ctx context.Context, db *bun.DB) error {
	_, err := dropTableQuery(db).Exec(ctx)
	return err
}

func dropTableQuery(db *bun.DB) *bun.DropTableQuery {
	return db.NewDropTable().Model((*SpecRecord)(nil)).IfExists()
}

// ToModels strips archive columns from rows.
func ToModels(rows []SpecRecord) []models.SpecRecord {
	out := make([]models.SpecRecord, len(rows))
	for i, r := range rows {
		out[i] = models.SpecRecord{
			Component:  r.Component,
			SpecType:   r.SpecType,
			Value:      r.Value,
			Unit:       r.Unit,
			Conditions: r.Conditions,
		}
	}
	return out
}
