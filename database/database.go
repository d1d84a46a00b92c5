package database

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/camden-git/imagecropper/models"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Querier is satisfied by *sql.DB and *sql.Tx
type Querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

// PendingImageIDs returns the ids of records still waiting for ingestion,
// oldest first. Used at startup to resubmit work lost by a previous process.
func PendingImageIDs(db Querier) ([]uint, error) {
	return imageIDsByStatus(db, models.StatusPending)
}

// UnoptimizedImageIDs returns finished records the optimizer never reached.
// Records it ran for carry optimized_at even when their jpeg_quality stayed nil.
func UnoptimizedImageIDs(db Querier) ([]uint, error) {
	queryBuilder := psql.Select("id").
		From("images").
		Where(sq.Eq{"status": int(models.StatusDone), "optimized_at": nil}).
		OrderBy("id ASC")
	return queryIDs(db, queryBuilder)
}

func imageIDsByStatus(db Querier, status models.ImageStatus) ([]uint, error) {
	queryBuilder := psql.Select("id").
		From("images").
		Where(sq.Eq{"status": int(status)}).
		OrderBy("id ASC")
	return queryIDs(db, queryBuilder)
}

func queryIDs(db Querier, queryBuilder sq.SelectBuilder) ([]uint, error) {
	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query: %w", err)
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query image ids: %w", err)
	}
	defer rows.Close()

	var ids []uint
	for rows.Next() {
		var id uint
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan image id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating image ids: %w", err)
	}
	return ids, nil
}
