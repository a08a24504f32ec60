package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/ports"
)

const (
	recordsTable = "processed_records"
	runsTable    = "campaign_runs"
)

var recordColumns = []string{
	"id", "campaign_id", "cms_post_id", "title", "source_url", "target_url",
	"status", "tokens_used", "created_at", "logs",
}

// SQLRepository persists ledger records and run state in Postgres or SQLite.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var (
	_ ports.Ledger        = (*SQLRepository)(nil)
	_ ports.RunStateStore = (*SQLRepository)(nil)
)

// NewSQLRepository wires a sql.DB implementation.
func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect, now: time.Now}
}

// Exists reports whether any record of the campaign matches url: equal match
// keys, or either key containing the other.
func (r *SQLRepository) Exists(ctx context.Context, campaignID, url string) (bool, error) {
	key := domain.MatchKey(url)
	if key == "" {
		return false, nil
	}

	query, args, err := r.dialect.builder().
		Select("1").
		From(recordsTable).
		Where(sq.Eq{"campaign_id": campaignID}).
		Where(sq.Or{
			sq.Eq{"match_key": key},
			sq.Expr(r.dialect.containsFn+"(match_key, ?) > 0", key),
			sq.Expr(r.dialect.containsFn+"(?, match_key) > 0", key),
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}

	var one int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("query exists: %w", err)
	}
	return true, nil
}

// Append stores a new record. A record matching an existing one of the same
// campaign is rejected with domain.ErrDuplicateCandidate.
func (r *SQLRepository) Append(ctx context.Context, rec domain.ProcessedRecord) (domain.ProcessedRecord, error) {
	rec, err := prepareRecord(rec, r.now)
	if err != nil {
		return domain.ProcessedRecord{}, err
	}

	exists, err := r.Exists(ctx, rec.CampaignID, rec.SourceURL)
	if err != nil {
		return domain.ProcessedRecord{}, err
	}
	if exists {
		return domain.ProcessedRecord{}, fmt.Errorf("%w: %s", domain.ErrDuplicateCandidate, rec.SourceURL)
	}

	logs, err := json.Marshal(nonNilLogs(rec.Logs))
	if err != nil {
		return domain.ProcessedRecord{}, fmt.Errorf("marshal logs: %w", err)
	}

	query, args, err := r.dialect.builder().
		Insert(recordsTable).
		Columns("id", "campaign_id", "cms_post_id", "title", "source_url", "match_key",
			"target_url", "status", "tokens_used", "created_at", "logs").
		Values(rec.ID, rec.CampaignID, nullInt(rec.CMSPostID), rec.Title, rec.SourceURL,
			domain.MatchKey(rec.SourceURL), rec.TargetURL, string(rec.Status),
			nullInt(rec.TokensUsed), rec.CreatedAt, string(logs)).
		ToSql()
	if err != nil {
		return domain.ProcessedRecord{}, fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return domain.ProcessedRecord{}, fmt.Errorf("%w: %s", domain.ErrDuplicateCandidate, rec.SourceURL)
		}
		return domain.ProcessedRecord{}, fmt.Errorf("insert record: %w", err)
	}
	return rec, nil
}

// Get loads one record by id.
func (r *SQLRepository) Get(ctx context.Context, id string) (domain.ProcessedRecord, error) {
	query, args, err := r.dialect.builder().
		Select(recordColumns...).
		From(recordsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.ProcessedRecord{}, fmt.Errorf("build get: %w", err)
	}

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProcessedRecord{}, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ProcessedRecord{}, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// ListByCampaign returns the campaign's records, newest first.
func (r *SQLRepository) ListByCampaign(ctx context.Context, campaignID string) ([]domain.ProcessedRecord, error) {
	query, args, err := r.dialect.builder().
		Select(recordColumns...).
		From(recordsTable).
		Where(sq.Eq{"campaign_id": campaignID}).
		OrderBy("created_at DESC", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	var result []domain.ProcessedRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan record: %w", err)
		}
		result = append(result, rec)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

// Update rewrites the mutable fields of a record (post id, title, target,
// status, tokens, logs).
func (r *SQLRepository) Update(ctx context.Context, rec domain.ProcessedRecord) error {
	if !rec.Status.Valid() {
		return fmt.Errorf("invalid record status %q", rec.Status)
	}
	logs, err := json.Marshal(nonNilLogs(rec.Logs))
	if err != nil {
		return fmt.Errorf("marshal logs: %w", err)
	}

	query, args, err := r.dialect.builder().
		Update(recordsTable).
		SetMap(map[string]any{
			"cms_post_id": nullInt(rec.CMSPostID),
			"title":       rec.Title,
			"target_url":  rec.TargetURL,
			"status":      string(rec.Status),
			"tokens_used": nullInt(rec.TokensUsed),
			"logs":        string(logs),
		}).
		Where(sq.Eq{"id": rec.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return expectOneRow(res, rec.ID)
}

// Delete removes a record by id.
func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	query, args, err := r.dialect.builder().
		Delete(recordsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return expectOneRow(res, id)
}

// LastRunAt returns the last trigger time of a campaign.
func (r *SQLRepository) LastRunAt(ctx context.Context, campaignID string) (time.Time, bool, error) {
	query, args, err := r.dialect.builder().
		Select("last_run_at").
		From(runsTable).
		Where(sq.Eq{"campaign_id": campaignID}).
		ToSql()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("build last run: %w", err)
	}

	var raw any
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return time.Time{}, false, nil
	case err != nil:
		return time.Time{}, false, fmt.Errorf("query last run: %w", err)
	}

	at, err := asTime(raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

// MarkRun upserts the last trigger time of a campaign.
func (r *SQLRepository) MarkRun(ctx context.Context, campaignID string, at time.Time) error {
	query, args, err := r.dialect.builder().
		Insert(runsTable).
		Columns("campaign_id", "last_run_at").
		Values(campaignID, at.UTC()).
		Suffix("ON CONFLICT (campaign_id) DO UPDATE SET last_run_at = EXCLUDED.last_run_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark run: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark run: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.ProcessedRecord, error) {
	var (
		rec       domain.ProcessedRecord
		postID    sql.NullInt64
		tokens    sql.NullInt64
		status    string
		createdAt any
		logs      string
	)
	if err := row.Scan(&rec.ID, &rec.CampaignID, &postID, &rec.Title, &rec.SourceURL,
		&rec.TargetURL, &status, &tokens, &createdAt, &logs); err != nil {
		return domain.ProcessedRecord{}, err
	}

	at, err := asTime(createdAt)
	if err != nil {
		return domain.ProcessedRecord{}, err
	}
	rec.CreatedAt = at
	rec.Status = domain.RecordStatus(status)
	rec.CMSPostID = intPtr(postID)
	rec.TokensUsed = intPtr(tokens)
	if logs != "" {
		if err := json.Unmarshal([]byte(logs), &rec.Logs); err != nil {
			return domain.ProcessedRecord{}, fmt.Errorf("decode logs of %s: %w", rec.ID, err)
		}
	}
	return rec, nil
}

// prepareRecord validates rec and fills the generated fields.
func prepareRecord(rec domain.ProcessedRecord, now func() time.Time) (domain.ProcessedRecord, error) {
	if strings.TrimSpace(rec.CampaignID) == "" {
		return rec, fmt.Errorf("record campaign id is required")
	}
	if domain.MatchKey(rec.SourceURL) == "" {
		return rec, fmt.Errorf("record source url is required")
	}
	if !rec.Status.Valid() {
		return rec, fmt.Errorf("invalid record status %q", rec.Status)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
}

func asTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		return parseStoredTime(v)
	case []byte:
		return parseStoredTime(string(v))
	case int64:
		return time.Unix(v, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported time value %T", raw)
	}
}

func parseStoredTime(s string) (time.Time, error) {
	// Go's time.Time.String adds a monotonic or zone suffix some drivers persist.
	if i := strings.Index(s, " m="); i > 0 {
		s = s[:i]
	}
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if t, err := time.Parse("2006-01-02 15:04:05.999999999 -0700 MST", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("parse stored time %q", s)
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nonNilLogs(logs []string) []string {
	if logs == nil {
		return []string{}
	}
	return logs
}
