package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

const recordColumns = `id, filename, kind, confidence, fields, origin, analyzed_at, matched_keywords, content_hash`

type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) Save(ctx context.Context, rec domain.DocumentRecord) error {
	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	keywordsJSON, err := json.Marshal(nonNilStrings(rec.MatchedKeywords))
	if err != nil {
		return fmt.Errorf("marshal matched keywords: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO document_records (`+recordColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		rec.ID, rec.Filename, string(rec.Kind), rec.Confidence, fieldsJSON, string(rec.Origin),
		rec.AnalyzedAt, keywordsJSON, rec.ContentHash,
	)
	if err != nil {
		return fmt.Errorf("insert document record: %w", err)
	}
	return nil
}

func (r *RecordRepository) GetByID(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+recordColumns+`
FROM document_records
WHERE id = $1
`, id)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document record", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document record: %w", err)
	}
	return &rec, nil
}

func (r *RecordRepository) ListUnassigned(ctx context.Context) ([]domain.DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+recordColumns+`
FROM document_records
WHERE case_id IS NULL AND origin = $1
ORDER BY analyzed_at ASC, id ASC
`, string(domain.OriginExternal))
	if err != nil {
		return nil, fmt.Errorf("query unassigned records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListByIDs returns the records in the order of ids. Unknown ids are an error.
func (r *RecordRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.DocumentRecord, error) {
	if len(ids) == 0 {
		return []domain.DocumentRecord{}, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+recordColumns+`
FROM document_records
WHERE id IN (`+strings.Join(placeholders, ",")+`)
`, args...)
	if err != nil {
		return nil, fmt.Errorf("query records by id: %w", err)
	}
	defer rows.Close()

	found, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.DocumentRecord, len(found))
	for _, rec := range found {
		byID[rec.ID] = rec
	}
	out := make([]domain.DocumentRecord, 0, len(ids))
	for _, id := range ids {
		rec, ok := byID[id]
		if !ok {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "list records by id", fmt.Errorf("id=%s", id))
		}
		out = append(out, rec)
	}
	return out, nil
}

func collectRecords(rows *sql.Rows) ([]domain.DocumentRecord, error) {
	out := make([]domain.DocumentRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document records: %w", err)
	}
	return out, nil
}

func scanRecord(row rowScanner) (domain.DocumentRecord, error) {
	var rec domain.DocumentRecord
	var kind, origin string
	var fieldsRaw, keywordsRaw []byte
	if err := row.Scan(
		&rec.ID, &rec.Filename, &kind, &rec.Confidence, &fieldsRaw, &origin,
		&rec.AnalyzedAt, &keywordsRaw, &rec.ContentHash,
	); err != nil {
		return domain.DocumentRecord{}, err
	}
	if err := json.Unmarshal(fieldsRaw, &rec.Fields); err != nil {
		return domain.DocumentRecord{}, fmt.Errorf("unmarshal fields: %w", err)
	}
	if err := json.Unmarshal(keywordsRaw, &rec.MatchedKeywords); err != nil {
		return domain.DocumentRecord{}, fmt.Errorf("unmarshal matched keywords: %w", err)
	}
	rec.Kind = domain.DocumentKind(kind)
	rec.Origin = domain.Origin(origin)
	rec.AnalyzedAt = rec.AnalyzedAt.UTC()
	return rec, nil
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
