package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

const caseColumns = `id, reference, importer, exporter, state, missing_documents, missing_permits, ready_for_validation, tariff_code, last_validation, created_at`

type CaseRepository struct {
	db *sql.DB
}

func NewCaseRepository(db *sql.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

// CreateCases inserts the cases and claims their members in one transaction.
// A member that already belongs to a case aborts the whole batch.
func (r *CaseRepository) CreateCases(ctx context.Context, cases []domain.CaseFile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create cases tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, c := range cases {
		if err := insertCase(ctx, tx, c); err != nil {
			return err
		}
		for position, member := range c.Members {
			if err := assignMember(ctx, tx, c.ID, member.ID, position); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create cases tx: %w", err)
	}
	return nil
}

func insertCase(ctx context.Context, tx *sql.Tx, c domain.CaseFile) error {
	missingDocs, missingPermits, err := marshalMissing(c)
	if err != nil {
		return err
	}
	validation, err := marshalValidation(c.LastValidation)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO case_files (`+caseColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		c.ID, c.Reference, c.Importer, c.Exporter, string(c.State), missingDocs, missingPermits,
		c.ReadyForValidation, c.TariffCode, validation, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert case file %s: %w", c.Reference, err)
	}
	return nil
}

func assignMember(ctx context.Context, tx *sql.Tx, caseID, recordID string, position int) error {
	result, err := tx.ExecContext(ctx, `
UPDATE document_records
SET case_id = $2, position = $3
WHERE id = $1 AND case_id IS NULL
`, recordID, caseID, position)
	if err != nil {
		return fmt.Errorf("assign record %s: %w", recordID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("assign record rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrConflict, "assign record", fmt.Errorf("record %s is missing or already assigned", recordID))
	}
	return nil
}

func (r *CaseRepository) GetByID(ctx context.Context, id string) (*domain.CaseFile, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+caseColumns+`
FROM case_files
WHERE id = $1
`, id)
	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrCaseNotFound, "get case file", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan case file: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+recordColumns+`
FROM document_records
WHERE case_id = $1
ORDER BY position ASC
`, id)
	if err != nil {
		return nil, fmt.Errorf("query case members: %w", err)
	}
	defer rows.Close()
	members, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}
	c.Members = members
	return &c, nil
}

func (r *CaseRepository) List(ctx context.Context) ([]domain.CaseFile, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+caseColumns+`
FROM case_files
ORDER BY created_at ASC, reference ASC
`)
	if err != nil {
		return nil, fmt.Errorf("query case files: %w", err)
	}
	cases := make([]domain.CaseFile, 0)
	index := make(map[string]int)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan case file: %w", err)
		}
		index[c.ID] = len(cases)
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate case files: %w", err)
	}
	rows.Close()

	if len(cases) == 0 {
		return cases, nil
	}
	if err := r.loadMembers(ctx, cases, index); err != nil {
		return nil, err
	}
	return cases, nil
}

func (r *CaseRepository) loadMembers(ctx context.Context, cases []domain.CaseFile, index map[string]int) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT case_id, `+recordColumns+`
FROM document_records
WHERE case_id IS NOT NULL
ORDER BY case_id ASC, position ASC
`)
	if err != nil {
		return fmt.Errorf("query case members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var caseID string
		rec, err := scanRecord(prefixedScanner{row: rows, prefix: &caseID})
		if err != nil {
			return fmt.Errorf("scan case member: %w", err)
		}
		if i, ok := index[caseID]; ok {
			cases[i].Members = append(cases[i].Members, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate case members: %w", err)
	}
	return nil
}

func (r *CaseRepository) SaveValidation(ctx context.Context, caseID string, result domain.ConsistencyResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal validation: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE case_files
SET last_validation = $2
WHERE id = $1
`, caseID, raw)
	if err != nil {
		return fmt.Errorf("save case validation: %w", err)
	}
	return expectOneRow(res, domain.ErrCaseNotFound, "save case validation", caseID)
}

func (r *CaseRepository) AttachDocument(ctx context.Context, updated domain.CaseFile, recordID string) error {
	missingDocs, missingPermits, err := marshalMissing(updated)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attach tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := assignMember(ctx, tx, updated.ID, recordID, len(updated.Members)-1); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
UPDATE case_files
SET exporter = $2, state = $3, missing_documents = $4, missing_permits = $5,
	ready_for_validation = $6, tariff_code = $7, last_validation = NULL
WHERE id = $1
`, updated.ID, updated.Exporter, string(updated.State), missingDocs, missingPermits,
		updated.ReadyForValidation, updated.TariffCode)
	if err != nil {
		return fmt.Errorf("update case derived fields: %w", err)
	}
	if err := expectOneRow(res, domain.ErrCaseNotFound, "update case derived fields", updated.ID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attach tx: %w", err)
	}
	return nil
}

func (r *CaseRepository) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM case_files WHERE created_at >= $1`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count case files: %w", err)
	}
	return count, nil
}

func marshalMissing(c domain.CaseFile) ([]byte, []byte, error) {
	docs, err := json.Marshal(nonNilKinds(c.MissingDocuments))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal missing documents: %w", err)
	}
	permits, err := json.Marshal(nonNilKinds(c.MissingPermits))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal missing permits: %w", err)
	}
	return docs, permits, nil
}

func marshalValidation(result *domain.ConsistencyResult) (interface{}, error) {
	if result == nil {
		return nil, nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal validation: %w", err)
	}
	return raw, nil
}

func scanCase(row rowScanner) (domain.CaseFile, error) {
	var c domain.CaseFile
	var state string
	var docsRaw, permitsRaw, validationRaw []byte
	if err := row.Scan(
		&c.ID, &c.Reference, &c.Importer, &c.Exporter, &state, &docsRaw, &permitsRaw,
		&c.ReadyForValidation, &c.TariffCode, &validationRaw, &c.CreatedAt,
	); err != nil {
		return domain.CaseFile{}, err
	}
	if err := json.Unmarshal(docsRaw, &c.MissingDocuments); err != nil {
		return domain.CaseFile{}, fmt.Errorf("unmarshal missing documents: %w", err)
	}
	if err := json.Unmarshal(permitsRaw, &c.MissingPermits); err != nil {
		return domain.CaseFile{}, fmt.Errorf("unmarshal missing permits: %w", err)
	}
	if len(validationRaw) > 0 {
		var result domain.ConsistencyResult
		if err := json.Unmarshal(validationRaw, &result); err != nil {
			return domain.CaseFile{}, fmt.Errorf("unmarshal last validation: %w", err)
		}
		c.LastValidation = &result
	}
	c.State = domain.ComplianceState(state)
	c.CreatedAt = c.CreatedAt.UTC()
	c.Members = []domain.DocumentRecord{}
	return c, nil
}

// prefixedScanner lets scanRecord read rows that carry one extra leading column.
type prefixedScanner struct {
	row    rowScanner
	prefix interface{}
}

func (s prefixedScanner) Scan(dest ...interface{}) error {
	return s.row.Scan(append([]interface{}{s.prefix}, dest...)...)
}

func nonNilKinds(in []domain.DocumentKind) []domain.DocumentKind {
	if in == nil {
		return []domain.DocumentKind{}
	}
	return in
}
