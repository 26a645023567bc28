package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	"judge-evals/internal/apperr"
)

//go:embed migrations
var migrationsFS embed.FS

// dialect captures the few places Postgres and SQLite differ.
type dialect struct {
	name         string
	numbered     bool   // $1, $2 placeholders instead of ?
	lockRow      string // appended to the row read inside Update
	insertOrder  string // column giving insertion order
	migrationDir string
}

var (
	postgresDialect = dialect{
		name:         "postgres",
		numbered:     true,
		lockRow:      " FOR UPDATE",
		insertOrder:  "seq",
		migrationDir: "migrations/postgres",
	}
	sqliteDialect = dialect{
		name:         "sqlite3",
		insertOrder:  "rowid",
		migrationDir: "migrations/sqlite",
	}
)

const evaluationColumns = `id, contestant_id, judge_id, score, notes, created_at, updated_at`

// SQLStore persists evaluations through database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

func migrateUp(d dialect, driver database.Driver) error {
	src, err := iofs.New(migrationsFS, d.migrationDir)
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, d.name, driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *SQLStore) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row rowScanner) (Evaluation, error) {
	var ev Evaluation
	err := row.Scan(&ev.ID, &ev.ContestantID, &ev.JudgeID, &ev.Score, &ev.Notes, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return Evaluation{}, err
	}
	ev.CreatedAt = ev.CreatedAt.UTC()
	ev.UpdatedAt = ev.UpdatedAt.UTC()
	return ev, nil
}

func (s *SQLStore) Create(ctx context.Context, in NewEvaluation) (Evaluation, error) {
	ts := now()
	ev := Evaluation{
		ID:           uuid.New(),
		ContestantID: in.ContestantID,
		JudgeID:      in.JudgeID,
		Score:        in.Score,
		Notes:        in.Notes,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO evaluations(`+evaluationColumns+`) VALUES(?,?,?,?,?,?,?)`),
		ev.ID, ev.ContestantID, ev.JudgeID, ev.Score, ev.Notes, ev.CreatedAt, ev.UpdatedAt)
	if err != nil {
		return Evaluation{}, apperr.Store("create", err)
	}
	return ev, nil
}

func (s *SQLStore) Get(ctx context.Context, id uuid.UUID) (Evaluation, bool, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+evaluationColumns+` FROM evaluations WHERE id=?`), id)
	ev, err := scanEvaluation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Evaluation{}, false, nil
	}
	if err != nil {
		return Evaluation{}, false, apperr.Store("get", fmt.Errorf("evaluation %s: %w", id, err))
	}
	return ev, true, nil
}

func (s *SQLStore) GetByContestant(ctx context.Context, contestantID string) ([]Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+evaluationColumns+` FROM evaluations WHERE contestant_id=? ORDER BY `+s.dialect.insertOrder),
		contestantID)
	if err != nil {
		return nil, apperr.Store("list", err)
	}
	defer rows.Close()
	out := []Evaluation{}
	for rows.Next() {
		ev, err := scanEvaluation(rows)
		if err != nil {
			return nil, apperr.Store("list", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list", err)
	}
	return out, nil
}

func (s *SQLStore) Update(ctx context.Context, id uuid.UUID, patch Patch) (Evaluation, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Evaluation{}, false, apperr.Store("update", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, s.rebind(`SELECT `+evaluationColumns+` FROM evaluations WHERE id=?`+s.dialect.lockRow), id)
	ev, err := scanEvaluation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Evaluation{}, false, nil
	}
	if err != nil {
		return Evaluation{}, false, apperr.Store("update", err)
	}

	patch.Apply(&ev)
	ev.UpdatedAt = nextUpdate(ev.UpdatedAt)
	_, err = tx.ExecContext(ctx, s.rebind(`UPDATE evaluations SET contestant_id=?, judge_id=?, score=?, notes=?, updated_at=? WHERE id=?`),
		ev.ContestantID, ev.JudgeID, ev.Score, ev.Notes, ev.UpdatedAt, ev.ID)
	if err != nil {
		return Evaluation{}, false, apperr.Store("update", err)
	}
	if err := tx.Commit(); err != nil {
		return Evaluation{}, false, apperr.Store("update", err)
	}
	return ev, true, nil
}

func (s *SQLStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM evaluations WHERE id=?`), id)
	if err != nil {
		return false, apperr.Store("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Store("delete", err)
	}
	return n > 0, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
