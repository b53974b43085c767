// internal/store/pgstore.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"clubledger/internal/domain"
)

// PostgresStore persists the record sets in PostgreSQL. Update runs under
// a serializable transaction, View under a read-only repeatable-read
// transaction, which gives the snapshot and atomicity guarantees the
// Store contract asks for.
type PostgresStore struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		tracer: otel.Tracer("clubledger/store"),
	}
}

// InitSchema creates the tables if they do not exist and seeds the member
// number counter.
func (ps *PostgresStore) InitSchema(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS members (
			number     BIGINT PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name  TEXT NOT NULL UNIQUE,
			birthday   DATE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS memberships (
			id            UUID PRIMARY KEY,
			member_number BIGINT NOT NULL REFERENCES members(number) ON DELETE CASCADE,
			begin_at      TIMESTAMPTZ NOT NULL,
			end_at        TIMESTAMPTZ,
			CHECK (end_at IS NULL OR end_at > begin_at)
		);
		CREATE TABLE IF NOT EXISTS deposits (
			id            UUID PRIMARY KEY,
			membership_id UUID NOT NULL REFERENCES memberships(id) ON DELETE CASCADE,
			member_number BIGINT NOT NULL REFERENCES members(number) ON DELETE CASCADE,
			amount        NUMERIC(14,2) NOT NULL CHECK (amount > 0),
			deposited_at  TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS member_counter (
			id          SMALLINT PRIMARY KEY CHECK (id = 1),
			next_number BIGINT NOT NULL
		);
		INSERT INTO member_counter (id, next_number) VALUES (1, 1)
		ON CONFLICT (id) DO NOTHING;
	`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (ps *PostgresStore) View(ctx context.Context, fn func(ReadTx) error) error {
	ctx, span := ps.tracer.Start(ctx, "store.view")
	defer span.End()

	tx, err := ps.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
	if err != nil {
		return fmt.Errorf("begin read transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (ps *PostgresStore) Update(ctx context.Context, fn func(Tx) error) error {
	ctx, span := ps.tracer.Start(ctx, "store.update")
	defer span.End()

	tx, err := ps.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{ctx: ctx, tx: tx}); err != nil {
		return translatePQ(err)
	}
	if err := tx.Commit(); err != nil {
		span.SetAttributes(attribute.Bool("commit.failed", true))
		return translatePQ(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

// translatePQ maps a unique violation on members.last_name to the domain
// error so the backing engine stays a backstop for the registry check.
func translatePQ(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "members_last_name_key" {
		return domain.ErrDuplicateName
	}
	return err
}

type pgTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *pgTx) Member(number int64) (*domain.Member, error) {
	row := t.tx.QueryRowContext(t.ctx, `
		SELECT number, first_name, last_name, birthday, created_at
		FROM members WHERE number = $1
	`, number)
	return scanMember(row)
}

func (t *pgTx) MemberByLastName(lastName string) (*domain.Member, error) {
	row := t.tx.QueryRowContext(t.ctx, `
		SELECT number, first_name, last_name, birthday, created_at
		FROM members WHERE last_name = $1
	`, lastName)
	return scanMember(row)
}

func scanMember(row *sql.Row) (*domain.Member, error) {
	m := &domain.Member{}
	err := row.Scan(&m.Number, &m.FirstName, &m.LastName, &m.Birthday, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan member: %w", err)
	}
	return m, nil
}

func (t *pgTx) Members() ([]domain.Member, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT number, first_name, last_name, birthday, created_at
		FROM members ORDER BY number
	`)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var out []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.Number, &m.FirstName, &m.LastName, &m.Birthday, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *pgTx) OpenMembership(number int64) (*domain.Membership, error) {
	row := t.tx.QueryRowContext(t.ctx, `
		SELECT id, member_number, begin_at, end_at
		FROM memberships WHERE member_number = $1 AND end_at IS NULL
	`, number)
	ms, err := scanMembershipRow(row)
	if err != nil {
		return nil, err
	}
	return ms, nil
}

func scanMembershipRow(row *sql.Row) (*domain.Membership, error) {
	var ms domain.Membership
	var end sql.NullTime
	err := row.Scan(&ms.ID, &ms.MemberNumber, &ms.Begin, &end)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan membership: %w", err)
	}
	if end.Valid {
		e := end.Time
		ms.End = &e
	}
	return &ms, nil
}

func (t *pgTx) Memberships(number int64) ([]domain.Membership, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT id, member_number, begin_at, end_at
		FROM memberships WHERE member_number = $1 ORDER BY begin_at
	`, number)
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	defer rows.Close()

	var out []domain.Membership
	for rows.Next() {
		var ms domain.Membership
		var end sql.NullTime
		if err := rows.Scan(&ms.ID, &ms.MemberNumber, &ms.Begin, &end); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		if end.Valid {
			e := end.Time
			ms.End = &e
		}
		out = append(out, ms)
	}
	return out, rows.Err()
}

func (t *pgTx) Deposits() ([]domain.Deposit, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT id, membership_id, member_number, amount, deposited_at
		FROM deposits ORDER BY deposited_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query deposits: %w", err)
	}
	defer rows.Close()

	var out []domain.Deposit
	for rows.Next() {
		var d domain.Deposit
		var amount string
		if err := rows.Scan(&d.ID, &d.MembershipID, &d.MemberNumber, &amount, &d.DepositedAt); err != nil {
			return nil, fmt.Errorf("scan deposit: %w", err)
		}
		d.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse deposit amount %q: %w", amount, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (t *pgTx) NextMemberNumber() (int64, error) {
	var next int64
	err := t.tx.QueryRowContext(t.ctx, `
		UPDATE member_counter SET next_number = next_number + 1
		WHERE id = 1
		RETURNING next_number - 1
	`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("allocate member number: %w", err)
	}
	return next, nil
}

func (t *pgTx) InsertMember(m domain.Member) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO members (number, first_name, last_name, birthday, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.Number, m.FirstName, m.LastName, m.Birthday, m.CreatedAt)
	if err != nil {
		return translatePQ(fmt.Errorf("insert member: %w", err))
	}
	return nil
}

func (t *pgTx) DeleteMember(number int64) error {
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM members WHERE number = $1`, number)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("member %d not found", number)
	}
	return nil
}

func (t *pgTx) InsertMembership(ms domain.Membership) error {
	var end interface{}
	if ms.End != nil {
		end = *ms.End
	}
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO memberships (id, member_number, begin_at, end_at)
		VALUES ($1, $2, $3, $4)
	`, ms.ID, ms.MemberNumber, ms.Begin, end)
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (t *pgTx) CloseMembership(id uuid.UUID, end time.Time) error {
	res, err := t.tx.ExecContext(t.ctx, `
		UPDATE memberships SET end_at = $1 WHERE id = $2 AND end_at IS NULL
	`, end, id)
	if err != nil {
		return fmt.Errorf("close membership: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close membership: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("membership %s not found or already closed", id)
	}
	return nil
}

func (t *pgTx) InsertDeposit(d domain.Deposit) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO deposits (id, membership_id, member_number, amount, deposited_at)
		VALUES ($1, $2, $3, $4, $5)
	`, d.ID, d.MembershipID, d.MemberNumber, d.Amount.String(), d.DepositedAt)
	if err != nil {
		return fmt.Errorf("insert deposit: %w", err)
	}
	return nil
}
