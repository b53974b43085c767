package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubledger/internal/domain"
)

// setupTestDB attempts to connect to a PostgreSQL database for testing.
// It skips the test if the connection cannot be established.
func setupTestDB(t testing.TB) *PostgresStore {
	t.Helper()

	pgUser := os.Getenv("PGUSER")
	pgPassword := os.Getenv("PGPASSWORD")
	pgHost := os.Getenv("PGHOST")
	pgPort := os.Getenv("PGPORT")
	pgDB := os.Getenv("PGDATABASE")

	if pgUser == "" {
		pgUser = "user"
	}
	if pgPassword == "" {
		pgPassword = "password"
	}
	if pgHost == "" {
		pgHost = "localhost"
	}
	if pgPort == "" {
		pgPort = "5432"
	}
	if pgDB == "" {
		pgDB = "testdb"
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		pgHost, pgPort, pgUser, pgPassword, pgDB)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("failed to open database connection: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("skipping postgres tests: could not connect: %v", err)
	}

	ps := NewPostgresStore(db)
	if err := ps.InitSchema(context.Background()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	if _, err := db.Exec(`
		TRUNCATE deposits, memberships, members CASCADE;
		UPDATE member_counter SET next_number = 1 WHERE id = 1;
	`); err != nil {
		t.Fatalf("failed to reset tables: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return ps
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	ps := setupTestDB(t)
	ctx := context.Background()

	begin := time.Now().UTC().Truncate(time.Microsecond)
	membershipID := uuid.New()

	var number int64
	err := ps.Update(ctx, func(tx Tx) error {
		n, err := tx.NextMemberNumber()
		if err != nil {
			return err
		}
		number = n
		if err := tx.InsertMember(domain.Member{
			Number:    n,
			FirstName: "Ada",
			LastName:  "Lovelace",
			Birthday:  time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC),
			CreatedAt: begin,
		}); err != nil {
			return err
		}
		if err := tx.InsertMembership(domain.Membership{
			ID:           membershipID,
			MemberNumber: n,
			Begin:        begin,
		}); err != nil {
			return err
		}
		return tx.InsertDeposit(domain.Deposit{
			ID:           uuid.New(),
			MembershipID: membershipID,
			MemberNumber: n,
			Amount:       decimal.RequireFromString("50.00"),
			DepositedAt:  begin,
		})
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), number)

	err = ps.View(ctx, func(tx ReadTx) error {
		m, err := tx.Member(number)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, "Lovelace", m.LastName)

		open, err := tx.OpenMembership(number)
		require.NoError(t, err)
		require.NotNil(t, open)
		assert.Equal(t, membershipID, open.ID)

		deposits, err := tx.Deposits()
		require.NoError(t, err)
		require.Len(t, deposits, 1)
		assert.True(t, deposits[0].Amount.Equal(decimal.RequireFromString("50.00")))
		return nil
	})
	require.NoError(t, err)
}

func TestPostgresStoreDuplicateLastName(t *testing.T) {
	ps := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, ps.Update(ctx, func(tx Tx) error {
		return tx.InsertMember(domain.Member{
			Number: 1, FirstName: "Ada", LastName: "Lovelace",
			Birthday: time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC), CreatedAt: time.Now(),
		})
	}))

	err := ps.Update(ctx, func(tx Tx) error {
		return tx.InsertMember(domain.Member{
			Number: 2, FirstName: "Other", LastName: "Lovelace",
			Birthday: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), CreatedAt: time.Now(),
		})
	})
	require.ErrorIs(t, err, domain.ErrDuplicateName)
}

func TestPostgresStoreCascadeDelete(t *testing.T) {
	ps := setupTestDB(t)
	ctx := context.Background()

	membershipID := uuid.New()
	require.NoError(t, ps.Update(ctx, func(tx Tx) error {
		if err := tx.InsertMember(domain.Member{
			Number: 1, FirstName: "Ada", LastName: "Lovelace",
			Birthday: time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC), CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		if err := tx.InsertMembership(domain.Membership{
			ID: membershipID, MemberNumber: 1, Begin: time.Now(),
		}); err != nil {
			return err
		}
		return tx.InsertDeposit(domain.Deposit{
			ID: uuid.New(), MembershipID: membershipID, MemberNumber: 1,
			Amount: decimal.RequireFromString("10.00"), DepositedAt: time.Now(),
		})
	}))

	require.NoError(t, ps.Update(ctx, func(tx Tx) error {
		return tx.DeleteMember(1)
	}))

	err := ps.View(ctx, func(tx ReadTx) error {
		m, err := tx.Member(1)
		require.NoError(t, err)
		assert.Nil(t, m)

		memberships, err := tx.Memberships(1)
		require.NoError(t, err)
		assert.Empty(t, memberships)

		deposits, err := tx.Deposits()
		require.NoError(t, err)
		assert.Empty(t, deposits)
		return nil
	})
	require.NoError(t, err)
}

func TestPostgresStoreCloseMembership(t *testing.T) {
	ps := setupTestDB(t)
	ctx := context.Background()

	begin := time.Now().UTC().Truncate(time.Microsecond)
	id := uuid.New()
	require.NoError(t, ps.Update(ctx, func(tx Tx) error {
		if err := tx.InsertMember(domain.Member{
			Number: 1, FirstName: "Ada", LastName: "Lovelace",
			Birthday: time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC), CreatedAt: begin,
		}); err != nil {
			return err
		}
		return tx.InsertMembership(domain.Membership{ID: id, MemberNumber: 1, Begin: begin})
	}))

	end := begin.Add(time.Hour)
	require.NoError(t, ps.Update(ctx, func(tx Tx) error {
		return tx.CloseMembership(id, end)
	}))

	// Closing twice must fail; end is set exactly once.
	err := ps.Update(ctx, func(tx Tx) error {
		return tx.CloseMembership(id, end.Add(time.Hour))
	})
	require.Error(t, err)

	err = ps.View(ctx, func(tx ReadTx) error {
		open, err := tx.OpenMembership(1)
		require.NoError(t, err)
		assert.Nil(t, open)
		return nil
	})
	require.NoError(t, err)
}
