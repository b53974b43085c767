package club

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"clubledger/internal/domain"
	"clubledger/internal/store"
)

type modelMember struct {
	lastName string
	active   bool
	totals   map[int]decimal.Decimal // deposited per calendar year
}

// TestLedgerInvariants drives random operation sequences against the
// service and checks after every step that the stored state still
// satisfies the ledger's invariants: unique last names, at most one open
// membership per member with the open one chronologically last, and
// statistics that exactly equal the accepted deposits.
func TestLedgerInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		svc := NewService(store.NewMemoryStore(), zerolog.Nop()).(*service)
		defer svc.Close()

		clock := newFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
		svc.now = clock.Now
		if err := svc.Initialize(ctx); err != nil {
			t.Fatalf("initialize: %v", err)
		}

		model := make(map[int64]*modelMember)

		pickNumber := func(t *rapid.T) int64 {
			numbers := make([]int64, 0, len(model)+1)
			for n := range model {
				numbers = append(numbers, n)
			}
			sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
			numbers = append(numbers, 10_000) // an always-unknown number
			return rapid.SampledFrom(numbers).Draw(t, "number")
		}

		advance := func(t *rapid.T) {
			d := rapid.SampledFrom([]time.Duration{
				time.Minute, 24 * time.Hour, 45 * 24 * time.Hour,
			}).Draw(t, "advance")
			clock.Advance(d)
		}

		t.Repeat(map[string]func(*rapid.T){
			"addMember": func(t *rapid.T) {
				lastName := rapid.StringMatching(`[A-Z][a-z]{1,6}`).Draw(t, "lastName")
				taken := false
				for _, m := range model {
					if m.lastName == lastName {
						taken = true
						break
					}
				}

				n, err := svc.AddMember(ctx, "Fn", lastName, date(1990, 1, 1))
				if taken {
					if !errors.Is(err, domain.ErrDuplicateName) {
						t.Fatalf("expected DuplicateName for %q, got %v", lastName, err)
					}
					return
				}
				if err != nil {
					t.Fatalf("addMember: %v", err)
				}
				if _, exists := model[n]; exists {
					t.Fatalf("member number %d allocated twice", n)
				}
				model[n] = &modelMember{lastName: lastName, totals: make(map[int]decimal.Decimal)}
				advance(t)
			},
			"deleteMember": func(t *rapid.T) {
				n := pickNumber(t)
				err := svc.DeleteMember(ctx, n)
				if _, known := model[n]; known {
					if err != nil {
						t.Fatalf("deleteMember(%d): %v", n, err)
					}
					delete(model, n)
				} else if !errors.Is(err, domain.ErrInvalidArgument) {
					t.Fatalf("expected InvalidArgument for unknown member %d, got %v", n, err)
				}
				advance(t)
			},
			"joinMember": func(t *rapid.T) {
				n := pickNumber(t)
				_, err := svc.JoinMember(ctx, n)
				m, known := model[n]
				switch {
				case !known:
					if !errors.Is(err, domain.ErrInvalidArgument) {
						t.Fatalf("expected InvalidArgument for unknown member %d, got %v", n, err)
					}
				case m.active:
					if !errors.Is(err, domain.ErrAlreadyMember) {
						t.Fatalf("expected AlreadyMember for %d, got %v", n, err)
					}
				default:
					if err != nil {
						t.Fatalf("joinMember(%d): %v", n, err)
					}
					m.active = true
				}
				advance(t)
			},
			"cancelMembership": func(t *rapid.T) {
				n := pickNumber(t)
				_, err := svc.CancelMembership(ctx, n)
				m, known := model[n]
				switch {
				case !known:
					if !errors.Is(err, domain.ErrInvalidArgument) {
						t.Fatalf("expected InvalidArgument for unknown member %d, got %v", n, err)
					}
				case !m.active:
					if !errors.Is(err, domain.ErrNoMember) {
						t.Fatalf("expected NoMember for %d, got %v", n, err)
					}
				default:
					if err != nil {
						t.Fatalf("cancelMembership(%d): %v", n, err)
					}
					m.active = false
				}
				advance(t)
			},
			"deposit": func(t *rapid.T) {
				n := pickNumber(t)
				cents := rapid.Int64Range(1, 100_000).Draw(t, "cents")
				amount := decimal.New(cents, -2)
				year := clock.Now().Year()

				err := svc.Deposit(ctx, n, amount)
				m, known := model[n]
				switch {
				case !known:
					if !errors.Is(err, domain.ErrInvalidArgument) {
						t.Fatalf("expected InvalidArgument for unknown member %d, got %v", n, err)
					}
				case !m.active:
					if !errors.Is(err, domain.ErrNoMember) {
						t.Fatalf("expected NoMember for %d, got %v", n, err)
					}
				default:
					if err != nil {
						t.Fatalf("deposit(%d): %v", n, err)
					}
					m.totals[year] = m.totals[year].Add(amount)
				}
				advance(t)
			},
			"": func(t *rapid.T) {
				checkInvariants(t, ctx, svc, model)
			},
		})
	})
}

func checkInvariants(t *rapid.T, ctx context.Context, svc *service, model map[int64]*modelMember) {
	err := svc.store.View(ctx, func(tx store.ReadTx) error {
		members, err := tx.Members()
		if err != nil {
			return err
		}
		if len(members) != len(model) {
			t.Fatalf("store has %d members, model has %d", len(members), len(model))
		}

		lastNames := make(map[string]bool, len(members))
		for _, m := range members {
			if lastNames[m.LastName] {
				t.Fatalf("duplicate last name %q among existing members", m.LastName)
			}
			lastNames[m.LastName] = true

			want, ok := model[m.Number]
			if !ok {
				t.Fatalf("unexpected member %d in store", m.Number)
			}

			history, err := tx.Memberships(m.Number)
			if err != nil {
				return err
			}
			open := 0
			for i, ms := range history {
				if ms.Open() {
					open++
					if i != len(history)-1 {
						t.Fatalf("member %d: open membership is not the last record", m.Number)
					}
				} else if !ms.End.After(ms.Begin) {
					t.Fatalf("member %d: membership end %v not after begin %v", m.Number, ms.End, ms.Begin)
				}
				if i > 0 && ms.Begin.Before(history[i-1].Begin) {
					t.Fatalf("member %d: membership history out of order", m.Number)
				}
			}
			if open > 1 {
				t.Fatalf("member %d has %d open memberships", m.Number, open)
			}
			if (open == 1) != want.active {
				t.Fatalf("member %d: store active=%v, model active=%v", m.Number, open == 1, want.active)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}

	stats, err := svc.DepositStatistics(ctx)
	if err != nil {
		t.Fatalf("depositStatistics: %v", err)
	}

	expected := 0
	for _, m := range model {
		expected += len(m.totals)
	}
	if len(stats) != expected {
		t.Fatalf("statistics has %d groups, model has %d", len(stats), expected)
	}
	for _, st := range stats {
		m, ok := model[st.MemberNumber]
		if !ok {
			t.Fatalf("statistics include deleted or unknown member %d", st.MemberNumber)
		}
		want, ok := m.totals[st.Year]
		if !ok {
			t.Fatalf("statistics include unexpected year %d for member %d", st.Year, st.MemberNumber)
		}
		if !st.Total.Equal(want) {
			t.Fatalf("member %d year %d: total %s, want %s", st.MemberNumber, st.Year, st.Total, want)
		}
	}
}
