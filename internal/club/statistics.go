// internal/club/statistics.go
package club

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"clubledger/internal/domain"
	"clubledger/internal/store"
)

// DepositStatistics groups all deposits by member and calendar year of
// the deposit timestamp and sums the amounts. The totals are recomputed
// from a single store snapshot on every call, so a concurrently
// in-flight deposit is either fully included or not at all.
func (s *service) DepositStatistics(ctx context.Context) (stats []domain.DepositStatistic, err error) {
	ctx, span := s.tracer.Start(ctx, "club.deposit_statistics")
	defer span.End()
	defer func() { s.count(ctx, "deposit_statistics", err) }()

	if err = s.guard.check(); err != nil {
		return nil, err
	}

	type key struct {
		number int64
		year   int
	}
	totals := make(map[key]domain.DepositStatistic)

	err = s.store.View(ctx, func(tx store.ReadTx) error {
		deposits, err := tx.Deposits()
		if err != nil {
			return err
		}
		for _, d := range deposits {
			k := key{number: d.MemberNumber, year: d.DepositedAt.Year()}
			st, ok := totals[k]
			if !ok {
				st = domain.DepositStatistic{MemberNumber: k.number, Year: k.year}
			}
			st.Total = st.Total.Add(d.Amount)
			totals[k] = st
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats = make([]domain.DepositStatistic, 0, len(totals))
	for _, st := range totals {
		stats = append(stats, st)
	}
	// Stable output order for callers; not part of the contract.
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].MemberNumber != stats[j].MemberNumber {
			return stats[i].MemberNumber < stats[j].MemberNumber
		}
		return stats[i].Year < stats[j].Year
	})

	span.SetAttributes(attribute.Int("statistics.groups", len(stats)))
	return stats, nil
}
