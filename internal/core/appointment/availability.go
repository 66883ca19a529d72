package appointment

import (
	"context"
	"sort"
)

// Checker は予約ストアから空き状況を導出します。書き込みもキャッシュも行いません。
type Checker struct {
	repo Repository
}

// NewChecker は Checker を生成します。
func NewChecker(repo Repository) *Checker {
	return &Checker{repo: repo}
}

// IsSlotFree は cancelled 以外の予約が存在しない場合に true を返します。
func (c *Checker) IsSlotFree(ctx context.Context, query SlotQuery) (bool, error) {
	exists, err := c.repo.ExistsActive(ctx, query)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// BusySlots は指定日の埋まっている時刻を昇順・重複なしで返します。
func (c *Checker) BusySlots(ctx context.Context, employeeRef, date string) ([]string, error) {
	appointments, err := c.repo.ListByEmployeeAndDate(ctx, employeeRef, date)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(appointments))
	slots := make([]string, 0, len(appointments))
	for _, a := range appointments {
		if !a.Status.IsActive() {
			continue
		}
		if _, ok := seen[a.Time]; ok {
			continue
		}
		seen[a.Time] = struct{}{}
		slots = append(slots, a.Time)
	}

	sort.Strings(slots)
	return slots, nil
}
