package services

import (
	"context"
	"testing"
	"time"

	"restaurant_ordering/internal/models"
	"restaurant_ordering/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReportRepo answers from a fixed list of orders and records the scopes it was asked for.
type fakeReportRepo struct {
	orders []models.Order
	top    []repository.TopItem
	calls  int
}

func (r *fakeReportRepo) scoped(branchID *uint) []models.Order {
	var out []models.Order
	for _, o := range r.orders {
		if branchID == nil || o.BranchID == *branchID {
			out = append(out, o)
		}
	}
	return out
}

func (r *fakeReportRepo) Revenue(_ context.Context, branchID *uint, from, to *time.Time) (float64, error) {
	r.calls++
	var sum float64
	for _, o := range r.scoped(branchID) {
		if o.Status != models.OrderCompleted {
			continue
		}
		if from != nil && o.OrderTime.Before(*from) {
			continue
		}
		if to != nil && !o.OrderTime.Before(*to) {
			continue
		}
		sum += o.Total
	}
	return sum, nil
}

func (r *fakeReportRepo) CountOrders(_ context.Context, branchID *uint) (int64, error) {
	return int64(len(r.scoped(branchID))), nil
}

func (r *fakeReportRepo) CompletedSince(_ context.Context, branchID *uint, since time.Time) ([]repository.RevenuePoint, error) {
	var out []repository.RevenuePoint
	for _, o := range r.scoped(branchID) {
		if o.Status == models.OrderCompleted && !o.OrderTime.Before(since) {
			out = append(out, repository.RevenuePoint{OrderTime: o.OrderTime, Total: o.Total})
		}
	}
	return out, nil
}

func (r *fakeReportRepo) TopItems(_ context.Context, _ *uint, limit int) ([]repository.TopItem, error) {
	if len(r.top) > limit {
		return r.top[:limit], nil
	}
	return r.top, nil
}

func (r *fakeReportRepo) StatusCounts(_ context.Context, branchID *uint, since time.Time) ([]repository.StatusCount, error) {
	counts := map[models.OrderStatus]int64{}
	for _, o := range r.scoped(branchID) {
		if !o.OrderTime.Before(since) {
			counts[o.Status]++
		}
	}
	var out []repository.StatusCount
	for st, n := range counts {
		out = append(out, repository.StatusCount{Status: st, Count: n})
	}
	return out, nil
}

func newReportFixture(t *testing.T, orders ...models.Order) (*reportService, *fakeReportRepo, *memCache) {
	t.Helper()
	repo := &fakeReportRepo{orders: orders}
	branches := newFakeBranchRepo(
		models.Branch{ID: branchIST, Code: "IST", Timezone: "Europe/Istanbul", Active: true},
		models.Branch{ID: branchMLA, Code: "MLA", Timezone: "Europe/Malta", Active: true},
	)
	cache := newMemCache()
	svc := NewReportService(repo, branches, cache, time.Minute, time.UTC, quietLogger()).(*reportService)
	// Wednesday 2026-03-18 10:00 in Istanbul
	svc.now = func() time.Time { return time.Date(2026, 3, 18, 7, 0, 0, 0, time.UTC) }
	return svc, repo, cache
}

func istanbulTime(t *testing.T, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Istanbul")
	require.NoError(t, err)
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	require.NoError(t, err)
	return ts
}

func TestStatsRevenueAndWeeklySeries(t *testing.T) {
	orders := []models.Order{
		{ID: 1, BranchID: branchIST, Status: models.OrderCompleted, Total: 10, OrderTime: istanbulTime(t, "2026-03-18 09:00")},
		{ID: 2, BranchID: branchIST, Status: models.OrderCompleted, Total: 5.5, OrderTime: istanbulTime(t, "2026-03-18 00:30")},
		{ID: 3, BranchID: branchIST, Status: models.OrderCompleted, Total: 20, OrderTime: istanbulTime(t, "2026-03-12 23:59")},
		{ID: 4, BranchID: branchIST, Status: models.OrderCompleted, Total: 7, OrderTime: istanbulTime(t, "2026-03-11 12:00")},
		{ID: 5, BranchID: branchIST, Status: models.OrderCompleted, Total: 100, OrderTime: istanbulTime(t, "2026-02-27 12:00")},
		{ID: 6, BranchID: branchIST, Status: models.OrderOpen, Total: 3, OrderTime: istanbulTime(t, "2026-03-18 09:30")},
		{ID: 7, BranchID: branchIST, Status: models.OrderCancelled, Total: 9, OrderTime: istanbulTime(t, "2026-03-17 09:30")},
		{ID: 8, BranchID: branchMLA, Status: models.OrderCompleted, Total: 50, OrderTime: istanbulTime(t, "2026-03-18 09:00")},
	}
	svc, _, _ := newReportFixture(t, orders...)

	stats, err := svc.Stats(context.Background(), staffIST, nil)
	require.NoError(t, err)

	assert.Equal(t, 15.5, stats.TodayRevenue)
	assert.Equal(t, 42.5, stats.MonthRevenue)
	assert.Equal(t, 142.5, stats.TotalRevenue)
	assert.Equal(t, int64(7), stats.TotalOrders)

	require.Len(t, stats.WeeklyRevenue, 7)
	assert.Equal(t, DayRevenue{Date: "2026-03-12", DayNum: 4, Day: "Per", Total: 20}, stats.WeeklyRevenue[0])
	assert.Equal(t, DayRevenue{Date: "2026-03-18", DayNum: 3, Day: "Çar", Total: 15.5}, stats.WeeklyRevenue[6])
	for _, d := range stats.WeeklyRevenue[1:6] {
		assert.Zero(t, d.Total, d.Date)
	}

	assert.Equal(t, StatusSummary{Waiting: 1, Served: 3, Cancelled: 1}, stats.StatusSummary)
	assert.NotNil(t, stats.GlobalTop)
}

func TestStatsScopesByActor(t *testing.T) {
	orders := []models.Order{
		{ID: 1, BranchID: branchIST, Status: models.OrderCompleted, Total: 10, OrderTime: istanbulTime(t, "2026-03-18 09:00")},
		{ID: 2, BranchID: branchMLA, Status: models.OrderCompleted, Total: 50, OrderTime: istanbulTime(t, "2026-03-18 09:00")},
	}
	svc, _, _ := newReportFixture(t, orders...)
	ctx := context.Background()

	all, err := svc.Stats(ctx, adminAll, nil)
	require.NoError(t, err)
	assert.Equal(t, 60.0, all.TotalRevenue)

	mla, err := svc.Stats(ctx, adminAll, uintPtr(branchMLA))
	require.NoError(t, err)
	assert.Equal(t, 50.0, mla.TotalRevenue)

	_, err = svc.Stats(ctx, staffIST, uintPtr(branchMLA))
	requireKind(t, err, KindForbidden)

	_, err = svc.Stats(ctx, Actor{UserID: uintPtr(9), Role: models.RoleStaff}, nil)
	requireKind(t, err, KindValidation)

	_, err = svc.Stats(ctx, adminAll, uintPtr(99))
	requireKind(t, err, KindNotFound)
}

func TestStatsAreCachedPerScope(t *testing.T) {
	svc, repo, cache := newReportFixture(t,
		models.Order{ID: 1, BranchID: branchIST, Status: models.OrderCompleted, Total: 10, OrderTime: istanbulTime(t, "2026-03-18 09:00")},
	)
	ctx := context.Background()

	_, err := svc.Stats(ctx, staffIST, nil)
	require.NoError(t, err)
	calls := repo.calls
	assert.True(t, cache.has("stats:branch:1"))

	again, err := svc.Stats(ctx, staffIST, nil)
	require.NoError(t, err)
	assert.Equal(t, calls, repo.calls)
	assert.Equal(t, 10.0, again.TotalRevenue)
	assert.Len(t, again.WeeklyRevenue, 7)

	require.NoError(t, cache.Delete(ctx, "stats:branch:1"))
	_, err = svc.Stats(ctx, staffIST, nil)
	require.NoError(t, err)
	assert.Greater(t, repo.calls, calls)
}
