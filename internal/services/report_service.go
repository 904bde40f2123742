package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"restaurant_ordering/internal/models"
	"restaurant_ordering/internal/repository"

	"github.com/sirupsen/logrus"
)

const (
	weekDays    = 7
	topItemsMax = 3
)

// Day labels follow time.Weekday numbering, Sunday first.
var dayLabels = [7]string{"Paz", "Pts", "Sal", "Çar", "Per", "Cum", "Cts"}

type DayRevenue struct {
	Date   string  `json:"date"`
	DayNum int     `json:"dayNum"`
	Day    string  `json:"day"`
	Total  float64 `json:"total"`
}

type StatusSummary struct {
	Waiting   int64 `json:"waiting"`
	Preparing int64 `json:"preparing"`
	Served    int64 `json:"served"`
	Cancelled int64 `json:"cancelled"`
}

type Stats struct {
	TodayRevenue  float64              `json:"todayRevenue"`
	MonthRevenue  float64              `json:"monthRevenue"`
	TotalRevenue  float64              `json:"totalRevenue"`
	TotalOrders   int64                `json:"totalOrders"`
	WeeklyRevenue []DayRevenue         `json:"weeklyRevenue"`
	GlobalTop     []repository.TopItem `json:"globalTop"`
	StatusSummary StatusSummary        `json:"statusSummary"`
}

type ReportService interface {
	Stats(ctx context.Context, actor Actor, branchID *uint) (*Stats, error)
}

type reportService struct {
	reportRepo repository.ReportRepository
	branchRepo repository.BranchRepository
	cache      Cache
	ttl        time.Duration
	defaultLoc *time.Location
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewReportService(reportRepo repository.ReportRepository, branchRepo repository.BranchRepository, cache Cache, ttl time.Duration, defaultLoc *time.Location, log logrus.FieldLogger) ReportService {
	return &reportService{
		reportRepo: reportRepo,
		branchRepo: branchRepo,
		cache:      cache,
		ttl:        ttl,
		defaultLoc: defaultLoc,
		log:        log,
		now:        time.Now,
	}
}

// Stats builds the dashboard numbers for one branch, or for every branch when an admin asks without a filter.
func (s *reportService) Stats(ctx context.Context, actor Actor, branchID *uint) (*Stats, error) {
	scope, err := actor.ScopeBranch(branchID)
	if err != nil {
		return nil, err
	}

	key := statsKey(scope)
	if s.cache != nil {
		var cached Stats
		if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	loc := s.defaultLoc
	if scope != nil {
		branch, err := s.branchRepo.GetByID(ctx, *scope)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, notFoundError("branch not found")
			}
			return nil, fmt.Errorf("failed to load branch: %w", err)
		}
		loc = branch.Location(s.defaultLoc)
	}

	stats, err := s.compute(ctx, scope, loc)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, stats, s.ttl); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("cache write failed")
		}
	}
	return stats, nil
}

func (s *reportService) compute(ctx context.Context, scope *uint, loc *time.Location) (*Stats, error) {
	now := s.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	tomorrow := today.AddDate(0, 0, 1)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	weekStart := today.AddDate(0, 0, -(weekDays - 1))

	stats := &Stats{}
	var err error
	if stats.TodayRevenue, err = s.reportRepo.Revenue(ctx, scope, &today, &tomorrow); err != nil {
		return nil, fmt.Errorf("failed to sum today's revenue: %w", err)
	}
	if stats.MonthRevenue, err = s.reportRepo.Revenue(ctx, scope, &monthStart, &tomorrow); err != nil {
		return nil, fmt.Errorf("failed to sum month revenue: %w", err)
	}
	if stats.TotalRevenue, err = s.reportRepo.Revenue(ctx, scope, nil, nil); err != nil {
		return nil, fmt.Errorf("failed to sum total revenue: %w", err)
	}
	if stats.TotalOrders, err = s.reportRepo.CountOrders(ctx, scope); err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	points, err := s.reportRepo.CompletedSince(ctx, scope, weekStart)
	if err != nil {
		return nil, fmt.Errorf("failed to load weekly revenue: %w", err)
	}
	stats.WeeklyRevenue = weeklySeries(weekStart, points)

	top, err := s.reportRepo.TopItems(ctx, scope, topItemsMax)
	if err != nil {
		return nil, fmt.Errorf("failed to load top items: %w", err)
	}
	if top == nil {
		top = []repository.TopItem{}
	}
	stats.GlobalTop = top

	counts, err := s.reportRepo.StatusCounts(ctx, scope, weekStart)
	if err != nil {
		return nil, fmt.Errorf("failed to count order statuses: %w", err)
	}
	for _, c := range counts {
		switch c.Status {
		case models.OrderOpen:
			stats.StatusSummary.Waiting += c.Count
		case models.OrderPreparing:
			stats.StatusSummary.Preparing += c.Count
		case models.OrderCompleted:
			stats.StatusSummary.Served += c.Count
		case models.OrderCancelled:
			stats.StatusSummary.Cancelled += c.Count
		}
	}

	stats.TodayRevenue = roundCents(stats.TodayRevenue)
	stats.MonthRevenue = roundCents(stats.MonthRevenue)
	stats.TotalRevenue = roundCents(stats.TotalRevenue)
	return stats, nil
}

// weeklySeries buckets completed orders into seven local days starting at start, oldest first.
func weeklySeries(start time.Time, points []repository.RevenuePoint) []DayRevenue {
	loc := start.Location()
	series := make([]DayRevenue, weekDays)
	for i := range series {
		day := start.AddDate(0, 0, i)
		series[i] = DayRevenue{
			Date:   day.Format(dateLayout),
			DayNum: int(day.Weekday()),
			Day:    dayLabels[day.Weekday()],
		}
	}
	for _, p := range points {
		local := p.OrderTime.In(loc)
		midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		idx := int(midnight.Sub(start).Hours()/24 + 0.5)
		if idx < 0 || idx >= weekDays {
			continue
		}
		series[idx].Total += p.Total
	}
	for i := range series {
		series[i].Total = roundCents(series[i].Total)
	}
	return series
}
