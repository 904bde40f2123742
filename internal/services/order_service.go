package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"restaurant_ordering/internal/metrics"
	"restaurant_ordering/internal/models"
	"restaurant_ordering/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const (
	defaultPerPage = 50
	maxPerPage     = 500
	exportLimit    = 10000
	dateLayout     = "2006-01-02"
)

// BasketLine is one requested {item, quantity} pair. Name is only used in messages.
type BasketLine struct {
	ID   uint   `json:"id"`
	Qty  int    `json:"qty"`
	Name string `json:"name"`
}

type CreateOrderInput struct {
	BranchID *uint        `json:"branchId"`
	Items    []BasketLine `json:"items"`
	Total    *float64     `json:"total"`
	TableID  *int         `json:"tableId"`
	Notes    *string      `json:"notes"`
}

type CreateOrderResult struct {
	OrderID uint    `json:"orderId"`
	Total   float64 `json:"total"`
}

// OrderView is an order with its denormalised lines.
type OrderView struct {
	models.Order
	Items []repository.OrderLine `json:"items"`
}

// CompletedQuery filters completed orders; From and To are inclusive calendar dates (YYYY-MM-DD).
type CompletedQuery struct {
	BranchID *uint
	Page     int
	PerPage  int
	From     string
	To       string
}

type CompletedPage struct {
	Orders      []OrderView `json:"orders"`
	Page        int         `json:"page"`
	PerPage     int         `json:"perPage"`
	TotalCount  int64       `json:"totalCount"`
	TotalAmount float64     `json:"totalAmount"`
	TotalPages  int         `json:"totalPages"`
}

type OrderService interface {
	Create(ctx context.Context, actor Actor, in CreateOrderInput) (*CreateOrderResult, error)
	ListActive(ctx context.Context, actor Actor, branchID *uint) ([]OrderView, error)
	ListCompleted(ctx context.Context, actor Actor, q CompletedQuery) (*CompletedPage, error)
	Complete(ctx context.Context, actor Actor, orderID uint) error
	Transition(ctx context.Context, actor Actor, orderID uint, status models.OrderStatus) error
	ExportCompleted(ctx context.Context, actor Actor, q CompletedQuery, w io.Writer) error
}

type orderService struct {
	orderRepo     repository.OrderRepository
	orderItemRepo repository.OrderItemRepository
	branchRepo    repository.BranchRepository
	cache         Cache
	defaultLoc    *time.Location
	log           logrus.FieldLogger
	now           func() time.Time
	exportLimit   int
}

func NewOrderService(orderRepo repository.OrderRepository, orderItemRepo repository.OrderItemRepository, branchRepo repository.BranchRepository, cache Cache, defaultLoc *time.Location, log logrus.FieldLogger) OrderService {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &orderService{
		orderRepo:     orderRepo,
		orderItemRepo: orderItemRepo,
		branchRepo:    branchRepo,
		cache:         cache,
		defaultLoc:    defaultLoc,
		log:           log,
		now:           time.Now,
		exportLimit:   exportLimit,
	}
}

// orderRejection tags a refused order with a metrics reason.
type orderRejection struct {
	reason string
	err    error
}

func (r *orderRejection) Error() string { return r.err.Error() }
func (r *orderRejection) Unwrap() error { return r.err }

func reject(reason string, err error) error {
	return &orderRejection{reason: reason, err: err}
}

func (s *orderService) Create(ctx context.Context, actor Actor, in CreateOrderInput) (*CreateOrderResult, error) {
	result, err := s.create(ctx, actor, in)
	if err != nil {
		var rej *orderRejection
		if errors.As(err, &rej) {
			metrics.OrderRejected(rej.reason)
			s.log.WithField("reason", rej.reason).Info("order rejected: " + rej.err.Error())
			return nil, rej.err
		}
		return nil, err
	}
	return result, nil
}

func (s *orderService) create(ctx context.Context, actor Actor, in CreateOrderInput) (*CreateOrderResult, error) {
	branchID := in.BranchID
	if branchID == nil || *branchID == 0 {
		branchID = actor.BranchID
	}
	if branchID == nil || *branchID == 0 {
		return nil, reject("invalid_request", validationError("branchId is required"))
	}
	if actor.IsStaff() && !actor.IsAdmin() && actor.BranchID != nil && *actor.BranchID != *branchID {
		return nil, reject("wrong_branch", forbiddenError("staff can only place orders for their own branch"))
	}
	if !actor.IsStaff() && (in.TableID == nil || *in.TableID <= 0) {
		return nil, reject("table_required", validationError("a valid table is required to place an order"))
	}

	lines, err := mergeBasket(in.Items)
	if err != nil {
		return nil, reject("invalid_request", err)
	}

	branch, err := s.branchRepo.GetByID(ctx, *branchID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, reject("unknown_branch", rejectedError("unknown branch"))
		}
		return nil, fmt.Errorf("failed to load branch: %w", err)
	}
	if !branch.Active {
		return nil, reject("branch_inactive", rejectedError("branch is not accepting orders"))
	}

	ids := make([]uint, len(lines))
	for i, line := range lines {
		ids[i] = line.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var order models.Order
	err = s.orderRepo.WithinTx(ctx, func(tx repository.OrderTx) error {
		locked, err := tx.LockMenuItems(branch.ID, ids)
		if err != nil {
			return fmt.Errorf("failed to lock menu items: %w", err)
		}
		byID := make(map[uint]models.MenuItem, len(locked))
		for _, item := range locked {
			byID[item.ID] = item
		}

		var total float64
		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			item, ok := byID[line.ID]
			switch {
			case !ok:
				return reject("missing_item", rejectedError("no longer available: %s", line.label()))
			case !item.Orderable():
				return reject("out_of_stock", rejectedError("out of stock or unavailable: %s", item.Name))
			case item.Stock < line.Qty:
				return reject("insufficient_stock", rejectedError("only %d left in stock: %s", item.Stock, item.Name))
			}
			itemID := item.ID
			items = append(items, models.OrderItem{ItemID: &itemID, Qty: line.Qty, PriceAtTime: item.Price})
			total += item.Price * float64(line.Qty)
		}

		order = models.Order{
			BranchID:  branch.ID,
			UserID:    actor.UserID,
			Total:     roundCents(total),
			Status:    models.OrderOpen,
			Active:    true,
			OrderTime: s.now().UTC(),
			TableID:   in.TableID,
			Notes:     trimmedOrNil(in.Notes),
		}
		if err := tx.InsertOrder(&order); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := tx.InsertOrderItems(items); err != nil {
			return fmt.Errorf("failed to insert order items: %w", err)
		}
		for _, it := range items {
			if err := tx.AdjustStock(branch.ID, *it.ItemID, -it.Qty); err != nil {
				return fmt.Errorf("failed to decrement stock of item %d: %w", *it.ItemID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if in.Total != nil && math.Abs(*in.Total-order.Total) >= 0.005 {
		s.log.WithFields(logrus.Fields{
			"order_id":     order.ID,
			"client_total": *in.Total,
			"total":        order.Total,
		}).Warn("client total differs from computed total")
	}
	metrics.OrderCreated(branch.Code)
	invalidate(ctx, s.cache, s.log, statsKey(&branch.ID), statsAllKey)

	return &CreateOrderResult{OrderID: order.ID, Total: order.Total}, nil
}

func (s *orderService) ListActive(ctx context.Context, actor Actor, branchID *uint) ([]OrderView, error) {
	scope, err := actor.ScopeBranch(branchID)
	if err != nil {
		return nil, err
	}
	orders, err := s.orderRepo.List(ctx, repository.OrderQuery{
		BranchID: scope,
		Statuses: []models.OrderStatus{models.OrderOpen, models.OrderPreparing},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list active orders: %w", err)
	}
	return s.withLines(ctx, orders)
}

func (s *orderService) ListCompleted(ctx context.Context, actor Actor, q CompletedQuery) (*CompletedPage, error) {
	query, err := s.completedQuery(ctx, actor, q)
	if err != nil {
		return nil, err
	}

	page, perPage := q.Page, q.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	summary, err := s.orderRepo.Summarize(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize completed orders: %w", err)
	}

	query.Limit = perPage
	query.Offset = (page - 1) * perPage
	orders, err := s.orderRepo.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed orders: %w", err)
	}
	views, err := s.withLines(ctx, orders)
	if err != nil {
		return nil, err
	}

	return &CompletedPage{
		Orders:      views,
		Page:        page,
		PerPage:     perPage,
		TotalCount:  summary.Count,
		TotalAmount: roundCents(summary.Amount),
		TotalPages:  int((summary.Count + int64(perPage) - 1) / int64(perPage)),
	}, nil
}

func (s *orderService) Complete(ctx context.Context, actor Actor, orderID uint) error {
	return s.Transition(ctx, actor, orderID, models.OrderCompleted)
}

func (s *orderService) Transition(ctx context.Context, actor Actor, orderID uint, status models.OrderStatus) error {
	if orderID == 0 {
		return validationError("orderId is required")
	}
	if !status.Valid() || status == models.OrderOpen {
		return validationError("invalid status: %s", status)
	}
	var scope *uint
	if !actor.IsAdmin() {
		if actor.BranchID == nil {
			return validationError("branch is required")
		}
		scope = actor.BranchID
	}

	var branchID uint
	err := s.orderRepo.WithinTx(ctx, func(tx repository.OrderTx) error {
		order, err := tx.LockOrder(orderID, scope)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFoundError("order not found")
			}
			return fmt.Errorf("failed to lock order: %w", err)
		}
		branchID = order.BranchID

		if order.Status == status {
			return conflictError("order is already %s", status)
		}
		if !order.Status.CanTransitionTo(status) {
			return conflictError("cannot change order from %s to %s", order.Status, status)
		}

		if status == models.OrderCancelled {
			if err := restoreStock(tx, order); err != nil {
				return err
			}
		}

		var closedAt *time.Time
		if !status.IsActive() {
			now := s.now().UTC()
			closedAt = &now
		}
		if err := tx.SetOrderStatus(order.ID, status, closedAt); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !status.IsActive() {
		metrics.OrderClosed(string(status))
		invalidate(ctx, s.cache, s.log, statsKey(&branchID), statsAllKey)
	}
	return nil
}

// restoreStock puts the quantities of a cancelled order back on the shelf.
// Lines whose menu item has since been deleted are skipped.
func restoreStock(tx repository.OrderTx, order *models.Order) error {
	items, err := tx.OrderItems(order.ID)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	qty := make(map[uint]int)
	var ids []uint
	for _, it := range items {
		if it.ItemID == nil {
			continue
		}
		if _, seen := qty[*it.ItemID]; !seen {
			ids = append(ids, *it.ItemID)
		}
		qty[*it.ItemID] += it.Qty
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	locked, err := tx.LockMenuItems(order.BranchID, ids)
	if err != nil {
		return fmt.Errorf("failed to lock menu items: %w", err)
	}
	for _, item := range locked {
		if err := tx.AdjustStock(order.BranchID, item.ID, qty[item.ID]); err != nil {
			return fmt.Errorf("failed to restore stock of item %d: %w", item.ID, err)
		}
	}
	return nil
}

// ExportCompleted writes the filtered completed orders as an xlsx workbook. A
// filter matching more than exportLimit orders is refused rather than truncated.
func (s *orderService) ExportCompleted(ctx context.Context, actor Actor, q CompletedQuery, w io.Writer) error {
	query, err := s.completedQuery(ctx, actor, q)
	if err != nil {
		return err
	}
	sum, err := s.orderRepo.Summarize(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to count completed orders: %w", err)
	}
	if sum.Count > int64(s.exportLimit) {
		return validationError("export is limited to %d orders, the filter matches %d; narrow the date range", s.exportLimit, sum.Count)
	}
	query.Limit = s.exportLimit
	orders, err := s.orderRepo.List(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to list completed orders: %w", err)
	}
	views, err := s.withLines(ctx, orders)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := fillOrderSheet(f, "Orders", views); err != nil {
		return fmt.Errorf("failed to build workbook: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func fillOrderSheet(f *excelize.File, sheet string, views []OrderView) error {
	index, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	f.SetActiveSheet(index)

	header := []interface{}{"Order ID", "Branch ID", "Table", "Order Time", "Closed At", "Items", "Total"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for r, o := range views {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			o.ID,
			o.BranchID,
			derefInt(o.TableID),
			o.OrderTime.Format(time.RFC3339),
			formatTimePtr(o.ClosedAt),
			describeLines(o.Items),
			o.Total,
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	widths := []struct {
		from, to string
		width    float64
	}{{"A", "C", 10}, {"D", "E", 24}, {"F", "F", 48}, {"G", "G", 12}}
	for _, cw := range widths {
		if err := f.SetColWidth(sheet, cw.from, cw.to, cw.width); err != nil {
			return err
		}
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", "G1", style)
}

func (s *orderService) completedQuery(ctx context.Context, actor Actor, q CompletedQuery) (repository.OrderQuery, error) {
	scope, err := actor.ScopeBranch(q.BranchID)
	if err != nil {
		return repository.OrderQuery{}, err
	}

	loc := s.defaultLoc
	if scope != nil && (q.From != "" || q.To != "") {
		branch, err := s.branchRepo.GetByID(ctx, *scope)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return repository.OrderQuery{}, fmt.Errorf("failed to load branch: %w", err)
		}
		loc = branch.Location(s.defaultLoc)
	}

	query := repository.OrderQuery{
		BranchID: scope,
		Statuses: []models.OrderStatus{models.OrderCompleted},
	}
	if q.From != "" {
		from, err := time.ParseInLocation(dateLayout, q.From, loc)
		if err != nil {
			return query, validationError("invalid from date: %s", q.From)
		}
		query.From = &from
	}
	if q.To != "" {
		to, err := time.ParseInLocation(dateLayout, q.To, loc)
		if err != nil {
			return query, validationError("invalid to date: %s", q.To)
		}
		end := to.AddDate(0, 0, 1)
		query.To = &end
	}
	if query.From != nil && query.To != nil && !query.From.Before(*query.To) {
		return query, validationError("from date must not be after to date")
	}
	return query, nil
}

func (s *orderService) withLines(ctx context.Context, orders []models.Order) ([]OrderView, error) {
	views := make([]OrderView, len(orders))
	if len(orders) == 0 {
		return views, nil
	}
	ids := make([]uint, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	lines, err := s.orderItemRepo.LinesForOrders(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load order lines: %w", err)
	}
	byOrder := make(map[uint][]repository.OrderLine, len(orders))
	for _, l := range lines {
		byOrder[l.OrderID] = append(byOrder[l.OrderID], l)
	}
	for i, o := range orders {
		items := byOrder[o.ID]
		if items == nil {
			items = []repository.OrderLine{}
		}
		views[i] = OrderView{Order: o, Items: items}
	}
	return views, nil
}

// mergeBasket validates the basket and folds repeated items into one line, keeping first-seen order.
func mergeBasket(in []BasketLine) ([]BasketLine, error) {
	if len(in) == 0 {
		return nil, validationError("basket is empty")
	}
	index := make(map[uint]int, len(in))
	out := make([]BasketLine, 0, len(in))
	for _, line := range in {
		if line.ID == 0 {
			return nil, validationError("invalid item id")
		}
		if line.Qty <= 0 {
			return nil, validationError("invalid quantity for %s", line.label())
		}
		if i, ok := index[line.ID]; ok {
			out[i].Qty += line.Qty
			continue
		}
		index[line.ID] = len(out)
		out = append(out, line)
	}
	return out, nil
}

func (l BasketLine) label() string {
	if name := strings.TrimSpace(l.Name); name != "" {
		return name
	}
	return fmt.Sprintf("#%d", l.ID)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func derefInt(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func describeLines(lines []repository.OrderLine) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		name := "(deleted item)"
		if l.Name != nil {
			name = *l.Name
		}
		parts = append(parts, fmt.Sprintf("%d x %s", l.Qty, name))
	}
	return strings.Join(parts, "; ")
}
