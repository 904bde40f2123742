package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"restaurant_ordering/internal/models"
	"restaurant_ordering/internal/repository"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func uintPtr(v uint) *uint { return &v }
func intPtr(v int) *int    { return &v }

var errCheckViolation = errors.New(`new row for relation "menu_items" violates check constraint "chk_menu_items_stock"`)

// memStore is an in-memory order store. A transaction holds mu from start to end,
// which serialises concurrent orders the way row locks on the touched items would.
var (
	_ repository.OrderRepository     = (*memStore)(nil)
	_ repository.OrderItemRepository = (*memStore)(nil)
)

type memStore struct {
	mu         sync.Mutex
	items      map[uint]*models.MenuItem
	orders     map[uint]*models.Order
	lines      []models.OrderItem
	nextOrder  uint
	nextLine   uint
	failOnLine bool
}

func newMemStore(items ...models.MenuItem) *memStore {
	s := &memStore{items: map[uint]*models.MenuItem{}, orders: map[uint]*models.Order{}}
	for i := range items {
		item := items[i]
		s.items[item.ID] = &item
	}
	return s
}

func (s *memStore) stock(id uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id].Stock
}

func (s *memStore) setPrice(id uint, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id].Price = price
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) lineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

type memSnapshot struct {
	items     map[uint]models.MenuItem
	orders    map[uint]models.Order
	lines     []models.OrderItem
	nextOrder uint
	nextLine  uint
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		items:     make(map[uint]models.MenuItem, len(s.items)),
		orders:    make(map[uint]models.Order, len(s.orders)),
		lines:     append([]models.OrderItem(nil), s.lines...),
		nextOrder: s.nextOrder,
		nextLine:  s.nextLine,
	}
	for id, it := range s.items {
		snap.items[id] = *it
	}
	for id, o := range s.orders {
		snap.orders[id] = *o
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.items = make(map[uint]*models.MenuItem, len(snap.items))
	for id, it := range snap.items {
		it := it
		s.items[id] = &it
	}
	s.orders = make(map[uint]*models.Order, len(snap.orders))
	for id, o := range snap.orders {
		o := o
		s.orders[id] = &o
	}
	s.lines = snap.lines
	s.nextOrder = snap.nextOrder
	s.nextLine = snap.nextLine
}

func (s *memStore) WithinTx(_ context.Context, fn func(tx repository.OrderTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// order returns a copy of a stored order for assertions.
func (s *memStore) order(id uint) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *memStore) filter(q repository.OrderQuery) []models.Order {
	var out []models.Order
	for _, o := range s.orders {
		if q.BranchID != nil && o.BranchID != *q.BranchID {
			continue
		}
		if len(q.Statuses) > 0 {
			match := false
			for _, st := range q.Statuses {
				if o.Status == st {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		if q.From != nil && o.OrderTime.Before(*q.From) {
			continue
		}
		if q.To != nil && !o.OrderTime.Before(*q.To) {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OrderTime.Equal(out[j].OrderTime) {
			return out[i].OrderTime.After(out[j].OrderTime)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *memStore) List(_ context.Context, q repository.OrderQuery) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filter(q)
	if q.Limit > 0 {
		if q.Offset >= len(out) {
			return []models.Order{}, nil
		}
		end := q.Offset + q.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[q.Offset:end]
	}
	return out, nil
}

func (s *memStore) Summarize(_ context.Context, q repository.OrderQuery) (repository.OrderSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum repository.OrderSummary
	for _, o := range s.filter(q) {
		sum.Count++
		sum.Amount += o.Total
	}
	return sum, nil
}

func (s *memStore) LinesForOrders(_ context.Context, orderIDs []uint) ([]repository.OrderLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := map[uint]bool{}
	for _, id := range orderIDs {
		wanted[id] = true
	}
	var out []repository.OrderLine
	for _, l := range s.lines {
		if !wanted[l.OrderID] {
			continue
		}
		line := repository.OrderLine{OrderID: l.OrderID, ItemID: l.ItemID, Qty: l.Qty, PriceAtTime: l.PriceAtTime}
		if l.ItemID != nil {
			if it, ok := s.items[*l.ItemID]; ok {
				name := it.Name
				line.Name = &name
				line.Photo = it.Photo
			}
		}
		out = append(out, line)
	}
	return out, nil
}

type memTx struct {
	s *memStore
}

func (t *memTx) LockMenuItems(branchID uint, itemIDs []uint) ([]models.MenuItem, error) {
	var out []models.MenuItem
	for _, id := range itemIDs {
		if it, ok := t.s.items[id]; ok && it.BranchID == branchID {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) InsertOrder(order *models.Order) error {
	t.s.nextOrder++
	order.ID = t.s.nextOrder
	cp := *order
	t.s.orders[order.ID] = &cp
	return nil
}

func (t *memTx) InsertOrderItems(items []models.OrderItem) error {
	if t.s.failOnLine {
		return errors.New("connection reset by peer")
	}
	for i := range items {
		t.s.nextLine++
		items[i].ID = t.s.nextLine
		t.s.lines = append(t.s.lines, items[i])
	}
	return nil
}

func (t *memTx) AdjustStock(branchID, itemID uint, delta int) error {
	it, ok := t.s.items[itemID]
	if !ok || it.BranchID != branchID {
		return repository.ErrNotFound
	}
	if it.Stock+delta < 0 {
		return errCheckViolation
	}
	it.Stock += delta
	return nil
}

func (t *memTx) LockOrder(orderID uint, branchID *uint) (*models.Order, error) {
	o, ok := t.s.orders[orderID]
	if !ok || (branchID != nil && o.BranchID != *branchID) {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (t *memTx) OrderItems(orderID uint) ([]models.OrderItem, error) {
	var out []models.OrderItem
	for _, l := range t.s.lines {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (t *memTx) SetOrderStatus(orderID uint, status models.OrderStatus, closedAt *time.Time) error {
	o, ok := t.s.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	o.Status = status
	o.Active = status.IsActive()
	o.ClosedAt = closedAt
	return nil
}

type fakeBranchRepo struct {
	mu       sync.Mutex
	branches map[uint]*models.Branch
	nextID   uint
}

func newFakeBranchRepo(branches ...models.Branch) *fakeBranchRepo {
	r := &fakeBranchRepo{branches: map[uint]*models.Branch{}}
	for i := range branches {
		b := branches[i]
		r.branches[b.ID] = &b
		if b.ID > r.nextID {
			r.nextID = b.ID
		}
	}
	return r
}

func (r *fakeBranchRepo) Create(_ context.Context, branch *models.Branch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.branches {
		if b.Code == branch.Code {
			return repository.ErrDuplicate
		}
	}
	r.nextID++
	branch.ID = r.nextID
	cp := *branch
	r.branches[branch.ID] = &cp
	return nil
}

func (r *fakeBranchRepo) GetByID(_ context.Context, id uint) (*models.Branch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.branches[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBranchRepo) GetByCode(_ context.Context, code string) (*models.Branch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.branches {
		if b.Code == code {
			cp := *b
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeBranchRepo) List(_ context.Context) ([]models.Branch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Branch, 0, len(r.branches))
	for _, b := range r.branches {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeBranchRepo) UpdateSettings(_ context.Context, id uint, settings models.BranchSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.branches[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.BranchSettings = settings
	return nil
}

// memCache records deletions so tests can assert invalidation.
type memCache struct {
	mu      sync.Mutex
	values  map[string][]byte
	deleted []string
}

func newMemCache() *memCache {
	return &memCache{values: map[string][]byte{}}
}

func (c *memCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.values[key]
	if !ok {
		return errors.New("cache miss")
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = raw
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key]
	return ok
}
