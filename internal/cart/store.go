package cart

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Option func(*Store)

// WithSaveTimeout bounds every repository Save issued by the writer.
func WithSaveTimeout(d time.Duration) Option {
	return func(s *Store) { s.saveTimeout = d }
}

// WithClock overrides the clock used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store owns the cart of one owner. Every mutation is applied to the latest
// in-memory state under a single lock and then handed to the persistence writer.
type Store struct {
	mu       sync.Mutex
	ownerID  string
	lines    map[string]*domain.CartLine
	order    []string
	revision uint64

	repo        repository.CartRepository
	log         *zap.Logger
	now         func() time.Time
	saveTimeout time.Duration

	persistState
}

// NewStore loads the persisted cart and starts the persistence writer.
// A load failure is logged and the store starts empty.
func NewStore(ctx context.Context, ownerID string, repo repository.CartRepository, log *zap.Logger, opts ...Option) *Store {
	s := &Store{
		ownerID:     ownerID,
		lines:       make(map[string]*domain.CartLine),
		repo:        repo,
		log:         log.With(zap.String("owner_id", ownerID)),
		now:         time.Now,
		saveTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.load(ctx)
	s.startWriter()
	return s
}

func (s *Store) load(ctx context.Context) {
	record, err := s.repo.Load(ctx)
	if errors.Is(err, repository.ErrCartNotFound) {
		return
	}
	if err != nil {
		s.log.Error("failed to load cart, starting empty", zap.Error(err))
		return
	}

	for _, l := range record.Lines {
		if l.Key == "" {
			continue
		}
		if _, dup := s.lines[l.Key]; dup {
			continue
		}
		line := l.Clone()
		line.MaxQuantity = normalizeMax(line.MaxQuantity)
		line.UnitPrice = nonNegative(line.UnitPrice)
		line.Quantity = clamp(line.Quantity, line.MaxQuantity)
		s.lines[line.Key] = &line
		s.order = append(s.order, line.Key)
	}
	s.revision = record.Revision
	s.savedRev = record.Revision
	s.log.Info("cart loaded", zap.Int("lines", len(s.order)), zap.Uint64("revision", s.revision))
}

// Add merges qty into the line for desc.Key, creating it when absent. A qty below 1
// counts as 1 and the result is clamped to [1, MaxQuantity]. Title, price and product
// id are overwritten; the image is kept when desc has none; the stored ceiling is kept
// when desc has none. An empty key is ignored.
func (s *Store) Add(desc domain.LineDescriptor, qty int) (domain.CartLine, bool) {
	if desc.Key == "" {
		return domain.CartLine{}, false
	}
	if qty < 1 {
		qty = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	line, exists := s.lines[desc.Key]
	if exists {
		line.ProductID = desc.ProductID
		line.Title = desc.Title
		line.UnitPrice = nonNegative(desc.UnitPrice)
		if img := imageOf(desc.Image); img != nil {
			line.Image = img
		}
		if desc.MaxQuantity != nil {
			line.MaxQuantity = normalizeMax(desc.MaxQuantity)
		}
		line.Quantity = clamp(saturatingAdd(line.Quantity, qty), line.MaxQuantity)
	} else {
		maxQty := normalizeMax(desc.MaxQuantity)
		line = &domain.CartLine{
			ProductID:   desc.ProductID,
			Key:         desc.Key,
			Title:       desc.Title,
			UnitPrice:   nonNegative(desc.UnitPrice),
			Image:       imageOf(desc.Image),
			Quantity:    clamp(qty, maxQty),
			MaxQuantity: maxQty,
		}
		s.lines[desc.Key] = line
		s.order = append(s.order, desc.Key)
	}

	s.commitLocked()
	return line.Clone(), true
}

// SetQuantity replaces the quantity of an existing line, clamped to [1, MaxQuantity].
// It never removes the line and does nothing for an absent key.
func (s *Store) SetQuantity(key string, qty int) (domain.CartLine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, exists := s.lines[key]
	if !exists {
		return domain.CartLine{}, false
	}

	next := clamp(qty, line.MaxQuantity)
	if next != line.Quantity {
		line.Quantity = next
		s.commitLocked()
	}
	return line.Clone(), true
}

// Remove deletes the line if present.
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.removeLocked(key) {
		return false
	}
	s.commitLocked()
	return true
}

// Clear empties the cart unconditionally.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = make(map[string]*domain.CartLine)
	s.order = nil
	s.commitLocked()
}

// ApplyIssues adopts server truth from a failed validation as one mutation:
// stock ceilings shrink (an empty stock removes the line), server prices replace
// stale ones, and inactive or missing products are removed. It returns the number
// of lines touched.
func (s *Store) ApplyIssues(issues []domain.ValidationIssue) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := 0
	for _, issue := range issues {
		for _, key := range s.keysForIssueLocked(issue) {
			if s.applyIssueLocked(key, issue) {
				touched++
			}
		}
	}
	if touched > 0 {
		s.commitLocked()
	}
	return touched
}

func (s *Store) keysForIssueLocked(issue domain.ValidationIssue) []string {
	if issue.Key != "" {
		if _, ok := s.lines[issue.Key]; ok {
			return []string{issue.Key}
		}
		return nil
	}
	var keys []string
	for _, k := range s.order {
		if s.lines[k].ProductID == issue.ProductID {
			keys = append(keys, k)
		}
	}
	return keys
}

func (s *Store) applyIssueLocked(key string, issue domain.ValidationIssue) bool {
	line := s.lines[key]
	switch issue.Status {
	case domain.LineStatusInsufficientStock:
		if issue.AvailableQty == nil {
			return false
		}
		if *issue.AvailableQty < 1 {
			return s.removeLocked(key)
		}
		line.MaxQuantity = normalizeMax(issue.AvailableQty)
		line.Quantity = clamp(line.Quantity, line.MaxQuantity)
		return true
	case domain.LineStatusPriceMismatch:
		if issue.ServerPrice == nil {
			return false
		}
		line.UnitPrice = nonNegative(*issue.ServerPrice)
		return true
	case domain.LineStatusInactive, domain.LineStatusNotFound:
		return s.removeLocked(key)
	}
	return false
}

func (s *Store) removeLocked(key string) bool {
	if _, exists := s.lines[key]; !exists {
		return false
	}
	delete(s.lines, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Line returns a copy of the line stored under key.
func (s *Store) Line(key string) (domain.CartLine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.lines[key]
	if !ok {
		return domain.CartLine{}, false
	}
	return line.Clone(), true
}

// Lines returns copies of all lines in insertion order.
func (s *Store) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linesLocked()
}

// Snapshot returns the lines together with the revision they belong to.
func (s *Store) Snapshot() domain.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CartSnapshot{Revision: s.revision, Lines: s.linesLocked()}
}

// Revision increases on every mutation that changed the cart.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

func (s *Store) TotalLines() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, l := range s.lines {
		total += l.Quantity
	}
	return total
}

func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, l := range s.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (s *Store) linesLocked() []domain.CartLine {
	out := make([]domain.CartLine, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.lines[k].Clone())
	}
	return out
}

func (s *Store) recordLocked() *domain.CartRecord {
	return &domain.CartRecord{
		SchemaVersion: domain.CurrentSchemaVersion,
		OwnerID:       s.ownerID,
		Revision:      s.revision,
		UpdatedAt:     s.now().UTC(),
		Lines:         s.linesLocked(),
	}
}

// clamp constrains q to [1, maxQty]; a nil ceiling is unbounded.
func clamp(q int, maxQty *int) int {
	if maxQty != nil && q > *maxQty {
		q = *maxQty
	}
	if q < 1 {
		q = 1
	}
	return q
}

// normalizeMax copies the ceiling and lifts it to at least 1.
func normalizeMax(maxQty *int) *int {
	if maxQty == nil {
		return nil
	}
	m := *maxQty
	if m < 1 {
		m = 1
	}
	return &m
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func imageOf(img *string) *string {
	if img == nil || *img == "" {
		return nil
	}
	v := *img
	return &v
}

func saturatingAdd(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}
