// Package records holds employee, benefits and eligibility rule data.
//
// Reads are served from an immutable snapshot swapped atomically, so the
// read path takes no locks and can be shared by every session. Updates build
// a new BenefitsRecord version and publish a new snapshot.
package records

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
	logx "github.com/hr-benefits-assistant/server/pkg/logger"
)

type snapshot struct {
	employees []model.EmployeeRecord
	benefits  map[string]model.BenefitsRecord
	rules     map[string]model.EligibilityRule
}

// persister records mutations durably. The fixtures backend has none.
type persister interface {
	recordUpdate(ctx context.Context, rec model.BenefitsRecord, benefitType string, updates map[string]any, effectiveDate string) error
	close() error
}

type Store struct {
	snap atomic.Pointer[snapshot]

	writeMu   sync.Mutex // serialises writers only
	persister persister
	now       func() time.Time
}

type Option func(*Store)

// WithClock overrides the clock used for update timestamps and effective dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore builds a store over the given fixtures.
func NewStore(fx *Fixtures, opts ...Option) (*Store, error) {
	return newStore(fx, nil, opts...)
}

func newStore(fx *Fixtures, p persister, opts ...Option) (*Store, error) {
	if fx == nil {
		return nil, fmt.Errorf("fixtures are nil")
	}
	snap, err := buildSnapshot(fx)
	if err != nil {
		return nil, err
	}
	s := &Store{persister: p, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.snap.Store(snap)
	logx.Debug().
		Int("employees", len(snap.employees)).
		Int("benefits", len(snap.benefits)).
		Int("rules", len(snap.rules)).
		Msg("record store loaded")
	return s, nil
}

func buildSnapshot(fx *Fixtures) (*snapshot, error) {
	snap := &snapshot{
		employees: make([]model.EmployeeRecord, 0, len(fx.Employees)),
		benefits:  make(map[string]model.BenefitsRecord, len(fx.Benefits)),
		rules:     make(map[string]model.EligibilityRule, len(fx.Rules)),
	}
	seen := make(map[string]bool, len(fx.Employees))
	for _, e := range fx.Employees {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return nil, fmt.Errorf("employee with empty id")
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate employee id %q", id)
		}
		seen[id] = true
		e.ID = id
		snap.employees = append(snap.employees, e)
	}
	for _, b := range fx.Benefits {
		if !seen[b.EmployeeID] {
			return nil, fmt.Errorf("benefits record for unknown employee %q", b.EmployeeID)
		}
		rec := b.Clone()
		if rec.Benefits == nil {
			rec.Benefits = map[string]model.BenefitAttributes{}
		}
		snap.benefits[b.EmployeeID] = rec
	}
	for _, r := range fx.Rules {
		key := NormalizeBenefitType(r.BenefitType)
		if key == "" {
			return nil, fmt.Errorf("eligibility rule with empty benefit type")
		}
		r.BenefitType = key
		snap.rules[key] = r
	}
	return snap, nil
}

// NormalizeBenefitType is the canonical key form of a benefit type.
func NormalizeBenefitType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// LookupEmployees returns every employee record.
func (s *Store) LookupEmployees() []model.EmployeeRecord {
	return slices.Clone(s.snap.Load().employees)
}

// LookupBenefits returns the employee's benefits record, if any.
func (s *Store) LookupBenefits(employeeID string) (model.BenefitsRecord, bool) {
	rec, ok := s.snap.Load().benefits[strings.TrimSpace(employeeID)]
	if !ok {
		return model.BenefitsRecord{}, false
	}
	return rec.Clone(), true
}

// LookupRules returns the rule table keyed by normalised benefit type.
func (s *Store) LookupRules() map[string]model.EligibilityRule {
	return maps.Clone(s.snap.Load().rules)
}

// Update records a benefits mutation. Eligibility is the caller's job;
// the store only checks that the employee has a benefits record.
func (s *Store) Update(ctx context.Context, employeeID, benefitType string, updates map[string]any) (model.UpdateResult, error) {
	benefitType = NormalizeBenefitType(benefitType)
	if benefitType == "" {
		return model.UpdateResult{Success: false, Reason: "benefit type is required"}, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.snap.Load()
	rec, ok := cur.benefits[employeeID]
	if !ok {
		logx.Info().Str("employee_id", employeeID).Msg("update rejected: no benefits record")
		return model.UpdateResult{Success: false, Reason: model.ReasonNoBenefitsOnFile}, nil
	}

	now := s.now().UTC()
	effective := firstOfNextMonth(now).Format(model.DateLayout)

	next := rec.Clone()
	attrs := next.Benefits[benefitType]
	if attrs == nil {
		attrs = model.BenefitAttributes{}
	}
	for k, v := range updates {
		attrs[k] = v
	}
	attrs["pending_effective_date"] = effective
	next.Benefits[benefitType] = attrs
	next.Version = rec.Version + 1
	next.UpdatedAt = now

	if s.persister != nil {
		if err := s.persister.recordUpdate(ctx, next, benefitType, updates, effective); err != nil {
			logx.Error().Err(err).Str("employee_id", employeeID).Str("benefit_type", benefitType).Msg("failed to persist benefits update")
			return model.UpdateResult{}, err
		}
	}

	benefits := maps.Clone(cur.benefits)
	benefits[employeeID] = next
	s.snap.Store(&snapshot{employees: cur.employees, benefits: benefits, rules: cur.rules})

	logx.Info().
		Str("employee_id", employeeID).
		Str("benefit_type", benefitType).
		Int("version", next.Version).
		Str("effective_date", effective).
		Msg("benefits update recorded")
	return model.UpdateResult{Success: true, EffectiveDate: effective}, nil
}

// Close releases the persistence backend, if any.
func (s *Store) Close() error {
	if s.persister == nil {
		return nil
	}
	return s.persister.close()
}

func firstOfNextMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// Open builds a store for the configured backend: fixtures, sqlite or postgres.
func Open(ctx context.Context, cfg model.RecordsConfig, opts ...Option) (*Store, error) {
	fx, err := loadConfiguredFixtures(cfg)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Backend) {
	case "", "fixtures", "json":
		return NewStore(fx, opts...)
	case "sqlite", "postgres":
		db, err := openSQL(ctx, strings.ToLower(cfg.Backend), cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := db.seed(ctx, fx); err != nil {
			_ = db.close()
			return nil, err
		}
		loaded, err := db.load(ctx)
		if err != nil {
			_ = db.close()
			return nil, err
		}
		store, err := newStore(loaded, db, opts...)
		if err != nil {
			_ = db.close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown records backend %q", cfg.Backend)
	}
}
