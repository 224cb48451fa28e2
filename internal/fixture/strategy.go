package fixture

import (
	"log/slog"
	"sync"

	"github.com/roach88/webtest/internal/orm"
)

// Strategy builds the purger and executor for one store family.
type Strategy struct {
	NewPurger   func(m orm.Manager) (Purger, error)
	NewExecutor func(m orm.Manager, p Purger, logger *slog.Logger) *Executor
}

func defaultExecutor(m orm.Manager, p Purger, logger *slog.Logger) *Executor {
	return NewExecutor(m, p, WithLogger(logger))
}

var (
	strategiesMu sync.RWMutex
	strategies   = map[orm.Family]Strategy{
		orm.FamilyRelational: {NewPurger: NewRelationalPurger, NewExecutor: defaultExecutor},
		orm.FamilyDocument:   {NewPurger: NewDocumentPurger, NewExecutor: defaultExecutor},
	}
)

// StrategyFor returns the strategy registered for family.
func StrategyFor(family orm.Family) (Strategy, error) {
	strategiesMu.RLock()
	defer strategiesMu.RUnlock()
	s, ok := strategies[family]
	if !ok {
		return Strategy{}, resolutionError(KindFamily, string(family), "no fixture strategy for store family", nil)
	}
	return s, nil
}

// RegisterStrategy installs s for family, replacing any existing entry.
// A nil NewExecutor uses the default executor.
func RegisterStrategy(family orm.Family, s Strategy) {
	if s.NewExecutor == nil {
		s.NewExecutor = defaultExecutor
	}
	strategiesMu.Lock()
	defer strategiesMu.Unlock()
	strategies[family] = s
}
