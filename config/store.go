package config

import "sync"

// Store holds runtime-mutable settings behind a mutex. The scheduler
// reads a fresh snapshot every cycle, so API mutations take effect on
// the next cycle without restart.
type Store struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewStore wraps a loaded config
func NewStore(cfg *Config) *Store {
	return &Store{cfg: cfg}
}

// Snapshot returns a copy of the current config. Slices are copied so
// callers cannot mutate shared state.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := *s.cfg
	cp.ScannerConfig.Watchlist = append([]string(nil), s.cfg.ScannerConfig.Watchlist...)
	cp.TradingConfig.EnabledStrategies = append([]string(nil), s.cfg.TradingConfig.EnabledStrategies...)
	return cp
}

// SetTotalCapital updates the capital base used by the sizer
func (s *Store) SetTotalCapital(capital float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if capital > 0 {
		s.cfg.TradingConfig.TotalCapital = capital
	}
}

// SetMaxPositions updates the position slot count
func (s *Store) SetMaxPositions(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.cfg.TradingConfig.MaxPositions = n
	}
}

// SetEnabledStrategies replaces the enabled strategy list. An empty
// list enables all strategies.
func (s *Store) SetEnabledStrategies(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.TradingConfig.EnabledStrategies = append([]string(nil), names...)
}

// SetWatchlist replaces the scan watchlist
func (s *Store) SetWatchlist(symbols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(symbols) > 0 {
		s.cfg.ScannerConfig.Watchlist = append([]string(nil), symbols...)
	}
}
