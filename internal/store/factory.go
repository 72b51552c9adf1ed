// SPDX-License-Identifier: MIT

package store

import (
	"fmt"

	"github.com/Typecraft/tbf/internal/config"
)

// Open builds the Store selected by the configuration.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.StoreBadger:
		return OpenBadger(cfg.Path)
	case config.StoreSQLite:
		return OpenSQLite(cfg.Path)
	case config.StoreMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}
