// Package modkit carries the shared dependencies modules are built from
package modkit

import (
	"gourcewall/internal/modkit/repokit"
	"gourcewall/internal/platform/config"
	"gourcewall/internal/platform/logger"
	"gourcewall/internal/platform/store"
)

// Deps is what main hands every module constructor.
// PG and RDS are nil unless the matching SERVICE_* variables were set
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.Queryer
	RDS store.KV
}
