// Package repokit binds repositories to whichever SQL seam the store opened
package repokit

import "gourcewall/internal/platform/store"

// Queryer is the statement surface repositories are bound to
type Queryer = store.SQL
