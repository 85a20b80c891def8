package module

import "gourcewall/internal/services/feed/domain"

// Ports defines feed module ports exposed via the registry
type Ports struct {
	Source domain.SourcePort
	Cursor domain.CursorStore
}
