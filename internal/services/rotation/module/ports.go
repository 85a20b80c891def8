package module

import (
	"gourcewall/internal/services/rotation/domain"
	"gourcewall/internal/services/rotation/service"
)

// Ports exposes the loop to main and the scheduler to tools that want single cycles
type Ports struct {
	Driver    domain.DriverPort
	Scheduler *service.Scheduler
}
