package device

import (
	"sync"

	"github.com/reglet-dev/thingpedia-registry/device/dto"
)

// MockPackagingQueue implements ports.PackagingQueue by recording jobs.
type MockPackagingQueue struct {
	mu   sync.Mutex
	Jobs []dto.PackagingJobDTO
	Err  error
}

func (m *MockPackagingQueue) Enqueue(job dto.PackagingJobDTO) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Jobs = append(m.Jobs, job)
	return nil
}

// Enqueued returns a copy of the recorded jobs.
func (m *MockPackagingQueue) Enqueued() []dto.PackagingJobDTO {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dto.PackagingJobDTO(nil), m.Jobs...)
}
