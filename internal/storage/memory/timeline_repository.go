package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// timelineRepositoryInMemory хранит события жизненного цикла продаж в памяти.
type timelineRepositoryInMemory struct {
	mu     sync.RWMutex
	events map[string][]domain.TimelineEvent
}

// NewTimelineRepository возвращает in-memory реализацию TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepositoryInMemory{
		events: make(map[string][]domain.TimelineEvent),
	}
}

// Append добавляет событие в конец ленты продажи.
func (r *timelineRepositoryInMemory) Append(ctx context.Context, event domain.TimelineEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.SaleID] = append(r.events[event.SaleID], event)
	return nil
}

// List возвращает события продажи в порядке добавления.
func (r *timelineRepositoryInMemory) List(ctx context.Context, saleID string) ([]domain.TimelineEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.events[saleID]
	result := make([]domain.TimelineEvent, len(stored))
	copy(result, stored)
	return result, nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
