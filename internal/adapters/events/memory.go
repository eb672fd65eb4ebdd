package events

import (
	"context"
	"sync"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/contracts"
)

// MemoryPublisher records everything it is handed.
type MemoryPublisher struct {
	mu         sync.Mutex
	domain     []contracts.EventEnvelope
	analytics  []contracts.EventEnvelope
	dlq        []contracts.DLQRecord
	failDomain error
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) PublishDomain(_ context.Context, event contracts.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failDomain != nil {
		return p.failDomain
	}
	p.domain = append(p.domain, event)
	return nil
}

// FailDomain makes every later domain publish return err; nil restores it.
func (p *MemoryPublisher) FailDomain(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failDomain = err
}

func (p *MemoryPublisher) PublishAnalytics(_ context.Context, event contracts.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.analytics = append(p.analytics, event)
	return nil
}

func (p *MemoryPublisher) PublishDLQ(_ context.Context, record contracts.DLQRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dlq = append(p.dlq, record)
	return nil
}

func (p *MemoryPublisher) DomainEvents() []contracts.EventEnvelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]contracts.EventEnvelope(nil), p.domain...)
}

func (p *MemoryPublisher) AnalyticsEvents() []contracts.EventEnvelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]contracts.EventEnvelope(nil), p.analytics...)
}

func (p *MemoryPublisher) DLQRecords() []contracts.DLQRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]contracts.DLQRecord(nil), p.dlq...)
}
