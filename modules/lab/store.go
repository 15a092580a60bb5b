package lab

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vetlabhq/vetnotify/pkg/notify"
)

var (
	ErrSampleNotFound       = errors.New("sample not found")
	ErrReportNotFound       = errors.New("report not found")
	ErrWorkOrderNotFound    = errors.New("work order not found")
	ErrVeterinarianNotFound = errors.New("veterinarian not found")
)

// Store keeps the lab's working records in memory. It doubles as the record
// source the dispatch task uses to resolve references back into live records
// at render time.
type Store struct {
	mu            sync.RWMutex
	samples       map[string]*Sample
	reports       map[string]*Report
	orders        map[string]*WorkOrder
	veterinarians map[string]*Veterinarian
	orderSeq      int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		samples:       make(map[string]*Sample),
		reports:       make(map[string]*Report),
		orders:        make(map[string]*WorkOrder),
		veterinarians: make(map[string]*Veterinarian),
	}
}

// RegisterSources wires the store's record kinds into the notification
// registry so serialized references resolve to live records.
func (s *Store) RegisterSources(reg *notify.Registry) {
	reg.RegisterSource(RefKindSample, notify.RecordSourceFunc(func(ctx context.Context, id string) (any, error) {
		return s.GetSample(id)
	}))
	reg.RegisterSource(RefKindReport, notify.RecordSourceFunc(func(ctx context.Context, id string) (any, error) {
		return s.GetReport(id)
	}))
	reg.RegisterSource(RefKindWorkOrder, notify.RecordSourceFunc(func(ctx context.Context, id string) (any, error) {
		return s.GetWorkOrder(id)
	}))
}

func (s *Store) PutVeterinarian(v Veterinarian) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := v
	s.veterinarians[v.ID] = &stored
}

func (s *Store) GetVeterinarian(id string) (*Veterinarian, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.veterinarians[id]
	if !ok {
		return nil, ErrVeterinarianNotFound
	}
	copied := *v
	return &copied, nil
}

func (s *Store) PutSample(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := sample
	s.samples[sample.ID] = &stored
}

func (s *Store) GetSample(id string) (*Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sample, ok := s.samples[id]
	if !ok {
		return nil, ErrSampleNotFound
	}
	copied := *sample
	return &copied, nil
}

func (s *Store) PutReport(report Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := report
	s.reports[report.ID] = &stored
}

func (s *Store) GetReport(id string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	copied := *report
	return &copied, nil
}

func (s *Store) PutWorkOrder(order WorkOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := order
	s.orders[order.ID] = &stored
}

func (s *Store) GetWorkOrder(id string) (*WorkOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, ErrWorkOrderNotFound
	}
	copied := *order
	return &copied, nil
}

// DeleteSample removes a sample. Pending notification tasks referencing it
// fall back to the captured display string.
func (s *Store) DeleteSample(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.samples, id)
}

// NextOrderNumber issues the next sequential work order number.
func (s *Store) NextOrderNumber() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderSeq++
	return fmt.Sprintf("WO-%d-%04d", time.Now().Year(), s.orderSeq)
}
