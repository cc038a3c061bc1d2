package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a map-backed Repository for single-node dev runs and
// tests. It enforces the same uniqueness the Postgres indexes do, so the
// booking race behaves identically on either backend.
type MemoryRepository struct {
	mu           sync.RWMutex
	rules        map[uuid.UUID]*WorkingHourRule
	offDays      map[uuid.UUID]*OffDay
	slots        map[uuid.UUID]*SlotInstance
	slotsByPos   map[string]uuid.UUID // doctor|date|start -> slot id
	appointments map[uuid.UUID]*Appointment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rules:        make(map[uuid.UUID]*WorkingHourRule),
		offDays:      make(map[uuid.UUID]*OffDay),
		slots:        make(map[uuid.UUID]*SlotInstance),
		slotsByPos:   make(map[string]uuid.UUID),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

func posKey(doctorID uuid.UUID, date time.Time, start TimeOfDay) string {
	return doctorID.String() + "|" + slotKey(date, start)
}

// Working hour rules

func (m *MemoryRepository) ListRulesByDoctor(_ context.Context, doctorID uuid.UUID) ([]WorkingHourRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []WorkingHourRule
	for _, r := range m.rules {
		if r.DoctorID == doctorID {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DayOfWeek != result[j].DayOfWeek {
			return result[i].DayOfWeek < result[j].DayOfWeek
		}
		return result[i].StartTime < result[j].StartTime
	})
	return result, nil
}

func (m *MemoryRepository) ListActiveRulesByDoctor(_ context.Context, doctorID uuid.UUID) ([]WorkingHourRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []WorkingHourRule
	for _, r := range m.rules {
		if r.DoctorID == doctorID && r.Active {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *MemoryRepository) GetRuleByID(_ context.Context, id uuid.UUID) (*WorkingHourRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rules[id]
	if !ok {
		return nil, ErrRuleNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryRepository) GetActiveRule(_ context.Context, doctorID uuid.UUID, dayOfWeek int) (*WorkingHourRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.rules {
		if r.DoctorID == doctorID && r.DayOfWeek == dayOfWeek && r.Active {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) CreateRule(_ context.Context, rule *WorkingHourRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rule.Active {
		for _, r := range m.rules {
			if r.DoctorID == rule.DoctorID && r.DayOfWeek == rule.DayOfWeek && r.Active {
				return ErrDuplicateRule
			}
		}
	}
	cp := *rule
	m.rules[rule.ID] = &cp
	return nil
}

func (m *MemoryRepository) UpdateRule(_ context.Context, rule *WorkingHourRule) (*WorkingHourRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rules[rule.ID]; !ok {
		return nil, ErrRuleNotFound
	}
	cp := *rule
	m.rules[rule.ID] = &cp
	out := cp
	return &out, nil
}

func (m *MemoryRepository) DeactivateRule(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rules[id]
	if !ok {
		return ErrRuleNotFound
	}
	r.Active = false
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Off days

func (m *MemoryRepository) ListOffDays(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]OffDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []OffDay
	for _, od := range m.offDays {
		if od.DoctorID == doctorID && !od.Date.Before(from) && !od.Date.After(to) {
			result = append(result, *od)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (m *MemoryRepository) GetOffDay(_ context.Context, doctorID uuid.UUID, date time.Time) (*OffDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, od := range m.offDays {
		if od.DoctorID == doctorID && od.Date.Equal(date) {
			cp := *od
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) CreateOffDay(_ context.Context, offDay *OffDay) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, od := range m.offDays {
		if od.DoctorID == offDay.DoctorID && od.Date.Equal(offDay.Date) {
			return ErrDuplicateOffDay
		}
	}
	cp := *offDay
	m.offDays[offDay.ID] = &cp
	return nil
}

func (m *MemoryRepository) DeleteOffDay(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.offDays[id]; !ok {
		return ErrOffDayNotFound
	}
	delete(m.offDays, id)
	return nil
}

// Booking ledger

func (m *MemoryRepository) ListSlotsInRange(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]SlotInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []SlotInstance
	for _, s := range m.slots {
		if s.DoctorID == doctorID && !s.Date.Before(from) && !s.Date.After(to) {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *MemoryRepository) GetSlotAt(_ context.Context, doctorID uuid.UUID, date time.Time, start TimeOfDay) (*SlotInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.slotsByPos[posKey(doctorID, date, start)]
	if !ok {
		return nil, nil
	}
	cp := *m.slots[id]
	return &cp, nil
}

func (m *MemoryRepository) GetSlotByID(_ context.Context, id uuid.UUID) (*SlotInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryRepository) CreateBlockedSlot(_ context.Context, slot *SlotInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertSlotLocked(slot)
}

func (m *MemoryRepository) CreateBooking(_ context.Context, slot *SlotInstance, appt *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.insertSlotLocked(slot); err != nil {
		return err
	}
	cp := *appt
	m.appointments[appt.ID] = &cp
	return nil
}

func (m *MemoryRepository) insertSlotLocked(slot *SlotInstance) error {
	key := posKey(slot.DoctorID, slot.Date, slot.StartTime)
	if _, taken := m.slotsByPos[key]; taken {
		return ErrSlotTaken
	}
	cp := *slot
	m.slots[slot.ID] = &cp
	m.slotsByPos[key] = slot.ID
	return nil
}

func (m *MemoryRepository) DeleteSlot(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteSlotLocked(id)
}

func (m *MemoryRepository) deleteSlotLocked(id uuid.UUID) error {
	s, ok := m.slots[id]
	if !ok {
		return ErrSlotNotFound
	}
	delete(m.slotsByPos, posKey(s.DoctorID, s.Date, s.StartTime))
	delete(m.slots, id)
	return nil
}

// Appointments

func (m *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryRepository) ListAppointmentsByDoctorDate(_ context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Appointment
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.Date.Equal(date) {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime < result[j].StartTime })
	return result, nil
}

func (m *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus, releaseSlot bool) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()

	if releaseSlot {
		_ = m.deleteSlotLocked(a.SlotID)
	}

	cp := *a
	return &cp, nil
}
