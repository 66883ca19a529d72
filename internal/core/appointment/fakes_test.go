package appointment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ogurasousui/gym-appointments/internal/core/employee"
)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (s *stubClock) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *stubClock) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

// fakeAppointmentRepo はアクティブスロットの一意制約を mutex 下で再現します。
type fakeAppointmentRepo struct {
	mu           sync.Mutex
	appointments map[string]*Appointment
	order        []string
	createCalls  int
	failCreate   error
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appointments: make(map[string]*Appointment)}
}

func (r *fakeAppointmentRepo) Create(_ context.Context, a *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.createCalls++
	if r.failCreate != nil {
		return nil, r.failCreate
	}

	for _, existing := range r.appointments {
		if existing.Status.IsActive() &&
			existing.EmployeeRef == a.EmployeeRef &&
			existing.Date == a.Date &&
			existing.Time == a.Time {
			return nil, ErrSlotConflict
		}
		if a.IdempotencyKey != nil && existing.IdempotencyKey != nil &&
			existing.ClientRef == a.ClientRef && *existing.IdempotencyKey == *a.IdempotencyKey {
			return nil, ErrDuplicateIdempotencyKey
		}
	}

	if _, ok := r.appointments[a.ID]; ok {
		return nil, fmt.Errorf("duplicate id %s", a.ID)
	}

	clone := cloneAppointment(a)
	r.appointments[a.ID] = clone
	r.order = append(r.order, a.ID)
	return cloneAppointment(clone), nil
}

func (r *fakeAppointmentRepo) FindByID(_ context.Context, id string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return cloneAppointment(a), nil
}

func (r *fakeAppointmentRepo) FindByIDForUpdate(ctx context.Context, id string) (*Appointment, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeAppointmentRepo) list(match func(*Appointment) bool, filter ListFilter) []*Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]*Appointment, 0)
	for _, id := range r.order {
		a := r.appointments[id]
		if !match(a) {
			continue
		}
		if filter.Date != "" && a.Date != filter.Date {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		result = append(result, cloneAppointment(a))
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].Time < result[j].Time
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result
}

func (r *fakeAppointmentRepo) ListByClient(_ context.Context, clientRef string, filter ListFilter) ([]*Appointment, error) {
	return r.list(func(a *Appointment) bool { return a.ClientRef == clientRef }, filter), nil
}

func (r *fakeAppointmentRepo) ListByEmployee(_ context.Context, employeeRef string, filter ListFilter) ([]*Appointment, error) {
	return r.list(func(a *Appointment) bool { return a.EmployeeRef == employeeRef }, filter), nil
}

func (r *fakeAppointmentRepo) ListByEmployeeAndDate(_ context.Context, employeeRef, date string) ([]*Appointment, error) {
	return r.list(func(a *Appointment) bool { return a.EmployeeRef == employeeRef && a.Date == date }, ListFilter{}), nil
}

func (r *fakeAppointmentRepo) ExistsActive(_ context.Context, q SlotQuery) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.appointments {
		if a.ID == q.ExcludingID {
			continue
		}
		if a.Status.IsActive() && a.EmployeeRef == q.EmployeeRef && a.Date == q.Date && a.Time == q.Time {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeAppointmentRepo) UpdateStatus(_ context.Context, a *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.appointments[a.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status.IsActive() {
		for _, other := range r.appointments {
			if other.ID != a.ID && other.Status.IsActive() &&
				other.EmployeeRef == existing.EmployeeRef && other.Date == existing.Date && other.Time == existing.Time {
				return nil, ErrSlotConflict
			}
		}
	}

	existing.Status = a.Status
	existing.Cancellation = a.Cancellation
	existing.Confirmation = a.Confirmation
	existing.UpdatedAt = a.UpdatedAt
	return cloneAppointment(existing), nil
}

func (r *fakeAppointmentRepo) FindByIdempotencyKey(_ context.Context, clientRef, key string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.appointments {
		if a.ClientRef == clientRef && a.IdempotencyKey != nil && *a.IdempotencyKey == key {
			return cloneAppointment(a), nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (r *fakeAppointmentRepo) CountByStatus(_ context.Context, filter StatsFilter) (map[Status]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[Status]int)
	for _, a := range r.appointments {
		if filter.EmployeeRef != "" && a.EmployeeRef != filter.EmployeeRef {
			continue
		}
		if filter.DateFrom != "" && a.Date < filter.DateFrom {
			continue
		}
		if filter.DateTo != "" && a.Date > filter.DateTo {
			continue
		}
		counts[a.Status]++
	}
	return counts, nil
}

func (r *fakeAppointmentRepo) activeCount(employeeRef, date, clock string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, a := range r.appointments {
		if a.Status.IsActive() && a.EmployeeRef == employeeRef && a.Date == date && a.Time == clock {
			count++
		}
	}
	return count
}

func cloneAppointment(a *Appointment) *Appointment {
	if a == nil {
		return nil
	}
	copy := *a
	if a.Cancellation != nil {
		c := *a.Cancellation
		copy.Cancellation = &c
	}
	if a.Confirmation != nil {
		c := *a.Confirmation
		copy.Confirmation = &c
	}
	if a.IdempotencyKey != nil {
		k := *a.IdempotencyKey
		copy.IdempotencyKey = &k
	}
	return &copy
}

type fakeDirectory struct {
	employees map[string]*employee.Employee
}

func newFakeDirectory(employees ...*employee.Employee) *fakeDirectory {
	d := &fakeDirectory{employees: make(map[string]*employee.Employee)}
	for _, e := range employees {
		d.employees[e.Code] = e
	}
	return d
}

func (d *fakeDirectory) FindByCode(_ context.Context, code string) (*employee.Employee, error) {
	e, ok := d.employees[code]
	if !ok {
		return nil, employee.ErrEmployeeNotFound
	}
	copy := *e
	return &copy, nil
}

func (d *fakeDirectory) FindByUserID(_ context.Context, userID string) (*employee.Employee, error) {
	for _, e := range d.employees {
		if e.UserID != nil && *e.UserID == userID {
			copy := *e
			return &copy, nil
		}
	}
	return nil, employee.ErrEmployeeNotFound
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]string
	sequence int
	err      error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]string)}
}

func (l *fakeLocker) TryLock(_ context.Context, key string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return "", false, l.err
	}
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	l.sequence++
	token := fmt.Sprintf("token-%d", l.sequence)
	l.held[key] = token
	return token, true, nil
}

func (l *fakeLocker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []DomainEvent
}

func (r *recordingEvents) Record(_ context.Context, event DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

func activeBarber() *employee.Employee {
	userID := "staff-user-1"
	return &employee.Employee{
		ID:       "emp-1",
		Code:     "700001",
		UserID:   &userID,
		Name:     "Marta Ruiz",
		Email:    "marta@gym.example",
		Phone:    "5512345678",
		Position: employee.PositionBarber,
		Status:   employee.StatusActive,
	}
}

func inactiveCoach() *employee.Employee {
	return &employee.Employee{
		ID:       "emp-2",
		Code:     "700002",
		Name:     "Luis Vega",
		Email:    "luis@gym.example",
		Phone:    "5587654321",
		Position: employee.PositionCoach,
		Status:   employee.StatusInactive,
	}
}

type testEnv struct {
	svc    *Service
	repo   *fakeAppointmentRepo
	clock  *stubClock
	events *recordingEvents
	locker *fakeLocker
}

func newTestEnv() *testEnv {
	repo := newFakeAppointmentRepo()
	clock := &stubClock{now: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
	events := &recordingEvents{}
	locker := newFakeLocker()

	var (
		mu  sync.Mutex
		seq int
	)
	idGen := func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("appt-%d", seq)
	}

	svc := NewService(repo, newFakeDirectory(activeBarber(), inactiveCoach()), clock, nil,
		WithSlotLocker(locker),
		WithEventRecorder(events),
		WithIDGenerator(idGen),
	)
	return &testEnv{svc: svc, repo: repo, clock: clock, events: events, locker: locker}
}

func bookInput(clientRef, date, clock string) BookInput {
	return BookInput{
		ClientRef:   clientRef,
		EmployeeRef: "700001",
		ServiceKind: ServiceHaircut,
		Date:        date,
		Time:        clock,
	}
}
