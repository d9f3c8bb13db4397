package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/booking/internal/notify"
)

// fakeStore is an in-memory Store with the database's read-committed
// behavior: every statement applies to shared state under the mutex and
// is visible to other units of work as soon as it completes, while a
// failing unit of work rewinds its own writes through an undo log.
// Competing units of work therefore interleave between statements, not
// around whole transactions.
type fakeStore struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*Slot
	appts map[uuid.UUID]*Appointment

	// failMove forces MoveAppointment to fail, to exercise rollback.
	failMove bool
	// failStatusFor forces UpdateAppointmentStatus to fail for one
	// appointment.
	failStatusFor uuid.UUID

	// afterApptRead fires once after the next in-transaction appointment
	// read, letting a test commit a competing operation between a unit
	// of work's read and its writes.
	afterApptRead func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		slots: make(map[uuid.UUID]*Slot),
		appts: make(map[uuid.UUID]*Appointment),
	}
}

// fakeTx is one unit of work. Statements go straight to the shared
// store; the undo log rewinds them in reverse when the unit fails.
type fakeTx struct {
	f    *fakeStore
	undo []func()
}

func (f *fakeStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	tx := &fakeTx{f: f}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (t *fakeTx) InTx(ctx context.Context, fn func(tx Store) error) error {
	return fn(t)
}

func (t *fakeTx) rollback() {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
}

// snapshot helpers append pre-images to the undo log; callers hold the
// mutex. A nil undo means the statement runs outside a unit of work.

func (f *fakeStore) snapshotSlot(id uuid.UUID, undo *[]func()) {
	if undo == nil {
		return
	}
	if s, ok := f.slots[id]; ok {
		prev := *s
		*undo = append(*undo, func() { f.slots[id] = &prev })
	}
}

func (f *fakeStore) snapshotAppt(id uuid.UUID, undo *[]func()) {
	if undo == nil {
		return
	}
	if a, ok := f.appts[id]; ok {
		prev := *a
		*undo = append(*undo, func() { f.appts[id] = &prev })
	}
}

func (f *fakeStore) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	cp := *s
	return &cp, nil
}

func (t *fakeTx) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return t.f.GetSlot(ctx, id)
}

func (f *fakeStore) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (t *fakeTx) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := t.f.GetAppointment(ctx, id)

	// One-shot: cleared before it runs, so the competing operation's
	// own reads do not recurse.
	t.f.mu.Lock()
	hook := t.f.afterApptRead
	t.f.afterApptRead = nil
	t.f.mu.Unlock()
	if hook != nil {
		hook()
	}

	return a, err
}

func (f *fakeStore) reserveSlot(id uuid.UUID, undo *[]func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok || s.Status != SlotAvailable {
		return ErrSlotUnavailable
	}
	f.snapshotSlot(id, undo)
	s.Status = SlotReserved
	s.UpdatedAt = time.Now()
	return nil
}

func (f *fakeStore) ReserveSlot(ctx context.Context, id uuid.UUID) error {
	return f.reserveSlot(id, nil)
}

func (t *fakeTx) ReserveSlot(ctx context.Context, id uuid.UUID) error {
	return t.f.reserveSlot(id, &t.undo)
}

func (f *fakeStore) releaseSlot(id uuid.UUID, undo *[]func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if ok && s.Status == SlotReserved {
		f.snapshotSlot(id, undo)
		s.Status = SlotAvailable
		s.UpdatedAt = time.Now()
	}
	return nil
}

func (f *fakeStore) ReleaseSlot(ctx context.Context, id uuid.UUID) error {
	return f.releaseSlot(id, nil)
}

func (t *fakeTx) ReleaseSlot(ctx context.Context, id uuid.UUID) error {
	return t.f.releaseSlot(id, &t.undo)
}

func (f *fakeStore) createAppointment(appt *Appointment, undo *[]func()) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *appt
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	f.appts[cp.ID] = &cp
	if undo != nil {
		id := cp.ID
		*undo = append(*undo, func() { delete(f.appts, id) })
	}
	out := cp
	return &out, nil
}

func (f *fakeStore) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	return f.createAppointment(appt, nil)
}

func (t *fakeTx) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	return t.f.createAppointment(appt, &t.undo)
}

func (f *fakeStore) updateAppointmentStatus(id uuid.UUID, from, to AppointmentStatus, notes *string, undo *[]func()) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStatusFor == id {
		return nil, transientf("injected status write failure")
	}
	a, ok := f.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	f.snapshotAppt(id, undo)
	a.Status = to
	if notes != nil {
		a.Notes = notes
	}
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (f *fakeStore) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, notes *string) (*Appointment, error) {
	return f.updateAppointmentStatus(id, from, to, notes, nil)
}

func (t *fakeTx) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, notes *string) (*Appointment, error) {
	return t.f.updateAppointmentStatus(id, from, to, notes, &t.undo)
}

func (f *fakeStore) moveAppointment(id, fromSlotID uuid.UUID, from AppointmentStatus, newSlot *Slot, undo *[]func()) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMove {
		return nil, transientf("injected move failure")
	}
	a, ok := f.appts[id]
	if !ok || a.SlotID != fromSlotID || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	f.snapshotAppt(id, undo)
	a.SlotID = newSlot.ID
	a.StartTime = newSlot.StartTime
	a.EndTime = newSlot.EndTime
	a.Status = StatusConfirmed
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (f *fakeStore) MoveAppointment(ctx context.Context, id uuid.UUID, fromSlotID uuid.UUID, from AppointmentStatus, newSlot *Slot) (*Appointment, error) {
	return f.moveAppointment(id, fromSlotID, from, newSlot, nil)
}

func (t *fakeTx) MoveAppointment(ctx context.Context, id uuid.UUID, fromSlotID uuid.UUID, from AppointmentStatus, newSlot *Slot) (*Appointment, error) {
	return t.f.moveAppointment(id, fromSlotID, from, newSlot, &t.undo)
}

func (f *fakeStore) ActiveAppointmentForSlot(ctx context.Context, slotID uuid.UUID) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.appts {
		if a.SlotID == slotID && a.Status.Active() {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (t *fakeTx) ActiveAppointmentForSlot(ctx context.Context, slotID uuid.UUID) (*Appointment, error) {
	return t.f.ActiveAppointmentForSlot(ctx, slotID)
}

func (f *fakeStore) FindStalePending(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Appointment
	for _, a := range f.appts {
		if a.Status == StatusPending && a.CreatedAt.Before(cutoff) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (t *fakeTx) FindStalePending(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	return t.f.FindStalePending(ctx, cutoff)
}

func (f *fakeStore) ListAppointments(ctx context.Context, _ Filter) ([]AppointmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []AppointmentDetail
	for _, a := range f.appts {
		out = append(out, AppointmentDetail{Appointment: *a})
	}
	return out, nil
}

func (t *fakeTx) ListAppointments(ctx context.Context, f Filter) ([]AppointmentDetail, error) {
	return t.f.ListAppointments(ctx, f)
}

// activeCountForSlot counts appointments holding the slot; used to
// assert the at-most-one invariant after concurrent booking.
func (f *fakeStore) activeCountForSlot(slotID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.appts {
		if a.SlotID == slotID && a.Status.Active() {
			n++
		}
	}
	return n
}

type fakeDirectory struct {
	parties map[uuid.UUID]*Party
}

func newFakeDirectory(parties ...*Party) *fakeDirectory {
	d := &fakeDirectory{parties: make(map[uuid.UUID]*Party)}
	for _, p := range parties {
		d.parties[p.ID] = p
	}
	return d
}

func (d *fakeDirectory) Patient(ctx context.Context, id uuid.UUID) (*Party, error) {
	p, ok := d.parties[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

func (d *fakeDirectory) Provider(ctx context.Context, id uuid.UUID) (*Party, error) {
	p, ok := d.parties[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return p, nil
}

// recordingDispatcher captures dispatched events for assertions.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	Type string
	Ev   notify.Event
}

func (r *recordingDispatcher) record(t string, ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Type: t, Ev: ev})
}

func (r *recordingDispatcher) AppointmentCreated(ctx context.Context, ev notify.Event) {
	r.record(notify.EventCreated, ev)
}

func (r *recordingDispatcher) AppointmentConfirmed(ctx context.Context, ev notify.Event) {
	r.record(notify.EventConfirmed, ev)
}

func (r *recordingDispatcher) AppointmentCancelled(ctx context.Context, ev notify.Event) {
	r.record(notify.EventCancelled, ev)
}

func (r *recordingDispatcher) AppointmentRescheduled(ctx context.Context, ev notify.Event) {
	r.record(notify.EventRescheduled, ev)
}

func (r *recordingDispatcher) AppointmentRejected(ctx context.Context, ev notify.Event) {
	r.record(notify.EventRejected, ev)
}

func (r *recordingDispatcher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// passLocker runs the critical section without locking: the store's
// conditional updates must carry the mutual-exclusion guarantee alone.
type passLocker struct{}

func (passLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Fixture helpers

type fixture struct {
	store      *fakeStore
	dir        *fakeDirectory
	dispatcher *recordingDispatcher
	coord      *Coordinator
	engine     *TransitionEngine

	patient  *Party
	provider *Party
	slot     *Slot
}

func newFixture() *fixture {
	store := newFakeStore()
	patient := &Party{ID: uuid.New(), Name: "Ana Souza", Contact: "ana@example.com", Active: true}
	specialty := "Cardiology"
	provider := &Party{ID: uuid.New(), Name: "Dr. Lima", Contact: "lima@example.com", Specialty: &specialty, Active: true}
	dir := newFakeDirectory(patient, provider)
	dispatcher := &recordingDispatcher{}
	logger := zap.NewNop()

	slot := &Slot{
		ID:         uuid.New(),
		ProviderID: provider.ID,
		StartTime:  time.Now().Add(24 * time.Hour),
		EndTime:    time.Now().Add(24*time.Hour + 30*time.Minute),
		Status:     SlotAvailable,
	}
	store.slots[slot.ID] = slot

	return &fixture{
		store:      store,
		dir:        dir,
		dispatcher: dispatcher,
		coord:      NewCoordinator(store, dir, passLocker{}, dispatcher, logger),
		engine:     NewTransitionEngine(store, dir, dispatcher, logger),
		patient:    patient,
		provider:   provider,
		slot:       slot,
	}
}

func (fx *fixture) addSlot(providerID uuid.UUID, status SlotStatus) *Slot {
	s := &Slot{
		ID:         uuid.New(),
		ProviderID: providerID,
		StartTime:  time.Now().Add(48 * time.Hour),
		EndTime:    time.Now().Add(48*time.Hour + 30*time.Minute),
		Status:     status,
	}
	fx.store.mu.Lock()
	fx.store.slots[s.ID] = s
	fx.store.mu.Unlock()
	return s
}

func (fx *fixture) mustBook(t interface{ Fatalf(string, ...any) }) *Appointment {
	appt, err := fx.coord.Book(context.Background(), BookRequest{
		PatientID:  fx.patient.ID,
		ProviderID: fx.provider.ID,
		SlotID:     fx.slot.ID,
		Reason:     "checkup",
		Actor:      Actor{ID: fx.patient.ID},
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	return appt
}

func (fx *fixture) slotStatus(id uuid.UUID) SlotStatus {
	fx.store.mu.Lock()
	defer fx.store.mu.Unlock()
	return fx.store.slots[id].Status
}

func (fx *fixture) apptStatus(id uuid.UUID) AppointmentStatus {
	fx.store.mu.Lock()
	defer fx.store.mu.Unlock()
	return fx.store.appts[id].Status
}
