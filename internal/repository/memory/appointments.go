package memory

import (
	"context"
	"sort"

	"github.com/jwalitptl/hospital-api/internal/model"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/reference"
)

type patientRepository repos

func (r patientRepository) Get(ctx context.Context, id int64) (*model.Patient, error) {
	var out model.Patient
	err := r.run(ctx, func(st *state) error {
		p, ok := st.patients[id]
		if !ok {
			return apperrors.NotFound("patient", nil)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r patientRepository) GetByEmail(ctx context.Context, email string) (*model.Patient, error) {
	var out model.Patient
	err := r.run(ctx, func(st *state) error {
		p, ok := findPatient(st, email)
		if !ok {
			return apperrors.NotFound("patient", nil)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func findPatient(st *state, email string) (model.Patient, bool) {
	for _, p := range st.patients {
		if p.Email == email {
			return p, true
		}
	}
	return model.Patient{}, false
}

func (r patientRepository) FindOrCreate(ctx context.Context, p *model.Patient) (bool, error) {
	var created bool
	err := r.run(ctx, func(st *state) error {
		if existing, ok := findPatient(st, p.Email); ok {
			*p = existing
			return nil
		}
		p.ID = st.nextID("patients")
		p.CreatedAt = r.now()
		st.patients[p.ID] = *p
		created = true
		return nil
	})
	return created, err
}

type slotRepository repos

func (r slotRepository) Get(ctx context.Context, id int64) (*model.Slot, error) {
	var out model.Slot
	err := r.run(ctx, func(st *state) error {
		s, ok := st.slots[id]
		if !ok {
			return apperrors.NotFound("slot", nil)
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func findSlot(st *state, doctorID int64, date, time string) (model.Slot, bool) {
	for _, s := range st.slots {
		if s.DoctorID == doctorID && s.Date == date && s.Time == time {
			return s, true
		}
	}
	return model.Slot{}, false
}

func (r slotRepository) Exists(ctx context.Context, doctorID int64, date, time string) (bool, error) {
	var exists bool
	err := r.run(ctx, func(st *state) error {
		_, exists = findSlot(st, doctorID, date, time)
		return nil
	})
	return exists, err
}

func (r slotRepository) Create(ctx context.Context, slot *model.Slot) error {
	return r.run(ctx, func(st *state) error {
		if _, ok := st.doctors[slot.DoctorID]; !ok {
			return apperrors.NotFound("doctor", nil)
		}
		if _, ok := findSlot(st, slot.DoctorID, slot.Date, slot.Time); ok {
			return apperrors.Conflict("slot already exists", nil)
		}
		slot.ID = st.nextID("slots")
		slot.CreatedAt = r.now()
		slot.AppointmentID = nil
		st.slots[slot.ID] = *slot
		return nil
	})
}

func sortSlots(slots []*model.Slot) {
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Date != slots[j].Date {
			return slots[i].Date < slots[j].Date
		}
		return slots[i].Time < slots[j].Time
	})
}

func (r slotRepository) ListAvailable(ctx context.Context, doctorID int64, date string) ([]string, error) {
	times := []string{}
	err := r.run(ctx, func(st *state) error {
		for _, s := range st.slots {
			if s.DoctorID == doctorID && s.Date == date && !s.Booked() {
				times = append(times, s.Time)
			}
		}
		return nil
	})
	sort.Strings(times)
	return times, err
}

func (r slotRepository) ListByDoctor(ctx context.Context, doctorID int64, fromDate string) ([]*model.Slot, error) {
	slots := []*model.Slot{}
	err := r.run(ctx, func(st *state) error {
		for _, s := range st.slots {
			if s.DoctorID == doctorID && s.Date >= fromDate {
				s := s
				slots = append(slots, &s)
			}
		}
		return nil
	})
	sortSlots(slots)
	return slots, err
}

func (r slotRepository) Bind(ctx context.Context, doctorID int64, date, time string, appointmentID int64) (*model.Slot, error) {
	var out model.Slot
	err := r.run(ctx, func(st *state) error {
		s, ok := findSlot(st, doctorID, date, time)
		if !ok || s.Booked() {
			return apperrors.SlotUnavailable("the requested slot is not available")
		}
		id := appointmentID
		s.AppointmentID = &id
		st.slots[s.ID] = s
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r slotRepository) DeleteUnbound(ctx context.Context, slotID, doctorID int64) error {
	return r.run(ctx, func(st *state) error {
		s, ok := st.slots[slotID]
		if !ok || s.DoctorID != doctorID {
			return apperrors.NotFound("slot", nil)
		}
		if s.Booked() {
			return apperrors.Conflict("slot is booked and cannot be deleted", nil)
		}
		delete(st.slots, slotID)
		return nil
	})
}

type tokenRepository repos

// LockDay is a no-op: transactions already run one at a time.
func (r tokenRepository) LockDay(ctx context.Context, doctorID int64, date string) error {
	return r.run(ctx, func(*state) error { return nil })
}

func (r tokenRepository) MaxForDay(ctx context.Context, doctorID int64, date string) (int, error) {
	var n int
	err := r.run(ctx, func(st *state) error {
		for _, t := range st.tokens {
			if t.DoctorID == doctorID && t.Date == date && t.TokenNo > n {
				n = t.TokenNo
			}
		}
		return nil
	})
	return n, err
}

func (r tokenRepository) Create(ctx context.Context, token *model.Token) error {
	return r.run(ctx, func(st *state) error {
		if _, ok := st.appointments[token.AppointmentID]; !ok {
			return apperrors.NotFound("appointment", nil)
		}
		for _, t := range st.tokens {
			if t.DoctorID == token.DoctorID && t.Date == token.Date && t.TokenNo == token.TokenNo {
				return apperrors.Conflict("token number already issued", nil)
			}
		}
		if _, ok := st.tokens[token.AppointmentID]; ok {
			return apperrors.Conflict("appointment already has a token", nil)
		}
		st.tokens[token.AppointmentID] = *token
		return nil
	})
}

type appointmentRepository repos

func (r appointmentRepository) Create(ctx context.Context, a *model.Appointment) error {
	return r.run(ctx, func(st *state) error {
		if _, ok := st.doctors[a.DoctorID]; !ok {
			return apperrors.NotFound("doctor or patient", nil)
		}
		if _, ok := st.patients[a.PatientID]; !ok {
			return apperrors.NotFound("doctor or patient", nil)
		}
		a.ID = st.nextID("appointments")
		a.CreatedAt = r.now()
		st.appointments[a.ID] = *a
		return nil
	})
}

func (r appointmentRepository) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	var out model.Appointment
	err := r.run(ctx, func(st *state) error {
		a, ok := st.appointments[id]
		if !ok {
			return apperrors.NotFound("appointment", nil)
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// view joins an appointment with its patient, doctor, slot, token and
// confirmation. ok is false while any of the inner-joined rows is missing.
func view(st *state, a model.Appointment) (*model.AppointmentView, bool) {
	p, ok := st.patients[a.PatientID]
	if !ok {
		return nil, false
	}
	d, ok := st.doctors[a.DoctorID]
	if !ok {
		return nil, false
	}
	sp, ok := st.specializations[d.SpecializationID]
	if !ok {
		return nil, false
	}
	t, ok := st.tokens[a.ID]
	if !ok {
		return nil, false
	}
	var slot *model.Slot
	for _, s := range st.slots {
		if s.AppointmentID != nil && *s.AppointmentID == a.ID {
			s := s
			slot = &s
			break
		}
	}
	if slot == nil {
		return nil, false
	}

	v := &model.AppointmentView{
		AppointmentID:  a.ID,
		Reason:         a.Reason,
		Completed:      a.Completed,
		Confirmed:      a.Confirmed,
		PatientID:      p.ID,
		PatientName:    p.Name,
		PatientContact: p.ContactNo,
		DoctorID:       d.ID,
		DoctorName:     d.Name,
		Specialization: sp.Title,
		SlotID:         slot.ID,
		Date:           slot.Date,
		Time:           slot.Time,
		TokenNo:        t.TokenNo,
	}
	if c, ok := st.confirmations[a.ID]; ok {
		if rec, ok := st.receptionists[c.ReceptionistID]; ok {
			name := rec.Name
			v.ReceptionistName = &name
		}
	}
	return v, true
}

func (r appointmentRepository) FindByReference(ctx context.Context, ref reference.Tuple) (*model.AppointmentView, error) {
	var out *model.AppointmentView
	err := r.run(ctx, func(st *state) error {
		s, ok := st.slots[ref.SlotID]
		if !ok || s.AppointmentID == nil {
			return apperrors.NotFound("appointment", nil)
		}
		a, ok := st.appointments[*s.AppointmentID]
		if !ok || a.PatientID != ref.PatientID || a.DoctorID != ref.DoctorID {
			return apperrors.NotFound("appointment", nil)
		}
		v, ok := view(st, a)
		if !ok || v.TokenNo != ref.TokenNo {
			return apperrors.NotFound("appointment", nil)
		}
		out = v
		return nil
	})
	return out, err
}

func (r appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentView, error) {
	if filters == nil {
		filters = &model.AppointmentFilters{}
	}
	views := []*model.AppointmentView{}
	err := r.run(ctx, func(st *state) error {
		for _, a := range st.appointments {
			if filters.DoctorID > 0 && a.DoctorID != filters.DoctorID {
				continue
			}
			if filters.ConfirmedOnly && !a.Confirmed {
				continue
			}
			if filters.Status == model.VisitStatusPending && a.Completed {
				continue
			}
			if filters.Status == model.VisitStatusCompleted && !a.Completed {
				continue
			}
			v, ok := view(st, a)
			if !ok {
				continue
			}
			if filters.Date != "" && v.Date != filters.Date {
				continue
			}
			views = append(views, v)
		}
		return nil
	})

	sort.Slice(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.Confirmed != b.Confirmed {
			return !a.Confirmed
		}
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.AppointmentID < b.AppointmentID
	})
	return views, err
}

func (r appointmentRepository) CountByDoctor(ctx context.Context, doctorID int64) (int, error) {
	var n int
	err := r.run(ctx, func(st *state) error {
		for _, a := range st.appointments {
			if a.DoctorID == doctorID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r appointmentRepository) SetCompleted(ctx context.Context, id, doctorID int64, completed bool) error {
	return r.run(ctx, func(st *state) error {
		a, ok := st.appointments[id]
		if !ok || a.DoctorID != doctorID {
			return apperrors.NotFound("appointment", nil)
		}
		a.Completed = completed
		st.appointments[id] = a
		return nil
	})
}

func (r appointmentRepository) MarkConfirmed(ctx context.Context, id int64) (bool, error) {
	var changed bool
	err := r.run(ctx, func(st *state) error {
		a, ok := st.appointments[id]
		if !ok {
			return apperrors.NotFound("appointment", nil)
		}
		changed = !a.Confirmed
		a.Confirmed = true
		st.appointments[id] = a
		return nil
	})
	return changed, err
}

type confirmationRepository repos

func (r confirmationRepository) Get(ctx context.Context, appointmentID int64) (*model.Confirmation, error) {
	var out model.Confirmation
	err := r.run(ctx, func(st *state) error {
		c, ok := st.confirmations[appointmentID]
		if !ok {
			return apperrors.NotFound("confirmation", nil)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r confirmationRepository) Upsert(ctx context.Context, c *model.Confirmation) error {
	return r.run(ctx, func(st *state) error {
		if existing, ok := st.confirmations[c.AppointmentID]; ok {
			existing.Confirmed = true
			st.confirmations[c.AppointmentID] = existing
			*c = existing
			return nil
		}
		if _, ok := st.appointments[c.AppointmentID]; !ok {
			return apperrors.NotFound("appointment or receptionist", nil)
		}
		if _, ok := st.receptionists[c.ReceptionistID]; !ok {
			return apperrors.NotFound("appointment or receptionist", nil)
		}
		c.Confirmed = true
		if c.ConfirmedAt.IsZero() {
			c.ConfirmedAt = r.now()
		}
		st.confirmations[c.AppointmentID] = *c
		return nil
	})
}
