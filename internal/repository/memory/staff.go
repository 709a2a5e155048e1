package memory

import (
	"context"
	"sort"

	"github.com/jwalitptl/hospital-api/internal/model"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

type doctorRepository repos

func (r doctorRepository) Create(ctx context.Context, d *model.Doctor) error {
	return r.run(ctx, func(st *state) error {
		sp, ok := st.specializations[d.SpecializationID]
		if !ok {
			return apperrors.InvalidInput("unknown specialization", nil)
		}
		d.ID = st.nextID("doctors")
		d.CreatedAt = r.now()
		d.Specialization = sp.Title
		st.doctors[d.ID] = *d
		return nil
	})
}

func (r doctorRepository) get(ctx context.Context, match func(model.Doctor) bool) (*model.Doctor, error) {
	var out model.Doctor
	err := r.run(ctx, func(st *state) error {
		for _, d := range st.doctors {
			if match(d) {
				out = d
				out.Specialization = st.specializations[d.SpecializationID].Title
				return nil
			}
		}
		return apperrors.NotFound("doctor", nil)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r doctorRepository) Get(ctx context.Context, id int64) (*model.Doctor, error) {
	return r.get(ctx, func(d model.Doctor) bool { return d.ID == id })
}

func (r doctorRepository) GetByUserID(ctx context.Context, userID int64) (*model.Doctor, error) {
	return r.get(ctx, func(d model.Doctor) bool { return d.UserID == userID })
}

func (r doctorRepository) UpdateProfile(ctx context.Context, d *model.Doctor) error {
	return r.run(ctx, func(st *state) error {
		existing, ok := st.doctors[d.ID]
		if !ok {
			return apperrors.NotFound("doctor", nil)
		}
		existing.Name = d.Name
		existing.Email = d.Email
		existing.ContactNo = d.ContactNo
		existing.Address = d.Address
		st.doctors[d.ID] = existing
		return nil
	})
}

func (r doctorRepository) ListBySpecialization(ctx context.Context, specializationID int64) ([]*model.DoctorSummary, error) {
	doctors := []*model.DoctorSummary{}
	err := r.run(ctx, func(st *state) error {
		for _, d := range st.doctors {
			if d.SpecializationID == specializationID {
				doctors = append(doctors, &model.DoctorSummary{ID: d.ID, Name: d.Name})
			}
		}
		return nil
	})
	sort.Slice(doctors, func(i, j int) bool {
		if doctors[i].Name != doctors[j].Name {
			return doctors[i].Name < doctors[j].Name
		}
		return doctors[i].ID < doctors[j].ID
	})
	return doctors, err
}

func (r doctorRepository) CreateSpecialization(ctx context.Context, spec *model.Specialization) error {
	return r.run(ctx, func(st *state) error {
		for _, s := range st.specializations {
			if s.Title == spec.Title {
				return apperrors.Conflict("specialization already exists", nil)
			}
		}
		spec.ID = st.nextID("specializations")
		st.specializations[spec.ID] = *spec
		return nil
	})
}

func (r doctorRepository) ListSpecializations(ctx context.Context) ([]*model.Specialization, error) {
	specs := []*model.Specialization{}
	err := r.run(ctx, func(st *state) error {
		for _, s := range st.specializations {
			s := s
			specs = append(specs, &s)
		}
		return nil
	})
	sort.Slice(specs, func(i, j int) bool { return specs[i].Title < specs[j].Title })
	return specs, err
}

type receptionistRepository repos

func (r receptionistRepository) Create(ctx context.Context, rec *model.Receptionist) error {
	return r.run(ctx, func(st *state) error {
		rec.ID = st.nextID("receptionists")
		rec.CreatedAt = r.now()
		st.receptionists[rec.ID] = *rec
		return nil
	})
}

func (r receptionistRepository) get(ctx context.Context, match func(model.Receptionist) bool) (*model.Receptionist, error) {
	var out model.Receptionist
	err := r.run(ctx, func(st *state) error {
		for _, rec := range st.receptionists {
			if match(rec) {
				out = rec
				return nil
			}
		}
		return apperrors.NotFound("receptionist", nil)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r receptionistRepository) Get(ctx context.Context, id int64) (*model.Receptionist, error) {
	return r.get(ctx, func(rec model.Receptionist) bool { return rec.ID == id })
}

func (r receptionistRepository) GetByUserID(ctx context.Context, userID int64) (*model.Receptionist, error) {
	return r.get(ctx, func(rec model.Receptionist) bool { return rec.UserID == userID })
}

type adminRepository repos

func (r adminRepository) Create(ctx context.Context, admin *model.Admin) error {
	return r.run(ctx, func(st *state) error {
		admin.ID = st.nextID("admins")
		admin.CreatedAt = r.now()
		st.admins[admin.ID] = *admin
		return nil
	})
}

func (r adminRepository) GetByUserID(ctx context.Context, userID int64) (*model.Admin, error) {
	var out model.Admin
	err := r.run(ctx, func(st *state) error {
		for _, a := range st.admins {
			if a.UserID == userID {
				out = a
				return nil
			}
		}
		return apperrors.NotFound("admin", nil)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type userRepository repos

func (r userRepository) Create(ctx context.Context, user *model.User) error {
	return r.run(ctx, func(st *state) error {
		for _, u := range st.users {
			if u.Username == user.Username {
				return apperrors.Conflict("username already taken", nil)
			}
		}
		user.ID = st.nextID("users")
		user.CreatedAt = r.now()
		st.users[user.ID] = *user
		return nil
	})
}

func (r userRepository) find(ctx context.Context, match func(model.User) bool) (*model.User, error) {
	var out model.User
	err := r.run(ctx, func(st *state) error {
		for _, u := range st.users {
			if match(u) {
				out = u
				return nil
			}
		}
		return apperrors.NotFound("user", nil)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r userRepository) Get(ctx context.Context, id int64) (*model.User, error) {
	return r.find(ctx, func(u model.User) bool { return u.ID == id })
}

func (r userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.find(ctx, func(u model.User) bool { return u.Username == username })
}

// Delete mirrors the SQL cascades: profile rows and a doctor's slots go with
// the user, confirmations lose their receptionist, and a doctor referenced by
// appointments blocks the delete.
func (r userRepository) Delete(ctx context.Context, id int64) error {
	return r.run(ctx, func(st *state) error {
		if _, ok := st.users[id]; !ok {
			return apperrors.NotFound("user", nil)
		}

		for did, d := range st.doctors {
			if d.UserID != id {
				continue
			}
			for _, a := range st.appointments {
				if a.DoctorID == did {
					return apperrors.Conflict("user is still referenced by appointments", nil)
				}
			}
			for sid, s := range st.slots {
				if s.DoctorID == did {
					delete(st.slots, sid)
				}
			}
			delete(st.doctors, did)
		}
		for rid, rec := range st.receptionists {
			if rec.UserID != id {
				continue
			}
			for aid, c := range st.confirmations {
				if c.ReceptionistID == rid {
					c.ReceptionistID = 0
					st.confirmations[aid] = c
				}
			}
			delete(st.receptionists, rid)
		}
		for aid, a := range st.admins {
			if a.UserID == id {
				delete(st.admins, aid)
			}
		}
		delete(st.users, id)
		return nil
	})
}

func (r userRepository) ListStaff(ctx context.Context) ([]*model.StaffMember, error) {
	staff := []*model.StaffMember{}
	err := r.run(ctx, func(st *state) error {
		for _, d := range st.doctors {
			staff = append(staff, &model.StaffMember{
				ID:             d.ID,
				Role:           model.RoleDoctor,
				Name:           d.Name,
				Email:          d.Email,
				Username:       st.users[d.UserID].Username,
				Specialization: st.specializations[d.SpecializationID].Title,
			})
		}
		for _, rec := range st.receptionists {
			staff = append(staff, &model.StaffMember{
				ID:       rec.ID,
				Role:     model.RoleReceptionist,
				Name:     rec.Name,
				Email:    rec.Email,
				Username: st.users[rec.UserID].Username,
			})
		}
		return nil
	})
	sort.Slice(staff, func(i, j int) bool {
		if staff[i].Role != staff[j].Role {
			return staff[i].Role < staff[j].Role
		}
		if staff[i].Name != staff[j].Name {
			return staff[i].Name < staff[j].Name
		}
		return staff[i].ID < staff[j].ID
	})
	return staff, err
}
