package service

import (
	"context"
	"time"

	"visitas/internal/apperr"
	"visitas/internal/database"
	"visitas/internal/models"
)

// Loaders resolve the relations of a typed entity for an actor. Each uses the
// relation already attached to the entity when there is one and loads it
// through the actor's read filter otherwise. A reference to a missing record
// is reported as NOT_FOUND; an unset optional reference, or one the actor may
// not read, yields nil.
type Loaders struct {
	st  *stores
	now func() time.Time
}

// related reads the record id references through the actor's read filter
func related[T any](actor *models.User, entity models.EntityType, id int64,
	get func(int64) (*T, error), list func(database.Filter) ([]T, error)) (*T, error) {
	rows, err := visible(actor, entity, database.Eq("id", id), list)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return &rows[0], nil
	}
	rec, err := get(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperr.NotFound(string(entity), id)
	}
	return nil, nil
}

func (l *Loaders) family(ctx context.Context, actor *models.User, id int64) (*models.Family, error) {
	return related(actor, models.EntityFamily, id,
		func(id int64) (*models.Family, error) { return l.st.families.GetByID(ctx, id) },
		func(f database.Filter) ([]models.Family, error) { return l.st.families.List(ctx, f, database.Sort{}) })
}

func (l *Loaders) barrio(ctx context.Context, actor *models.User, id int64) (*models.Barrio, error) {
	return related(actor, models.EntityBarrio, id,
		func(id int64) (*models.Barrio, error) { return l.st.barrios.GetByID(ctx, id) },
		func(f database.Filter) ([]models.Barrio, error) { return l.st.barrios.List(ctx, f, database.Sort{}) })
}

// FamilyOf returns the family a visit was made to
func (l *Loaders) FamilyOf(ctx context.Context, actor *models.User, v *models.Visit) (*models.Family, error) {
	if v.Family != nil {
		return v.Family, nil
	}
	return l.family(ctx, actor, v.FamilyID)
}

// HouseholdOf returns the family a member belongs to, or nil
func (l *Loaders) HouseholdOf(ctx context.Context, actor *models.User, m *models.Member) (*models.Family, error) {
	if m.Family != nil || m.FamilyID == nil {
		return m.Family, nil
	}
	return l.family(ctx, actor, *m.FamilyID)
}

// NucleoOf returns the nucleo a family is assigned to, or nil
func (l *Loaders) NucleoOf(ctx context.Context, actor *models.User, f *models.Family) (*models.Nucleo, error) {
	if f.Nucleo != nil || f.NucleoID == nil {
		return f.Nucleo, nil
	}
	return related(actor, models.EntityNucleo, *f.NucleoID,
		func(id int64) (*models.Nucleo, error) { return l.st.nucleos.GetByID(ctx, id) },
		func(filter database.Filter) ([]models.Nucleo, error) { return l.st.nucleos.List(ctx, filter, database.Sort{}) })
}

// BarrioOfFamily returns the barrio a family is assigned to, or nil
func (l *Loaders) BarrioOfFamily(ctx context.Context, actor *models.User, f *models.Family) (*models.Barrio, error) {
	if f.Barrio != nil || f.BarrioID == nil {
		return f.Barrio, nil
	}
	return l.barrio(ctx, actor, *f.BarrioID)
}

// BarrioOf returns the barrio a nucleo belongs to
func (l *Loaders) BarrioOf(ctx context.Context, actor *models.User, n *models.Nucleo) (*models.Barrio, error) {
	if n.Barrio != nil {
		return n.Barrio, nil
	}
	return l.barrio(ctx, actor, n.BarrioID)
}

// AuthorOf returns the user who recorded a visit
func (l *Loaders) AuthorOf(ctx context.Context, actor *models.User, v *models.Visit) (*models.User, error) {
	if v.Author != nil {
		return v.Author, nil
	}
	return related(actor, models.EntityUser, v.AuthorID,
		func(id int64) (*models.User, error) { return l.st.users.GetByID(ctx, id) },
		func(f database.Filter) ([]models.User, error) { return l.st.users.List(ctx, f, database.Sort{}) })
}

// VisitorsOf returns the users who took part in a visit that the actor may
// read, in id order
func (l *Loaders) VisitorsOf(ctx context.Context, actor *models.User, v *models.Visit) ([]models.User, error) {
	if v.Visitors != nil {
		return v.Visitors, nil
	}
	if len(v.VisitorIDs) == 0 {
		return []models.User{}, nil
	}
	all, err := l.st.users.List(ctx, database.In("id", v.VisitorIDs...), database.Sort{})
	if err != nil {
		return nil, err
	}
	exists := make(map[int64]bool, len(all))
	for _, u := range all {
		exists[u.ID] = true
	}
	for _, id := range v.VisitorIDs {
		if !exists[id] {
			return nil, apperr.NotFound(string(models.EntityUser), id)
		}
	}

	users, err := visible(actor, models.EntityUser, database.In("id", v.VisitorIDs...), func(f database.Filter) ([]models.User, error) {
		return l.st.users.List(ctx, f, database.Sort{})
	})
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]models.User, 0, len(users))
	for _, id := range v.VisitorIDs {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// MembersOf returns the active members of a family the actor may read, with
// their derived ages
func (l *Loaders) MembersOf(ctx context.Context, actor *models.User, f *models.Family) ([]models.Member, error) {
	if f.Members != nil {
		return f.Members, nil
	}
	members, err := visible(actor, models.EntityMember, database.And(
		database.Eq("family_id", f.ID),
		database.Eq("active", true),
	), func(filter database.Filter) ([]models.Member, error) {
		return l.st.members.List(ctx, filter, database.Sort{})
	})
	if err != nil {
		return nil, err
	}
	now := l.now()
	for i := range members {
		withAge(&members[i], now)
	}
	return members, nil
}
