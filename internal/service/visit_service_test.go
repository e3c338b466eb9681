package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitas/internal/apperr"
	"visitas/internal/models"
)

func TestVisitStatusIsDerived(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	f := e.family(t, "Gómez", &e.nucleoA.ID)
	talked := &models.VisitActivities{Conversation: true}

	tests := []struct {
		name       string
		visitType  models.VisitType
		date       Date
		activities *models.VisitActivities
		want       models.VisitStatus
	}{
		{"past with activity", models.VisitTypeFirst, NewDate(2025, 6, 1), talked, models.VisitStatusCompleted},
		{"today with activity", models.VisitTypeFollowUp, NewDate(2025, 6, 15), talked, models.VisitStatusCompleted},
		{"past without activity", models.VisitTypeFollowUp, NewDate(2025, 6, 1), nil, models.VisitStatusScheduled},
		{"future with activity", models.VisitTypeFirst, NewDate(2025, 7, 1), talked, models.VisitStatusScheduled},
		{"could not be done", models.VisitTypeCouldNotBeDone, NewDate(2025, 6, 1), talked, models.VisitStatusCancelled},
		{"could not be done in future", models.VisitTypeCouldNotBeDone, NewDate(2025, 7, 1), nil, models.VisitStatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := e.svc.Visits.Create(ctx, e.admin, VisitInput{
				FamilyID:   &f.ID,
				VisitDate:  &tt.date,
				Type:       &tt.visitType,
				Activities: tt.activities,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Status)
		})
	}
}

func TestVisitStatusFollowsUpdates(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	f := e.family(t, "Gómez", &e.nucleoA.ID)
	date := NewDate(2025, 6, 10)
	first := models.VisitTypeFirst

	v, err := e.svc.Visits.Create(ctx, e.admin, VisitInput{FamilyID: &f.ID, VisitDate: &date, Type: &first})
	require.NoError(t, err)
	require.Equal(t, models.VisitStatusScheduled, v.Status)

	v, err = e.svc.Visits.Update(ctx, e.admin, v.ID, VisitInput{Activities: &models.VisitActivities{Prayer: true}})
	require.NoError(t, err)
	assert.Equal(t, models.VisitStatusCompleted, v.Status)

	cancelled := models.VisitTypeCouldNotBeDone
	v, err = e.svc.Visits.Update(ctx, e.admin, v.ID, VisitInput{Type: &cancelled})
	require.NoError(t, err)
	assert.Equal(t, models.VisitStatusCancelled, v.Status)

	v, err = e.svc.Visits.Update(ctx, e.admin, v.ID, VisitInput{Notes: ptr("llamar de nuevo")})
	require.NoError(t, err)
	assert.Equal(t, models.VisitStatusCancelled, v.Status)
}

func TestVisitorsDefaultToAuthor(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	f := e.family(t, "Gómez", &e.nucleoA.ID)
	date := NewDate(2025, 6, 10)
	first := models.VisitTypeFirst

	v, err := e.svc.Visits.Create(ctx, e.collaborator, VisitInput{FamilyID: &f.ID, VisitDate: &date, Type: &first})
	require.NoError(t, err)
	assert.Equal(t, []int64{e.collaborator.ID}, v.VisitorIDs)

	got, err := e.svc.Visits.Get(ctx, e.admin, v.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Author)
	assert.Equal(t, e.collaborator.ID, got.Author.ID)
	require.Len(t, got.Visitors, 1)
	assert.Equal(t, e.collaborator.ID, got.Visitors[0].ID)
	require.NotNil(t, got.Family)
	assert.Equal(t, "Gómez", got.Family.Name)
}

func TestVisitInputErrors(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	f := e.family(t, "Gómez", &e.nucleoA.ID)
	other := e.family(t, "Other", &e.nucleoB.ID)
	date := NewDate(2025, 6, 10)
	first := models.VisitTypeFirst
	bogus := models.VisitType("social_call")

	tests := []struct {
		name  string
		actor *models.User
		in    VisitInput
		want  apperr.Kind
	}{
		{"missing family", e.admin, VisitInput{VisitDate: &date, Type: &first}, apperr.KindBadRequest},
		{"missing date", e.admin, VisitInput{FamilyID: &f.ID, Type: &first}, apperr.KindBadRequest},
		{"missing type", e.admin, VisitInput{FamilyID: &f.ID, VisitDate: &date}, apperr.KindBadRequest},
		{"unknown type", e.admin, VisitInput{FamilyID: &f.ID, VisitDate: &date, Type: &bogus}, apperr.KindBadRequest},
		{"bad time", e.admin, VisitInput{FamilyID: &f.ID, VisitDate: &date, Type: &first, VisitTime: ptr("25:99")}, apperr.KindBadRequest},
		{"unknown visitor", e.admin, VisitInput{FamilyID: &f.ID, VisitDate: &date, Type: &first, VisitorIDs: []int64{9999}}, apperr.KindBadRequest},
		{"collaborator outside nucleo", e.collaborator, VisitInput{FamilyID: &other.ID, VisitDate: &date, Type: &first}, apperr.KindForbidden},
		{"anonymous", nil, VisitInput{FamilyID: &f.ID, VisitDate: &date, Type: &first}, apperr.KindUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Visits.Create(ctx, tt.actor, tt.in)
			assert.Equal(t, tt.want, apperr.KindOf(err))
		})
	}
}

func TestVisitorRole(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	f := e.family(t, "Gómez", &e.nucleoA.ID)
	date := NewDate(2025, 6, 10)
	first := models.VisitTypeFirst

	v, err := e.svc.Visits.Create(ctx, e.visitor, VisitInput{FamilyID: &f.ID, VisitDate: &date, Type: &first})
	require.NoError(t, err)

	visits, err := e.svc.Visits.List(ctx, e.visitor, VisitQuery{})
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.Equal(t, v.ID, visits[0].ID)

	_, err = e.svc.Visits.Update(ctx, e.visitor, v.ID, VisitInput{Notes: ptr("x")})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	families, err := e.svc.Families.List(ctx, e.visitor, FamilyQuery{})
	require.NoError(t, err)
	assert.Empty(t, families)
}

func TestVisitListFilters(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	f := e.family(t, "Gómez", &e.nucleoA.ID)
	first := models.VisitTypeFirst
	for _, d := range []Date{NewDate(2025, 5, 1), NewDate(2025, 6, 1), NewDate(2025, 7, 1)} {
		_, err := e.svc.Visits.Create(ctx, e.admin, VisitInput{
			FamilyID: &f.ID, VisitDate: &d, Type: &first, Activities: &models.VisitActivities{Reading: true},
		})
		require.NoError(t, err)
	}

	from, to := NewDate(2025, 5, 15), NewDate(2025, 6, 30)
	visits, err := e.svc.Visits.List(ctx, e.admin, VisitQuery{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.Equal(t, time.June, visits[0].VisitDate.Month())

	completed := models.VisitStatusCompleted
	visits, err = e.svc.Visits.List(ctx, e.admin, VisitQuery{Status: &completed})
	require.NoError(t, err)
	assert.Len(t, visits, 2)
}

func TestVisitDelete(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	f := e.family(t, "Gómez", &e.nucleoA.ID)
	date := NewDate(2025, 6, 10)
	first := models.VisitTypeFirst
	v, err := e.svc.Visits.Create(ctx, e.collaborator, VisitInput{FamilyID: &f.ID, VisitDate: &date, Type: &first})
	require.NoError(t, err)

	require.NoError(t, e.svc.Visits.Delete(ctx, e.collaborator, v.ID))
	_, err = e.svc.Visits.Get(ctx, e.admin, v.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestVisitRelationsFollowReadScope(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	f, err := e.svc.Families.Create(ctx, e.admin, FamilyInput{
		Name:     ptr("Gómez"),
		NucleoID: &e.nucleoA.ID,
		Address:  ptr("Calle 5 #12"),
		Phone:    ptr("555-1234"),
	})
	require.NoError(t, err)
	date := NewDate(2025, 6, 10)
	first := models.VisitTypeFirst

	t.Run("visitor sees no family or users", func(t *testing.T) {
		v, err := e.svc.Visits.Create(ctx, e.visitor, VisitInput{FamilyID: &f.ID, VisitDate: &date, Type: &first})
		require.NoError(t, err)

		_, err = e.svc.Families.Get(ctx, e.visitor, f.ID)
		require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

		got, err := e.svc.Visits.Get(ctx, e.visitor, v.ID)
		require.NoError(t, err)
		assert.Equal(t, f.ID, got.FamilyID)
		assert.Nil(t, got.Family)
		assert.Nil(t, got.Author)
		assert.Empty(t, got.Visitors)
	})

	t.Run("collaborator sees only visitors of their nucleo", func(t *testing.T) {
		v, err := e.svc.Visits.Create(ctx, e.collaborator, VisitInput{
			FamilyID:   &f.ID,
			VisitDate:  &date,
			Type:       &first,
			VisitorIDs: []int64{e.collaborator.ID, e.admin.ID},
		})
		require.NoError(t, err)

		got, err := e.svc.Visits.Get(ctx, e.collaborator, v.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Family)
		assert.Equal(t, "Calle 5 #12", got.Family.Address)
		require.Len(t, got.Visitors, 1)
		assert.Equal(t, e.collaborator.ID, got.Visitors[0].ID)

		got, err = e.svc.Visits.Get(ctx, e.admin, v.ID)
		require.NoError(t, err)
		assert.Len(t, got.Visitors, 2)
	})
}
