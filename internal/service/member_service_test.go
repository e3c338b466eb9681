package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitas/internal/apperr"
	"visitas/internal/repository"
)

func TestMemberAgeFromBirthDate(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	birth := NewDate(2000, time.June, 15)

	e.clock.Set(time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC))
	m, err := e.svc.Members.Create(ctx, e.admin, MemberInput{FirstName: ptr("Lucía"), BirthDate: &birth})
	require.NoError(t, err)
	require.NotNil(t, m.Age)
	assert.Equal(t, 24, *m.Age)

	e.clock.Set(time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC))
	got, err := e.svc.Members.Get(ctx, e.admin, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Age)
	assert.Equal(t, 25, *got.Age)
}

func TestMemberApproximateAgeGrows(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	m, err := e.svc.Members.Create(ctx, e.admin, MemberInput{FirstName: ptr("Jorge"), ApproxAge: ptr(30)})
	require.NoError(t, err)
	require.NotNil(t, m.ApproxAgeUpdatedAt)
	assert.Equal(t, 30, *m.Age)

	e.clock.Advance(366 * 24 * time.Hour)
	got, err := e.svc.Members.Get(ctx, e.admin, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 31, *got.Age)

	stampedAt := *got.ApproxAgeUpdatedAt
	same, err := e.svc.Members.Update(ctx, e.admin, m.ID, MemberInput{ApproxAge: ptr(30), Phone: ptr("555")})
	require.NoError(t, err)
	assert.True(t, stampedAt.Equal(*same.ApproxAgeUpdatedAt), "unchanged age keeps its stamp")

	changed, err := e.svc.Members.Update(ctx, e.admin, m.ID, MemberInput{ApproxAge: ptr(40)})
	require.NoError(t, err)
	assert.True(t, changed.ApproxAgeUpdatedAt.After(stampedAt))
	assert.Equal(t, 40, *changed.Age)
}

func TestMemberWithoutAge(t *testing.T) {
	e := setup(t)
	m := e.member(t, nil, "Ana")
	assert.Nil(t, m.Age)
}

func TestMemberBirthDateIsImmutable(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	birth := NewDate(1990, time.March, 2)
	m, err := e.svc.Members.Create(ctx, e.admin, MemberInput{FirstName: ptr("Rosa"), BirthDate: &birth})
	require.NoError(t, err)

	_, err = e.svc.Members.Update(ctx, e.admin, m.ID, MemberInput{BirthDate: &birth, LastName: ptr("Díaz")})
	require.NoError(t, err)

	other := NewDate(1991, time.March, 2)
	_, err = e.svc.Members.Update(ctx, e.admin, m.ID, MemberInput{BirthDate: &other})
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestMemberValidation(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	future := NewDate(2030, time.January, 1)

	tests := []struct {
		name string
		in   MemberInput
	}{
		{name: "missing first name", in: MemberInput{}},
		{name: "blank first name", in: MemberInput{FirstName: ptr("  ")}},
		{name: "bad email", in: MemberInput{FirstName: ptr("A"), Email: ptr("nope")}},
		{name: "future birth date", in: MemberInput{FirstName: ptr("A"), BirthDate: &future}},
		{name: "negative age", in: MemberInput{FirstName: ptr("A"), ApproxAge: ptr(-1)}},
		{name: "unknown family", in: MemberInput{FirstName: ptr("A"), FamilyID: ptr(int64(9999))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Members.Create(ctx, e.admin, tt.in)
			assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
		})
	}
}

func TestFamilyMemberCountFollowsMembers(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	first := e.family(t, "Gómez", &e.nucleoA.ID)
	second := e.family(t, "Pérez", &e.nucleoA.ID)

	luis := e.member(t, &first.ID, "Luis")
	e.member(t, &first.ID, "Marta")

	count := func(id int64) int {
		t.Helper()
		f, err := e.svc.Families.Get(ctx, e.admin, id)
		require.NoError(t, err)
		return f.MemberCount
	}
	assert.Equal(t, 2, count(first.ID))
	assert.Equal(t, 0, count(second.ID))

	_, err := e.svc.Members.Update(ctx, e.admin, luis.ID, MemberInput{FamilyID: &second.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, count(first.ID))
	assert.Equal(t, 1, count(second.ID))

	require.NoError(t, e.svc.Members.Delete(ctx, e.admin, luis.ID))
	assert.Equal(t, 0, count(second.ID))

	f, err := e.svc.Families.Get(ctx, e.admin, first.ID)
	require.NoError(t, err)
	require.Len(t, f.Members, 1)
	assert.Equal(t, "Marta", f.Members[0].FirstName)
}

func TestLinkedMemberCannotBeDeleted(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	m := e.member(t, nil, "Carmen")

	at := e.clock.Now()
	require.NoError(t, repository.NewMemberRepository(e.db).SetUser(ctx, m.ID, &e.collaborator.ID, at))
	require.NoError(t, repository.NewUserRepository(e.db).SetMember(ctx, e.collaborator.ID, &m.ID, at))

	err := e.svc.Members.Delete(ctx, e.admin, m.ID)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	unlinked, err := e.svc.Members.UnlinkUser(ctx, e.admin, m.ID)
	require.NoError(t, err)
	assert.Nil(t, unlinked.UserID)

	u, err := repository.NewUserRepository(e.db).GetByID(ctx, e.collaborator.ID)
	require.NoError(t, err)
	assert.Nil(t, u.MemberID)

	require.NoError(t, e.svc.Members.Delete(ctx, e.admin, m.ID))
	_, err = e.svc.Members.UnlinkUser(ctx, e.admin, m.ID)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestCollaboratorMembersAreScoped(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	own := e.family(t, "Own", &e.nucleoA.ID)
	other := e.family(t, "Other", &e.nucleoB.ID)
	mine := e.member(t, &own.ID, "Mine")
	theirs := e.member(t, &other.ID, "Theirs")

	members, err := e.svc.Members.List(ctx, e.collaborator, MemberQuery{})
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, mine.ID, members[0].ID)

	_, err = e.svc.Members.Update(ctx, e.collaborator, theirs.ID, MemberInput{Phone: ptr("1")})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = e.svc.Members.Create(ctx, e.collaborator, MemberInput{FirstName: ptr("New"), FamilyID: &own.ID})
	assert.NoError(t, err)
	_, err = e.svc.Members.Create(ctx, e.collaborator, MemberInput{FirstName: ptr("New"), FamilyID: &other.ID})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestMemberGetIncludesFamily(t *testing.T) {
	e := setup(t)
	f := e.family(t, "Gómez", &e.nucleoA.ID)
	m := e.member(t, &f.ID, "Luis")

	got, err := e.svc.Members.Get(context.Background(), e.admin, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Family)
	assert.Equal(t, "Gómez", got.Family.Name)
}
