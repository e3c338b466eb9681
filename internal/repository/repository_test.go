package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitas/internal/concurrency"
	"visitas/internal/database"
	"visitas/internal/database/dbtest"
	"visitas/internal/models"
	"visitas/internal/permissions"
)

var stamp = time.Date(2025, 6, 1, 10, 30, 15, 250000000, time.UTC)

type fixture struct {
	db          *database.DB
	communityID int64
	barrioID    int64
	nucleoA     int64
	nucleoB     int64
	userID      int64
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := dbtest.Open(t)

	community := &models.Community{Name: "San José", CreatedAt: stamp}
	require.NoError(t, NewCommunityRepository(db).Create(ctx, community))

	barrio := &models.Barrio{CommunityID: community.ID, Name: "Centro", Active: true, CreatedAt: stamp, UpdatedAt: stamp}
	require.NoError(t, NewBarrioRepository(db).Create(ctx, barrio))

	nucleos := NewNucleoRepository(db)
	a := &models.Nucleo{CommunityID: community.ID, BarrioID: barrio.ID, Name: "A", Active: true, CreatedAt: stamp, UpdatedAt: stamp}
	b := &models.Nucleo{CommunityID: community.ID, BarrioID: barrio.ID, Name: "B", Active: true, CreatedAt: stamp, UpdatedAt: stamp}
	require.NoError(t, nucleos.Create(ctx, a))
	require.NoError(t, nucleos.Create(ctx, b))

	user := &models.User{CommunityID: community.ID, Email: "Ana@Example.com", PasswordHash: "x", Name: "Ana", Role: models.RoleAdmin, CreatedAt: stamp, UpdatedAt: stamp}
	require.NoError(t, NewUserRepository(db).Create(ctx, user))

	return &fixture{db: db, communityID: community.ID, barrioID: barrio.ID, nucleoA: a.ID, nucleoB: b.ID, userID: user.ID}
}

func (f *fixture) family(t *testing.T, name string, nucleoID *int64) *models.Family {
	t.Helper()
	fam := &models.Family{CommunityID: f.communityID, BarrioID: &f.barrioID, NucleoID: nucleoID, Name: name, Active: true, CreatedAt: stamp, UpdatedAt: stamp}
	require.NoError(t, NewFamilyRepository(f.db).Create(context.Background(), fam))
	return fam
}

func TestFamilyRoundTripKeepsVersion(t *testing.T) {
	f := setup(t)
	created := f.family(t, "Gómez", &f.nucleoA)

	got, err := NewFamilyRepository(f.db).GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "Gómez", got.Name)
	assert.Equal(t, f.nucleoA, *got.NucleoID)
	assert.Equal(t, concurrency.VersionToken(stamp), concurrency.VersionToken(got.UpdatedAt))
}

func TestFamilyGetMissingReturnsNil(t *testing.T) {
	f := setup(t)
	got, err := NewFamilyRepository(f.db).GetByID(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCollaboratorFamilyFilter(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	own1 := f.family(t, "Own One", &f.nucleoA)
	own2 := f.family(t, "Own Two", &f.nucleoA)
	f.family(t, "Other", &f.nucleoB)
	f.family(t, "Unassigned", nil)

	collaborator := permissions.Profile{UserID: 9, CommunityID: f.communityID, Role: models.RoleCollaborator, NucleoID: &f.nucleoA}
	families, err := NewFamilyRepository(f.db).List(ctx, permissions.ReadFilter(collaborator, models.EntityFamily), database.Sort{})
	require.NoError(t, err)

	var ids []int64
	for _, fam := range families {
		ids = append(ids, fam.ID)
	}
	assert.ElementsMatch(t, []int64{own1.ID, own2.ID}, ids)
}

func TestRecountMembers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	fam := f.family(t, "Pérez", &f.nucleoA)
	members := NewMemberRepository(f.db)

	for i, name := range []string{"Luis", "Marta", "Pedro"} {
		m := &models.Member{CommunityID: f.communityID, FamilyID: &fam.ID, FirstName: name, Active: i < 2, CreatedAt: stamp, UpdatedAt: stamp}
		require.NoError(t, members.Create(ctx, m))
	}

	count, err := NewFamilyRepository(f.db).RecountMembers(ctx, fam.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := NewFamilyRepository(f.db).GetByID(ctx, fam.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MemberCount)
	assert.True(t, stamp.Equal(got.UpdatedAt), "recount must not bump the version")
}

func TestMemberOptionalFields(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	members := NewMemberRepository(f.db)

	birth := time.Date(2000, 6, 15, 0, 0, 0, 0, time.UTC)
	withBirth := &models.Member{CommunityID: f.communityID, FirstName: "Eva", BirthDate: &birth, Active: true, CreatedAt: stamp, UpdatedAt: stamp}
	require.NoError(t, members.Create(ctx, withBirth))

	approx := 40
	withApprox := &models.Member{CommunityID: f.communityID, FirstName: "Juan", ApproxAge: &approx, ApproxAgeUpdatedAt: &stamp, Active: true, CreatedAt: stamp, UpdatedAt: stamp}
	require.NoError(t, members.Create(ctx, withApprox))

	got, err := members.GetByID(ctx, withBirth.ID)
	require.NoError(t, err)
	require.NotNil(t, got.BirthDate)
	assert.True(t, birth.Equal(*got.BirthDate))
	assert.Nil(t, got.ApproxAge)
	assert.Nil(t, got.FamilyID)

	got, err = members.GetByID(ctx, withApprox.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ApproxAge)
	assert.Equal(t, 40, *got.ApproxAge)
	assert.True(t, stamp.Equal(*got.ApproxAgeUpdatedAt))
}

func TestVisitVisitorsAndDistinctCount(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	fam := f.family(t, "Ruiz", &f.nucleoA)
	users := NewUserRepository(f.db)
	second := &models.User{CommunityID: f.communityID, Email: "luis@example.com", PasswordHash: "x", Name: "Luis", Role: models.RoleVisitor, CreatedAt: stamp, UpdatedAt: stamp}
	require.NoError(t, users.Create(ctx, second))

	visits := NewVisitRepository(f.db)
	day := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
	for i, vids := range [][]int64{{f.userID, second.ID}, {second.ID}} {
		v := &models.Visit{
			CommunityID: f.communityID, FamilyID: fam.ID, AuthorID: f.userID,
			VisitDate: day, VisitTime: "18:00", Type: models.VisitTypeFirst, Status: models.VisitStatusCompleted,
			VisitorIDs: vids, Activities: models.VisitActivities{Prayer: true}, Materials: models.VisitMaterials{Booklets: 2},
			CreatedAt: stamp.Add(time.Duration(i) * time.Minute), UpdatedAt: stamp,
		}
		require.NoError(t, visits.Create(ctx, v))
	}

	list, err := visits.List(ctx, database.Eq("community_id", f.communityID), database.Sort{Field: "createdAt"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []int64{f.userID, second.ID}, list[0].VisitorIDs)
	assert.True(t, list[0].Activities.Prayer)
	assert.Equal(t, 2, list[0].Materials.Booklets)
	assert.True(t, day.Equal(list[0].VisitDate))

	window := database.And(
		database.Eq("community_id", f.communityID),
		database.Eq("status", string(models.VisitStatusCompleted)),
		database.Between("visit_date", time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)),
	)
	n, err := visits.CountDistinctVisitors(ctx, window)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	completed, err := visits.Count(ctx, window)
	require.NoError(t, err)
	assert.Equal(t, 2, completed)

	require.NoError(t, visits.Delete(ctx, list[0].ID))
	gone, err := visits.GetByID(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestUserEmailIsCaseInsensitive(t *testing.T) {
	f := setup(t)
	u, err := NewUserRepository(f.db).GetByEmail(context.Background(), "  ANA@example.COM ")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, f.userID, u.ID)
}

func TestSessions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	users := NewUserRepository(f.db)

	live := &models.Session{ID: "live", UserID: f.userID, CreatedAt: stamp, ExpiresAt: stamp.Add(time.Hour)}
	old := &models.Session{ID: "old", UserID: f.userID, CreatedAt: stamp, ExpiresAt: stamp.Add(-time.Hour)}
	require.NoError(t, users.CreateSession(ctx, live))
	require.NoError(t, users.CreateSession(ctx, old))

	n, err := users.DeleteExpiredSessions(ctx, stamp)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := users.GetSession(ctx, "live")
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NoError(t, users.DeleteSession(ctx, "live"))
	got, err = users.GetSession(ctx, "live")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInvitationMarkUsedOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	member := &models.Member{CommunityID: f.communityID, FirstName: "Rosa", Active: true, CreatedAt: stamp, UpdatedAt: stamp}
	require.NoError(t, NewMemberRepository(f.db).Create(ctx, member))

	invitations := NewInvitationRepository(f.db)
	inv := &models.Invitation{CommunityID: f.communityID, Code: "abc", Email: "rosa@example.com", MemberID: member.ID, Role: models.RoleVisitor, InvitedBy: f.userID, CreatedAt: stamp, ExpiresAt: stamp.Add(24 * time.Hour)}
	require.NoError(t, invitations.Create(ctx, inv))

	pending, err := invitations.ListPending(ctx, database.Eq("community_id", f.communityID), stamp)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, invitations.MarkUsed(ctx, inv.ID, f.userID, stamp))
	assert.Error(t, invitations.MarkUsed(ctx, inv.ID, f.userID, stamp))

	got, err := invitations.GetByCode(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, got.IsUsed())
}

func TestTimelineAppendAndList(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	timeline := NewTimelineRepository(f.db)

	for i, nucleo := range []*int64{&f.nucleoA, &f.nucleoB} {
		e := &models.TimelineEvent{
			CommunityID: f.communityID, ActorID: &f.userID, Action: models.ActionCreate,
			EntityType: models.EntityFamily, Summary: "Ana created family",
			Metadata: map[string]any{"n": i}, NucleoID: nucleo, CreatedAt: stamp.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, timeline.Create(ctx, e))
	}

	events, err := timeline.List(ctx, database.And(database.Eq("community_id", f.communityID), database.Eq("nucleo_id", f.nucleoA)), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, float64(0), events[0].Metadata["n"])

	all, err := timeline.List(ctx, database.Eq("community_id", f.communityID), 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, f.nucleoB, *all[0].NucleoID, "newest first")
}
