package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitas/internal/apperr"
	"visitas/internal/database"
	"visitas/internal/models"
)

func TestExportImportRoundTrip(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	f := e.family(t, "Gómez", &e.nucleoA.ID)
	e.family(t, "Sin núcleo", nil)
	e.member(t, &f.ID, "Luis")
	e.member(t, &f.ID, "Marta")
	date := NewDate(2025, 6, 1)
	first := models.VisitTypeFirst
	_, err := e.svc.Visits.Create(ctx, e.collaborator, VisitInput{
		FamilyID: &f.ID, VisitDate: &date, Type: &first, Activities: &models.VisitActivities{Prayer: true},
	})
	require.NoError(t, err)
	start, end := NewDate(2025, 4, 1), NewDate(2025, 6, 30)
	_, err = e.svc.Goals.Create(ctx, e.admin, GoalInput{Name: ptr("Q2"), StartDate: &start, EndDate: &end})
	require.NoError(t, err)

	var buf bytes.Buffer
	archive, err := e.svc.Backup.Export(ctx, e.admin, &buf)
	require.NoError(t, err)
	assert.Equal(t, "San José", archive.Community)
	assert.Len(t, archive.Families, 2)
	assert.Len(t, archive.Members, 2)

	importer, err := e.svc.Auth.Bootstrap(ctx, BootstrapInput{
		Community: "Copia", Name: "Importer", Email: "importer@example.com", Password: testPassword,
	})
	require.NoError(t, err)

	sum, err := e.svc.Backup.Import(ctx, importer, &buf)
	require.NoError(t, err)
	assert.Equal(t, ImportSummary{Barrios: 1, Nucleos: 2, Families: 2, Members: 2, Visits: 1, Goals: 1}, *sum)

	families, err := e.svc.Families.List(ctx, importer, FamilyQuery{})
	require.NoError(t, err)
	require.Len(t, families, 2)
	var gomez *models.Family
	for i := range families {
		if families[i].Name == "Gómez" {
			gomez = &families[i]
		}
	}
	require.NotNil(t, gomez)
	assert.NotEqual(t, f.ID, gomez.ID)
	assert.Equal(t, 2, gomez.MemberCount)

	nucleo, err := e.svc.Nucleos.Get(ctx, importer, *gomez.NucleoID)
	require.NoError(t, err)
	assert.Equal(t, "Norte", nucleo.Name)

	visits, err := e.svc.Visits.List(ctx, importer, VisitQuery{})
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.Equal(t, importer.ID, visits[0].AuthorID)
	assert.Equal(t, gomez.ID, visits[0].FamilyID)
	assert.Empty(t, visits[0].VisitorIDs, "visitors from another community are dropped")
	assert.Equal(t, models.VisitStatusCompleted, visits[0].Status)

	// the source community is untouched
	original, err := e.svc.Families.List(ctx, e.admin, FamilyQuery{})
	require.NoError(t, err)
	assert.Len(t, original, 2)
}

func TestBackupRequiresAdmin(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.svc.Backup.Export(ctx, e.collaborator, &bytes.Buffer{})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = e.svc.Backup.Import(ctx, e.visitor, strings.NewReader(`{"version":"1"}`))
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = e.svc.Backup.Export(ctx, nil, &bytes.Buffer{})
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}

func TestImportRejectsBadArchives(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"wrong version", `{"version":"99"}`},
		{"dangling nucleo", `{"version":"1","barrios":[{"id":1,"name":"B","active":true}],"nucleos":[{"id":5,"barrioId":77,"name":"X","active":true}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Backup.Import(ctx, e.admin, strings.NewReader(tt.body))
			assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
		})
	}

	barrios, err := e.svc.Barrios.List(ctx, e.admin, database.Sort{})
	require.NoError(t, err)
	assert.Len(t, barrios, 1, "a failed import leaves nothing behind")
}
