package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"visitas/internal/apperr"
	"visitas/internal/database"
	"visitas/internal/models"
	"visitas/internal/permissions"
)

// ArchiveVersion is written into every export and checked on import
const ArchiveVersion = "1"

// Archive is a portable copy of one community's records. Users are not
// included; imported visits are attributed to the importing user.
type Archive struct {
	Version    string          `json:"version"`
	ExportedAt time.Time       `json:"exportedAt"`
	Community  string          `json:"community"`
	Barrios    []models.Barrio `json:"barrios"`
	Nucleos    []models.Nucleo `json:"nucleos"`
	Families   []models.Family `json:"families"`
	Members    []models.Member `json:"members"`
	Visits     []models.Visit  `json:"visits"`
	Goals      []models.Goal   `json:"goals"`
}

// ImportSummary counts what an import created
type ImportSummary struct {
	Barrios  int `json:"barrios"`
	Nucleos  int `json:"nucleos"`
	Families int `json:"families"`
	Members  int `json:"members"`
	Visits   int `json:"visits"`
	Goals    int `json:"goals"`
}

// BackupService exports and imports community archives. Both need an
// admin-tier actor.
type BackupService struct {
	p *Pipeline
}

func (s *BackupService) authorize(actor *models.User) error {
	if err := authenticate(actor); err != nil {
		return err
	}
	return permissions.Authorize(profileOf(actor), permissions.ActionModify, models.EntityCommunity, permissions.Scope{})
}

// Export writes the actor's community as indented JSON
func (s *BackupService) Export(ctx context.Context, actor *models.User, w io.Writer) (*Archive, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	archive, err := s.collect(ctx, actor.CommunityID)
	if err != nil {
		return nil, err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(archive); err != nil {
		return nil, fmt.Errorf("failed to encode archive: %w", err)
	}

	s.p.logger.Info("Community exported",
		zap.Int64("community_id", actor.CommunityID),
		zap.Int("families", len(archive.Families)),
		zap.Int("visits", len(archive.Visits)),
	)
	s.p.record(ctx, actor, models.ActionExport, models.EntityCommunity, actor.CommunityID, archive.Community, placement{}, nil)
	return archive, nil
}

func (s *BackupService) collect(ctx context.Context, communityID int64) (*Archive, error) {
	st := s.p.pool
	c, err := st.communities.GetByID(ctx, communityID)
	community, err := notFoundIfNil(c, err, models.EntityCommunity, communityID)
	if err != nil {
		return nil, err
	}
	f := database.Eq("community_id", communityID)
	byID := database.Sort{}

	archive := &Archive{
		Version:    ArchiveVersion,
		ExportedAt: s.p.now(),
		Community:  community.Name,
	}
	if archive.Barrios, err = st.barrios.List(ctx, f, byID); err != nil {
		return nil, fmt.Errorf("failed to export barrios: %w", err)
	}
	if archive.Nucleos, err = st.nucleos.List(ctx, f, byID); err != nil {
		return nil, fmt.Errorf("failed to export nucleos: %w", err)
	}
	if archive.Families, err = st.families.List(ctx, f, byID); err != nil {
		return nil, fmt.Errorf("failed to export families: %w", err)
	}
	if archive.Members, err = st.members.List(ctx, f, byID); err != nil {
		return nil, fmt.Errorf("failed to export members: %w", err)
	}
	if archive.Visits, err = st.visits.List(ctx, f, byID); err != nil {
		return nil, fmt.Errorf("failed to export visits: %w", err)
	}
	if archive.Goals, err = st.goals.List(ctx, f, byID); err != nil {
		return nil, fmt.Errorf("failed to export goals: %w", err)
	}
	return archive, nil
}

// Import adds the records of an archive to the actor's community in a single
// transaction. Ids are reassigned; references between records follow them.
// Visitors that are not users of the community are dropped.
func (s *BackupService) Import(ctx context.Context, actor *models.User, r io.Reader) (*ImportSummary, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	var archive Archive
	if err := json.NewDecoder(r).Decode(&archive); err != nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, "archive is not valid JSON", err)
	}
	if archive.Version != ArchiveVersion {
		return nil, apperr.BadRequestf("unsupported archive version %q", archive.Version)
	}

	var sum ImportSummary
	err := s.p.inTx(ctx, func(st *stores) error {
		var err error
		sum, err = s.restore(ctx, st, actor, &archive)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.p.logger.Info("Community imported",
		zap.Int64("community_id", actor.CommunityID),
		zap.Int("families", sum.Families),
		zap.Int("visits", sum.Visits),
	)
	s.p.record(ctx, actor, models.ActionImport, models.EntityCommunity, actor.CommunityID, archive.Community, placement{},
		map[string]any{
			"barrios":  sum.Barrios,
			"nucleos":  sum.Nucleos,
			"families": sum.Families,
			"members":  sum.Members,
			"visits":   sum.Visits,
			"goals":    sum.Goals,
		})
	return &sum, nil
}

// remap resolves an archived reference to its new id
func remap(ids map[int64]int64, old *int64, entity models.EntityType) (*int64, error) {
	if old == nil {
		return nil, nil
	}
	id, ok := ids[*old]
	if !ok {
		return nil, apperr.BadRequestf("archive references missing %s %d", entity, *old)
	}
	return &id, nil
}

func (s *BackupService) restore(ctx context.Context, st *stores, actor *models.User, a *Archive) (ImportSummary, error) {
	var sum ImportSummary
	community := actor.CommunityID
	now := s.p.now()

	barrios := make(map[int64]int64, len(a.Barrios))
	for _, b := range a.Barrios {
		old := b.ID
		b.CommunityID = community
		if err := st.barrios.Create(ctx, &b); err != nil {
			return sum, err
		}
		barrios[old] = b.ID
		sum.Barrios++
	}

	nucleos := make(map[int64]int64, len(a.Nucleos))
	for _, n := range a.Nucleos {
		old := n.ID
		barrioID, err := remap(barrios, &n.BarrioID, models.EntityBarrio)
		if err != nil {
			return sum, err
		}
		n.BarrioID = *barrioID
		n.CommunityID = community
		n.Barrio = nil
		if err := st.nucleos.Create(ctx, &n); err != nil {
			return sum, err
		}
		nucleos[old] = n.ID
		sum.Nucleos++
	}

	families := make(map[int64]int64, len(a.Families))
	for _, f := range a.Families {
		old := f.ID
		var err error
		if f.BarrioID, err = remap(barrios, f.BarrioID, models.EntityBarrio); err != nil {
			return sum, err
		}
		if f.NucleoID, err = remap(nucleos, f.NucleoID, models.EntityNucleo); err != nil {
			return sum, err
		}
		f.CommunityID = community
		f.MemberCount = 0
		f.Barrio, f.Nucleo, f.Members = nil, nil, nil
		if err := st.families.Create(ctx, &f); err != nil {
			return sum, err
		}
		families[old] = f.ID
		sum.Families++
	}

	for _, m := range a.Members {
		var err error
		if m.FamilyID, err = remap(families, m.FamilyID, models.EntityFamily); err != nil {
			return sum, err
		}
		m.CommunityID = community
		m.UserID = nil
		m.Family, m.Age = nil, nil
		if err := st.members.Create(ctx, &m); err != nil {
			return sum, err
		}
		sum.Members++
	}
	for _, id := range families {
		if _, err := st.families.RecountMembers(ctx, id); err != nil {
			return sum, err
		}
	}

	users, err := st.users.List(ctx, database.Eq("community_id", community), database.Sort{})
	if err != nil {
		return sum, err
	}
	known := make(map[int64]bool, len(users))
	for _, u := range users {
		known[u.ID] = true
	}
	for _, v := range a.Visits {
		familyID, err := remap(families, &v.FamilyID, models.EntityFamily)
		if err != nil {
			return sum, err
		}
		v.FamilyID = *familyID
		v.CommunityID = community
		v.AuthorID = actor.ID
		visitors := []int64{}
		for _, id := range v.VisitorIDs {
			if known[id] {
				visitors = append(visitors, id)
			}
		}
		v.VisitorIDs = visitors
		v.Family, v.Author, v.Visitors = nil, nil, nil
		if v.UpdatedAt.IsZero() {
			v.UpdatedAt = now
		}
		if err := st.visits.Create(ctx, &v); err != nil {
			return sum, err
		}
		sum.Visits++
	}

	for _, g := range a.Goals {
		g.CommunityID = community
		g.Progress = nil
		if err := st.goals.Create(ctx, &g); err != nil {
			return sum, err
		}
		sum.Goals++
	}
	return sum, nil
}
