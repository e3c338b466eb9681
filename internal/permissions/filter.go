package permissions

import (
	"visitas/internal/database"
	"visitas/internal/models"
)

// ReadFilter returns the constraint a list query must apply for the actor.
// It always restricts to the actor's community; denied reads match nothing.
func ReadFilter(p Profile, entity models.EntityType) database.Filter {
	if !p.Authenticated() {
		return database.MatchNothing
	}
	community := database.Eq("community_id", p.CommunityID)

	switch lookup(p, ActionRead, entity) {
	case ruleAll:
		return community
	case ruleScoped:
		if p.NucleoID == nil {
			return database.MatchNothing
		}
		return database.And(community, nucleoConstraint(entity, *p.NucleoID))
	}
	return database.MatchNothing
}

// nucleoConstraint follows each entity's relation chain to its nucleo
func nucleoConstraint(entity models.EntityType, nucleoID int64) database.Filter {
	switch entity {
	case models.EntityFamily, models.EntityTimeline, models.EntityUser, models.EntityInvitation:
		return database.Eq("nucleo_id", nucleoID)
	case models.EntityNucleo:
		return database.Eq("id", nucleoID)
	case models.EntityBarrio:
		return database.Related("id", "nucleos", "barrio_id", database.Eq("id", nucleoID))
	case models.EntityMember, models.EntityVisit:
		return database.Related("family_id", "families", "id", database.Eq("nucleo_id", nucleoID))
	}
	return database.MatchNothing
}
