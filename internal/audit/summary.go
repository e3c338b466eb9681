package audit

import (
	"fmt"
	"strings"

	"visitas/internal/models"
)

var verbs = map[models.AuditAction]string{
	models.ActionLogin:  "signed in",
	models.ActionLogout: "signed out",
	models.ActionCreate: "created",
	models.ActionUpdate: "updated",
	models.ActionDelete: "deleted",
	models.ActionImport: "imported",
	models.ActionExport: "exported",
}

// Summarize renders the one-line sentence shown in the timeline, e.g.
// `Ana Ruiz created family "Gómez"`.
func Summarize(e Event) string {
	actor := strings.TrimSpace(e.ActorName)
	if actor == "" {
		actor = "Someone"
	}
	verb, ok := verbs[e.Action]
	if !ok {
		verb = string(e.Action)
	}

	if e.Action == models.ActionLogin || e.Action == models.ActionLogout {
		return fmt.Sprintf("%s %s", actor, verb)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %s", actor, verb, entityNoun(e.EntityType))
	if e.EntityLabel != "" {
		fmt.Fprintf(&sb, " %q", e.EntityLabel)
	}
	return sb.String()
}

func entityNoun(t models.EntityType) string {
	switch t {
	case models.EntityTimeline:
		return "timeline"
	case models.EntityCommunity:
		return "community data"
	case "":
		return "a record"
	}
	return string(t)
}
