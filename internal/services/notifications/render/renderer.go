// Package render composes localized notification copy per event kind.
package render

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/louisbranch/crewdeck/internal/services/notifications/domain"
)

const (
	defaultGenericTitle = "Notification"
	defaultGenericBody  = "You have a new notification."
)

// Localizer is the minimal message-printer contract required by the renderer.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// Input is one render request for a change-event notification.
type Input struct {
	Kind        domain.Kind
	TaskTitle   string
	ProjectName string
	ActorName   string
	NewStatus   string
}

// Output is localized copy derived from one change event.
type Output struct {
	Title    string
	BodyText string
}

// NewLocalizer returns a message printer for the given BCP-47 locale tag,
// falling back to en-US for unknown tags.
func NewLocalizer(locale string) Localizer {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		tag = language.AmericanEnglish
	}
	return message.NewPrinter(tag)
}

// Render returns localized copy for one change-event notification.
func Render(loc Localizer, input Input) Output {
	taskTitle := fallback(input.TaskTitle, "a task")
	projectName := fallback(input.ProjectName, "a project")
	actorName := fallback(input.ActorName, "A teammate")

	switch input.Kind {
	case domain.KindStatusChange:
		return Output{
			Title:    localize(loc, "notification.status_change.title", taskTitle),
			BodyText: localize(loc, "notification.status_change.body", actorName, taskTitle, fallback(input.NewStatus, "a new status")),
		}
	case domain.KindMilestone:
		return Output{
			Title:    localize(loc, "notification.milestone.title", taskTitle),
			BodyText: localize(loc, "notification.milestone.body", actorName, taskTitle, projectName),
		}
	case domain.KindAssignment:
		return Output{
			Title:    localize(loc, "notification.assignment.title", taskTitle),
			BodyText: localize(loc, "notification.assignment.body", actorName, taskTitle, projectName),
		}
	case domain.KindProjectUpdate:
		return Output{
			Title:    localize(loc, "notification.project_update.title", projectName),
			BodyText: localize(loc, "notification.project_update.body", actorName, projectName),
		}
	case domain.KindComment:
		return Output{
			Title:    localize(loc, "notification.comment.title", taskTitle),
			BodyText: localize(loc, "notification.comment.body", actorName, taskTitle),
		}
	case domain.KindSystemAlert:
		return Output{
			Title:    localize(loc, "notification.system_alert.title"),
			BodyText: fallback(input.TaskTitle, localize(loc, "notification.system_alert.body")),
		}
	default:
		return genericOutput(loc)
	}
}

func genericOutput(loc Localizer) Output {
	return Output{
		Title:    localizeWithFallback(loc, "notification.generic.title", defaultGenericTitle),
		BodyText: localizeWithFallback(loc, "notification.generic.body", defaultGenericBody),
	}
}

func localize(loc Localizer, key string, args ...any) string {
	if loc == nil {
		return key
	}
	return loc.Sprintf(key, args...)
}

func localizeWithFallback(loc Localizer, key string, fallbackValue string, args ...any) string {
	value := localize(loc, key, args...)
	if value == key {
		return fallbackValue
	}
	return value
}

func fallback(value string, fallbackValue string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallbackValue
	}
	return value
}
