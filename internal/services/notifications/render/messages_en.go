package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	message.SetString(lang, "notification.generic.title", defaultGenericTitle)
	message.SetString(lang, "notification.generic.body", defaultGenericBody)
	message.SetString(lang, "notification.status_change.title", "Task updated: %s")
	message.SetString(lang, "notification.status_change.body", "%s moved %s to %s.")
	message.SetString(lang, "notification.milestone.title", "Task completed: %s")
	message.SetString(lang, "notification.milestone.body", "%s completed %s in %s.")
	message.SetString(lang, "notification.assignment.title", "New assignment: %s")
	message.SetString(lang, "notification.assignment.body", "%s assigned you %s in %s.")
	message.SetString(lang, "notification.project_update.title", "Project updated: %s")
	message.SetString(lang, "notification.project_update.body", "%s updated %s.")
	message.SetString(lang, "notification.comment.title", "New comment on %s")
	message.SetString(lang, "notification.comment.body", "%s commented on %s.")
	message.SetString(lang, "notification.system_alert.title", "System alert")
	message.SetString(lang, "notification.system_alert.body", "A system announcement was posted.")
}
