package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.BrazilianPortuguese

	message.SetString(lang, "notification.generic.title", "Notificação")
	message.SetString(lang, "notification.generic.body", "Você tem uma nova notificação.")
	message.SetString(lang, "notification.status_change.title", "Tarefa atualizada: %s")
	message.SetString(lang, "notification.status_change.body", "%s moveu %s para %s.")
	message.SetString(lang, "notification.milestone.title", "Tarefa concluída: %s")
	message.SetString(lang, "notification.milestone.body", "%s concluiu %s em %s.")
	message.SetString(lang, "notification.assignment.title", "Nova atribuição: %s")
	message.SetString(lang, "notification.assignment.body", "%s atribuiu %s a você em %s.")
	message.SetString(lang, "notification.project_update.title", "Projeto atualizado: %s")
	message.SetString(lang, "notification.project_update.body", "%s atualizou %s.")
	message.SetString(lang, "notification.comment.title", "Novo comentário em %s")
	message.SetString(lang, "notification.comment.body", "%s comentou em %s.")
	message.SetString(lang, "notification.system_alert.title", "Alerta do sistema")
	message.SetString(lang, "notification.system_alert.body", "Um comunicado do sistema foi publicado.")
}
