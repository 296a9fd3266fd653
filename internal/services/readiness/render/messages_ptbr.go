package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.MustParse("pt-BR")

	message.SetString(lang, "readiness.stage.building", "em construção")
	message.SetString(lang, "readiness.stage.packaging", "em preparação")
	message.SetString(lang, "readiness.stage.ready_to_launch", "pronto para lançar")
	message.SetString(lang, "readiness.stage.post_launch", "lançado")
	message.SetString(lang, "readiness.stage.unknown", "estágio desconhecido")
	message.SetString(lang, "readiness.deploy.ready", "no ar")
	message.SetString(lang, "readiness.deploy.error", "com falha")
	message.SetString(lang, "readiness.deploy.building", "em build")
	message.SetString(lang, "readiness.deploy.queued", "na fila")
	message.SetString(lang, "readiness.deploy.none", "sem deploy")
	message.SetString(lang, "readiness.headline.verified", "%s: a correção recomendada funcionou")
	message.SetString(lang, "readiness.headline.blocked", "%s está bloqueado: %s")
	message.SetString(lang, "readiness.headline.moved", "%s passou de %s para %s")
	message.SetString(lang, "readiness.headline.status", "%s está %s")
}
