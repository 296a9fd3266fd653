package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	message.SetString(lang, "readiness.stage.building", "building")
	message.SetString(lang, "readiness.stage.packaging", "packaging")
	message.SetString(lang, "readiness.stage.ready_to_launch", "ready to launch")
	message.SetString(lang, "readiness.stage.post_launch", "launched")
	message.SetString(lang, "readiness.stage.unknown", defaultUnknownStage)
	message.SetString(lang, "readiness.deploy.ready", "live")
	message.SetString(lang, "readiness.deploy.error", "failing")
	message.SetString(lang, "readiness.deploy.building", "building")
	message.SetString(lang, "readiness.deploy.queued", "queued")
	message.SetString(lang, "readiness.deploy.none", "not deployed")
	message.SetString(lang, "readiness.headline.verified", "%s: the recommended fix worked")
	message.SetString(lang, "readiness.headline.blocked", "%s is blocked: %s")
	message.SetString(lang, "readiness.headline.moved", "%s moved from %s to %s")
	message.SetString(lang, "readiness.headline.status", "%s is %s")
}
