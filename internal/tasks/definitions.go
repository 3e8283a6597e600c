package tasks

import (
	"go.uber.org/zap"

	"ease_academy_api/internal/repository"
	"ease_academy_api/internal/services"
)

// Dependencies are the collaborators the built-in task handlers need
type Dependencies struct {
	Users       repository.UserRepository
	Preferences PreferenceStore
	Email       services.EmailSender
	Push        services.PushSender
	Whatsapp    WhatsappSender
	Store       TaskStore
	Log         *zap.Logger
}

// DefineTasks registers the built-in tasks
func DefineTasks(registry *Registry, deps Dependencies) {
	logInfo := &LogInfoTaskDef{Log: deps.Log}
	registry.Register(logInfo.TaskID(), logInfo.HandleExecution)

	sendNotification := &SendNotificationTaskDef{
		Users:       deps.Users,
		Preferences: deps.Preferences,
		Email:       deps.Email,
		Push:        deps.Push,
		Whatsapp:    deps.Whatsapp,
		Store:       deps.Store,
		Log:         deps.Log,
	}
	registry.Register(sendNotification.TaskID(), sendNotification.HandleExecution)
}
