// Package app wires configuration, stores and services into the object
// graph shared by the server, the worker and the CLIs.
package app

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ease_academy_api/internal/attendance"
	"ease_academy_api/internal/config"
	"ease_academy_api/internal/fees"
	"ease_academy_api/internal/notify"
	"ease_academy_api/internal/repository"
	mongorepo "ease_academy_api/internal/repository/mongo"
	"ease_academy_api/internal/services"
	"ease_academy_api/internal/tasks"
)

type App struct {
	Config *config.Config
	Log    *zap.Logger

	Mongo *mongo.Client
	DB    *gorm.DB
	Cache services.Cache

	Users       repository.UserRepository
	Outbox      *tasks.GormStore
	Preferences *tasks.GormPreferenceStore

	Notify     *notify.Service
	Fees       *fees.Service
	Attendance *attendance.Service

	closers []func(ctx context.Context) error
}

// New connects to MongoDB, Postgres and (when configured) Redis and builds
// the domain services on top of them.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if cfg.MongoURI == "" {
		return nil, errors.New("MONGODB_URI not set")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL not set")
	}
	a := &App{Config: cfg, Log: log}

	client, mdb, err := services.InitMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
	if err != nil {
		return nil, err
	}
	a.Mongo = client
	a.closers = append(a.closers, client.Disconnect)
	if err := mongorepo.EnsureIndexes(ctx, mdb); err != nil {
		a.Close(ctx)
		return nil, errors.Wrap(err, "ensure mongo indexes")
	}

	if a.DB, err = services.InitDB(cfg.DatabaseURL, cfg.Debug, log); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := services.AutoMigrate(a.DB, log); err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Cache = services.NoopCache{}
	if cfg.RedisURL != "" {
		cache, err := services.NewRedisCache(cfg.RedisURL, log)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.Cache = cache
		a.closers = append(a.closers, func(context.Context) error { return cache.Close() })
	} else {
		log.Warn("REDIS_URL not set, fee status caching and worker locks disabled")
	}

	a.Users = mongorepo.NewUserRepository(mdb)
	a.Outbox = tasks.NewGormStore(a.DB)
	a.Preferences = tasks.NewGormPreferenceStore(a.DB)

	a.Notify = notify.NewService(mongorepo.NewNotificationRepository(mdb), a.Users, a.Outbox, log.Named("notify"))
	a.Fees = fees.NewService(fees.Deps{
		Vouchers:  mongorepo.NewVoucherRepository(mdb),
		Templates: mongorepo.NewTemplateRepository(mdb),
		Users:     a.Users,
		Counters:  mongorepo.NewCounterRepository(mdb),
		Notifier:  a.Notify,
		Cache:     a.Cache,
		Log:       log.Named("fees"),
		Location:  cfg.Location(),
	})
	a.Attendance = attendance.NewService(
		mongorepo.NewAttendanceRepository(mdb),
		a.Users,
		mongorepo.NewTimetableRepository(mdb),
		a.Fees,
		cfg.Location(),
		log.Named("attendance"),
	)
	return a, nil
}

// TaskDependencies builds the delivery channels used by the worker
func (a *App) TaskDependencies(ctx context.Context) (tasks.Dependencies, error) {
	cfg := a.Config
	push, err := NewPushSender(ctx, cfg)
	if err != nil {
		return tasks.Dependencies{}, err
	}
	return tasks.Dependencies{
		Users:       a.Users,
		Preferences: a.Preferences,
		Email:       NewEmailSender(cfg),
		Push:        push,
		Whatsapp:    services.NewWahaService(cfg.WahaBaseURL, cfg.WahaAPIKey, cfg.WahaCountryCode),
		Store:       a.Outbox,
		Log:         a.Log.Named("tasks"),
	}, nil
}

func NewEmailSender(cfg *config.Config) services.EmailSender {
	return services.NewEmailSender(
		cfg.EmailProvider,
		services.NewSMTPEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.EmailFrom),
		services.NewSendGridEmailService(cfg.SendGridAPIKey, "Ease Academy", cfg.EmailFrom),
	)
}

// NewPushSender picks FCM or Expo according to PUSH_PROVIDER
func NewPushSender(ctx context.Context, cfg *config.Config) (services.PushSender, error) {
	if cfg.PushProvider == "fcm" {
		client, err := services.InitFirebaseMessaging(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			return nil, errors.Wrap(err, "init firebase messaging")
		}
		return services.NewFCMPushService(client), nil
	}
	return services.NewExpoPushService(cfg.ExpoHost, cfg.ExpoAccessToken), nil
}

// Close releases connections in reverse order of opening
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.Log.Warn("close resource", zap.Error(err))
		}
	}
	a.closers = nil
}
