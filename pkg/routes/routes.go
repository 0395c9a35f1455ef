package routes

import (
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/zhou-shi/pentama-app/internal/auth"
	"github.com/zhou-shi/pentama-app/internal/automation"
	"github.com/zhou-shi/pentama-app/internal/config"
	"github.com/zhou-shi/pentama-app/internal/core"
	"github.com/zhou-shi/pentama-app/internal/notification"
	"github.com/zhou-shi/pentama-app/internal/room"
	"github.com/zhou-shi/pentama-app/internal/storage"
	"github.com/zhou-shi/pentama-app/internal/thesis"
	"github.com/zhou-shi/pentama-app/pkg/middleware"
)

var Modules = fx.Options(
	fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: logger.Named("fx")}
	}),
	ConfigModule,
	AuthModule,
	RoomModule,
	ThesisModule,
	NotificationModule,
	AutomationModule,
	fx.Module("echo",
		fx.Provide(NewEchoServer),
		fx.Provide(middleware.NewEnforcer),
		fx.Invoke(RegisterRoutes),
	),
)

var ConfigModule = fx.Module("config",
	fx.Provide(config.NewAppConfig),
	fx.Provide(config.NewLogger),
	fx.Provide(config.NewMongoDBClient),
	fx.Provide(config.NewEmailService),
	fx.Provide(core.NewValidator),
	fx.Provide(fx.Annotate(storage.NewOSSStore, fx.As(new(storage.Store)))),
	fx.Invoke(config.EnsureIndexes),
)

var AuthModule = fx.Module("auth",
	fx.Provide(fx.Annotate(auth.NewUserRepository,
		fx.As(new(auth.Users)), fx.As(new(notification.Recipients)))),
	fx.Provide(fx.Annotate(auth.NewTokenService, fx.As(fx.Self()), fx.As(new(auth.Verifier)))),
	fx.Provide(auth.NewGoogleVerifier),
	fx.Provide(auth.NewUserService),
	fx.Provide(auth.NewAuthHandler),
)

var RoomModule = fx.Module("room",
	fx.Provide(fx.Annotate(room.NewRoomRepository,
		fx.As(fx.Self()), fx.As(new(room.Store)), fx.As(new(thesis.Rooms)))),
	fx.Provide(room.NewRoomService),
	fx.Provide(room.NewRoomHandler),
	fx.Invoke(room.RegisterSeed),
)

var ThesisModule = fx.Module("thesis",
	fx.Provide(fx.Annotate(thesis.NewMongoRepository,
		fx.As(new(thesis.Repository)), fx.As(new(automation.Store)))),
	fx.Provide(func(v *core.Validator) thesis.Validator { return v }),
	fx.Provide(thesis.NewCalendar),
	fx.Provide(func(repo thesis.Repository, rooms thesis.Rooms, blobs storage.Store, notifier thesis.Notifier,
		validate thesis.Validator, calendar thesis.Calendar, logger *zap.Logger) *thesis.Service {
		return thesis.NewService(repo, rooms, blobs, notifier, validate, calendar, logger)
	}),
	fx.Provide(thesis.NewHandler),
	fx.Provide(func(s *thesis.Service) auth.Involvement { return s }),
)

var NotificationModule = fx.Module("notification",
	fx.Provide(fx.Annotate(notification.NewNotificationRepository, fx.As(new(notification.Store)))),
	fx.Provide(fx.Annotate(notification.NewNotificationService,
		fx.As(fx.Self()), fx.As(new(thesis.Notifier)))),
	fx.Provide(notification.NewNotificationHandler),
	fx.Provide(notification.NewNotificationScheduler),
	fx.Invoke(func(s *notification.NotificationScheduler, lc fx.Lifecycle) { s.StartScheduler(lc) }),
)

var AutomationModule = fx.Module("automation",
	fx.Provide(fx.Annotate(automation.NewMongoLock, fx.As(new(automation.Lock)))),
	fx.Provide(automation.NewService),
	fx.Provide(automation.NewScheduler),
	fx.Provide(automation.NewHandler),
	fx.Invoke(func(s *automation.Scheduler, lc fx.Lifecycle) { s.StartScheduler(lc) }),
)

type RouteParams struct {
	fx.In

	Echo         *echo.Echo
	Logger       *zap.Logger
	Verifier     auth.Verifier
	Enforcer     *casbin.Enforcer
	Auth         *auth.AuthHandler
	Rooms        *room.RoomHandler
	Thesis       *thesis.Handler
	Notification *notification.NotificationHandler
	Automation   *automation.Handler
}

func RegisterRoutes(p RouteParams) {
	e := p.Echo
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/register", p.Auth.Register)
	e.POST("/login", p.Auth.Login)
	e.POST("/login/google", p.Auth.LoginGoogle)

	api := e.Group("/api", middleware.JWTMiddleware(p.Verifier), middleware.CasbinMiddleware(p.Enforcer, p.Logger))
	api.GET("/profile", p.Auth.Profile)
	api.PUT("/profile", p.Auth.UpdateProfile)
	api.GET("/profile/edit-check", p.Auth.EditCheck)
	api.GET("/documents/:kind/:id", p.Thesis.Get)

	student := api.Group("/student")
	student.GET("/progress", p.Thesis.Progress)
	student.POST("/documents/:kind", p.Thesis.Submit)
	student.GET("/documents/:kind", p.Thesis.ListOwn)

	lecturer := api.Group("/lecturer")
	lecturer.GET("/documents/:kind", p.Thesis.ListAssigned)
	lecturer.POST("/documents/:kind/:id/evaluations", p.Thesis.Evaluate)

	admin := api.Group("/admin")
	admin.GET("/documents/:kind", p.Thesis.ListAll)
	admin.POST("/documents/:kind/:id/actions", p.Thesis.ApplyAction)

	admin.GET("/rooms", p.Rooms.ListRooms)
	admin.POST("/rooms", p.Rooms.CreateRoom)
	admin.PUT("/rooms/:id", p.Rooms.UpdateRoom)
	admin.DELETE("/rooms/:id", p.Rooms.DeleteRoom)

	admin.GET("/automation/status", p.Automation.Status)
	admin.POST("/automation/start", p.Automation.Start)
	admin.POST("/automation/stop", p.Automation.Stop)
	admin.POST("/automation/run", p.Automation.RunNow)

	admin.GET("/notifications", p.Notification.ListNotifications)
	admin.POST("/notifications", p.Notification.ScheduleNotification)
	admin.DELETE("/notifications/:id", p.Notification.DeleteNotification)
}
