package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/pingline/pingline/internal/chatbots"
	"github.com/pingline/pingline/internal/completion"
	"github.com/pingline/pingline/internal/config"
	"github.com/pingline/pingline/internal/db"
	"github.com/pingline/pingline/internal/directory"
	"github.com/pingline/pingline/internal/fanout"
	"github.com/pingline/pingline/internal/handlers"
	"github.com/pingline/pingline/internal/logger"
	"github.com/pingline/pingline/internal/messages"
	"github.com/pingline/pingline/internal/presence"
	"github.com/pingline/pingline/internal/responder"
	"github.com/pingline/pingline/internal/server"
	"github.com/pingline/pingline/internal/users"
	"github.com/pingline/pingline/internal/version"
	"github.com/pingline/pingline/internal/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat server",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(
			fx.Provide(
				loadConfig,
				provideLogger,
				provideDBConn,

				users.NewService,
				chatbots.NewService,
				provideDirectory,
				provideMessages,
				providePresence,
				provideFanout,
				provideCompletion,
				provideResponder,

				provideServerHandler(providePingHandler),
				provideServerHandler(provideAuthHandler),
				provideServerHandler(provideMessagesHandler),
				provideServerHandler(provideChatbotsHandler),
				provideServerHandler(provideGateway),

				provideServer,
			),
			fx.Invoke(startServer),
			fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
				return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
			}),
		)
		app.Run()
		return nil
	},
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func provideDirectory(log *slog.Logger, userService *users.Service, botService *chatbots.Service) *directory.Service {
	return directory.NewService(log, userService, botService)
}

func provideMessages(log *slog.Logger, conn *pgxpool.Pool, dir *directory.Service) *messages.Service {
	return messages.NewService(log, conn, dir)
}

func providePresence(log *slog.Logger) *presence.Registry {
	return presence.NewRegistry(log)
}

func provideFanout(log *slog.Logger, registry *presence.Registry) *fanout.Notifier {
	return fanout.NewNotifier(log, registry)
}

func provideCompletion(log *slog.Logger, cfg config.Config) (*completion.Client, error) {
	timeout := time.Duration(cfg.Completion.TimeoutSeconds) * time.Second
	return completion.NewClient(log, cfg.Completion.BaseURL, cfg.Completion.APIKey, timeout)
}

func provideResponder(log *slog.Logger, botService *chatbots.Service, messageService *messages.Service, client *completion.Client, notifier *fanout.Notifier) *responder.Responder {
	return responder.NewResponder(log, botService, messageService, client, notifier)
}

func providePingHandler() *handlers.PingHandler {
	return handlers.NewPingHandler()
}

func provideAuthHandler(log *slog.Logger, cfg config.Config, userService *users.Service) (*handlers.AuthHandler, error) {
	expiresIn, err := time.ParseDuration(cfg.Auth.JWTExpiresIn)
	if err != nil {
		return nil, fmt.Errorf("parse jwt expiry: %w", err)
	}
	return handlers.NewAuthHandler(log, userService, cfg.Auth.JWTSecret, expiresIn), nil
}

func provideMessagesHandler(log *slog.Logger, dir *directory.Service, messageService *messages.Service, registry *presence.Registry, notifier *fanout.Notifier) *handlers.MessagesHandler {
	return handlers.NewMessagesHandler(log, dir, messageService, registry, notifier)
}

func provideChatbotsHandler(log *slog.Logger, cfg config.Config, botService *chatbots.Service, resp *responder.Responder) *handlers.ChatbotsHandler {
	return handlers.NewChatbotsHandler(log, botService, resp, cfg.Completion.DefaultModel)
}

func provideGateway(log *slog.Logger, registry *presence.Registry) *ws.Gateway {
	return ws.NewGateway(log, registry)
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

type serverParams struct {
	fx.In

	Logger   *slog.Logger
	Config   config.Config
	Handlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.Handlers...)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config, userService *users.Service) {
	fmt.Printf("Starting Pingline %s\n", version.GetInfo())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := ensureAdminUser(ctx, log, userService, cfg); err != nil {
				return err
			}
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

// ensureAdminUser seeds the first account from config when the users table is
// empty, so a fresh deployment can log in.
func ensureAdminUser(ctx context.Context, log *slog.Logger, userService *users.Service, cfg config.Config) error {
	count, err := userService.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	username := strings.TrimSpace(cfg.Admin.Username)
	password := strings.TrimSpace(cfg.Admin.Password)
	if username == "" || password == "" {
		return fmt.Errorf("admin username/password required in config.toml")
	}
	if password == "change-your-password-here" {
		log.Warn("admin password uses default placeholder; please update config.toml")
	}

	user, err := userService.Create(ctx, users.CreateRequest{
		Username: username,
		Password: password,
		Email:    strings.TrimSpace(cfg.Admin.Email),
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	log.Info("seeded admin user", slog.String("user_id", user.ID), slog.String("username", user.Username))
	return nil
}
