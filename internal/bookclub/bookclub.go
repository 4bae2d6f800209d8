// Package bookclub wires the domain services around one store so the daemon
// and the CLI build them the same way.
package bookclub

import (
	"log/slog"

	"bookclub/internal/catalog"
	"bookclub/internal/config"
	"bookclub/internal/interaction"
	"bookclub/internal/keylock"
	"bookclub/internal/ledger"
	"bookclub/internal/lifecycle"
	"bookclub/internal/matching"
	"bookclub/internal/notifications"
	"bookclub/internal/queue"
	"bookclub/internal/store"
)

// Services bundles every domain service sharing one store and lock set.
type Services struct {
	Store       *store.Store
	Ledger      *ledger.Ledger
	Catalog     *catalog.Catalog
	Queue       *queue.Service
	Matching    *matching.Engine
	Groups      *lifecycle.Manager
	Interaction *interaction.Log
	Notifier    notifications.Service
}

// Option adjusts construction.
type Option func(*options)

type options struct {
	notifier notifications.Service
}

// WithNotifier replaces the notifier built from config.
func WithNotifier(n notifications.Service) Option {
	return func(o *options) { o.notifier = n }
}

// New builds the services over st. The caller owns st and closes it.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) *Services {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.notifier == nil {
		o.notifier = notifications.NewService(cfg, logger)
	}

	bookLocks := keylock.New()
	groupLocks := keylock.New()
	led := ledger.New(st, logger)
	groups := lifecycle.New(st, led, bookLocks, groupLocks, o.notifier, logger, lifecycle.Options{
		MaxMembers: cfg.Groups.MaxMembers,
		Duration:   cfg.GroupDuration(),
	})
	engine := matching.New(st, led, groups, logger)

	books := catalog.New(st, logger, catalog.Options{
		AlmostReadyMin:   cfg.Catalog.AlmostReadyMin,
		AlmostReadyLimit: cfg.Catalog.AlmostReadyLimit,
		PageSize:         cfg.Catalog.PageSize,
	})
	chat := interaction.New(st, groupLocks, logger, interaction.Options{
		MaxMessageLength:             cfg.Interaction.MaxMessageLength,
		PageSize:                     cfg.Interaction.MessagePageSize,
		RequireMembershipForProgress: cfg.Interaction.RequireMembershipForProgress,
	})

	return &Services{
		Store:       st,
		Ledger:      led,
		Catalog:     books,
		Queue:       queue.New(st, led, bookLocks, engine, logger),
		Matching:    engine,
		Groups:      groups,
		Interaction: chat,
		Notifier:    o.notifier,
	}
}
