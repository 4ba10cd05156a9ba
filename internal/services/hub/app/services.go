package app

import (
	"github.com/automatehub/automatehub/internal/platform/events"
	"github.com/automatehub/automatehub/internal/services/hub/api/rest"
	"github.com/automatehub/automatehub/internal/services/hub/domain"
	"github.com/automatehub/automatehub/internal/services/hub/domain/account"
	"github.com/automatehub/automatehub/internal/services/hub/domain/conversation"
	"github.com/automatehub/automatehub/internal/services/hub/domain/dashboard"
	"github.com/automatehub/automatehub/internal/services/hub/domain/expert"
	"github.com/automatehub/automatehub/internal/services/hub/domain/notification"
	"github.com/automatehub/automatehub/internal/services/hub/domain/payment"
	"github.com/automatehub/automatehub/internal/services/hub/domain/project"
	"github.com/automatehub/automatehub/internal/services/hub/domain/review"
	"github.com/automatehub/automatehub/internal/services/hub/storage/sqlite"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ServiceOptions tunes the domain services.
type ServiceOptions struct {
	BcryptCost      int
	FeeBPS          int64
	DefaultCurrency string
}

// NewServices builds every domain service over store. Domain events go to
// publisher and to the notification inbox.
func NewServices(store *sqlite.Store, processor payment.Processor, publisher events.Publisher, logger *zap.Logger, opts ServiceOptions) rest.Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "usd"
	}

	notifications := notification.NewService(store, domain.Deps{Logger: logger.Named("notification")})
	deps := func(name string) domain.Deps {
		return domain.Deps{
			Publisher: events.Multi{publisher, notification.NewBridge(notifications)},
			Logger:    logger.Named(name),
		}
	}

	return rest.Services{
		Accounts:      account.NewService(store, deps("account"), opts.BcryptCost),
		Experts:       expert.NewService(store, deps("expert")),
		Projects:      project.NewService(store, deps("project"), opts.DefaultCurrency),
		Reviews:       review.NewService(store, deps("review")),
		Conversations: conversation.NewService(store, deps("conversation")),
		Payments:      payment.NewService(store, processor, deps("payment"), payment.Config{FeeBPS: opts.FeeBPS}),
		Notifications: notifications,
		Dashboard:     dashboard.NewService(store, deps("dashboard")),
	}
}
