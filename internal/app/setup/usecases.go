package setup

import (
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/payment"
	"github.com/LavaJover/lockin-market-service/internal/usecase"
)

type UseCases struct {
	ListingUsecase usecase.ListingUsecase
	LockUsecase    usecase.LockUsecase
	OrderUsecase   usecase.OrderUsecase
	LedgerUsecase  usecase.LedgerUsecase
	WebhookUsecase usecase.WebhookUsecase
	SweeperUsecase usecase.SweeperUsecase
	Verifier       *payment.SignatureVerifier
}

func InitializeUseCases(deps *Dependencies) *UseCases {
	cfg := deps.Config
	repos := deps.Repositories
	events := usecase.NewEventNotifier(deps.Publisher, deps.Metrics)

	listingUsecase := usecase.NewDefaultListingUsecase(deps.Tx, repos.ListingRepo, repos.OrderRepo, deps.Clock, events, deps.Metrics)
	lockUsecase := usecase.NewDefaultLockUsecase(deps.Tx, repos.ListingRepo, repos.OrderRepo, deps.Clock, cfg.Locking.LockDuration, events, deps.Metrics)
	orderUsecase := usecase.NewDefaultOrderUsecase(deps.Tx, repos.OrderRepo, repos.ListingRepo, deps.Clock, events, deps.Metrics)
	ledgerUsecase := usecase.NewDefaultLedgerUsecase(repos.EventRepo, deps.Clock, cfg.Ledger.Retention, cfg.Ledger.PurgeBatchSize, deps.Metrics)
	webhookUsecase := usecase.NewDefaultWebhookUsecase(deps.Tx, ledgerUsecase, orderUsecase, repos.OrderRepo, deps.Metrics)
	sweeperUsecase := usecase.NewDefaultSweeperUsecase(
		deps.Tx,
		repos.ListingRepo,
		repos.OrderRepo,
		deps.Clock,
		cfg.Sweeper.BatchSize,
		deps.Lease,
		cfg.Sweeper.LeaseTTL,
		events,
		deps.Metrics,
	)

	return &UseCases{
		ListingUsecase: listingUsecase,
		LockUsecase:    lockUsecase,
		OrderUsecase:   orderUsecase,
		LedgerUsecase:  ledgerUsecase,
		WebhookUsecase: webhookUsecase,
		SweeperUsecase: sweeperUsecase,
		Verifier:       payment.NewSignatureVerifier(cfg.Webhook.SigningSecret, cfg.Webhook.Tolerance, deps.Clock),
	}
}
