// Package service wires the orchestration core into a long-running process:
// it polls the payroll API for pending payment groups, settles each group
// through the payment sequencer, and periodically reconciles the ledger
// against the intent source.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/payrun-hq/payrunner/pkg/balance"
	"github.com/payrun-hq/payrunner/pkg/bridge"
	"github.com/payrun-hq/payrunner/pkg/circuitbreaker"
	"github.com/payrun-hq/payrunner/pkg/config"
	"github.com/payrun-hq/payrunner/pkg/health"
	"github.com/payrun-hq/payrunner/pkg/ledger"
	"github.com/payrun-hq/payrunner/pkg/logger"
	"github.com/payrun-hq/payrunner/pkg/metrics"
	"github.com/payrun-hq/payrunner/pkg/models"
	"github.com/payrun-hq/payrunner/pkg/payroll"
	"github.com/payrun-hq/payrunner/pkg/provider"
	"github.com/payrun-hq/payrunner/pkg/swap"
)

// GroupSource serves payment groups awaiting settlement
type GroupSource interface {
	FetchPendingGroups(ctx context.Context) ([]models.PaymentGroup, error)
}

// Providers bundles the external capability providers the core is built
// against. All four must be non-nil.
type Providers struct {
	Balances provider.BalanceProvider
	Wallet   provider.WalletOperations
	Transfer provider.TransferCapability
	Bridge   provider.BridgeCapability
}

// Service handles the payment settlement process
type Service struct {
	config          *config.Config
	logger          logger.Logger
	groups          GroupSource
	intents         provider.IntentSource
	store           provider.Ledger
	pinger          health.Pinger
	balances        provider.BalanceProvider
	sequencer       *payroll.Sequencer
	reconciler      *ledger.Reconciler
	circuitBreakers map[int]*circuitbreaker.CircuitBreaker

	// group ids already settled this process lifetime; the dashboard can
	// lag marking a group paid, so re-served groups are not rerun
	settled map[string]bool
}

// NewService creates a new payrunner service
func NewService(
	cfg *config.Config,
	providers Providers,
	groups GroupSource,
	intents provider.IntentSource,
	store provider.Ledger,
	pinger health.Pinger,
	log logger.Logger,
) (*Service, error) {
	if providers.Balances == nil || providers.Wallet == nil || providers.Transfer == nil || providers.Bridge == nil {
		return nil, fmt.Errorf("all capability providers are required")
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}

	// Initialize circuit breakers
	circuitBreakers := make(map[int]*circuitbreaker.CircuitBreaker)
	for _, chainID := range cfg.ChainAllowlist {
		circuitBreakers[chainID] = circuitbreaker.NewCircuitBreaker(
			cfg.CircuitBreaker.Enabled,
			cfg.CircuitBreaker.Threshold,
			cfg.CircuitBreaker.WindowDuration,
			cfg.CircuitBreaker.ResetTimeout,
			log,
		)
	}

	aggregator := balance.NewAggregator(providers.Balances, log)
	swapper := swap.NewOrchestrator(
		providers.Wallet,
		cfg.SettlementChainID,
		cfg.RouterAddress,
		log,
		swap.WithSettleDelay(cfg.SettleDelay),
	)
	bridger := bridge.NewOrchestrator(providers.Bridge, swapper, cfg.SettlementChainID, log)
	bridger.SetGasBuffer(cfg.GasBuffer)

	sequencer := payroll.NewSequencer(
		aggregator,
		swapper,
		bridger,
		providers.Transfer,
		store,
		payroll.SequencerConfig{
			SettlementChainID: cfg.SettlementChainID,
			ChainAllowlist:    cfg.ChainAllowlist,
			Buffers:           cfg.Buffers,
			TransferPause:     cfg.TransferPause,
		},
		log,
		payroll.WithBreakers(circuitBreakers),
	)

	return &Service{
		config:          cfg,
		logger:          log,
		groups:          groups,
		intents:         intents,
		store:           store,
		pinger:          pinger,
		balances:        providers.Balances,
		sequencer:       sequencer,
		reconciler:      ledger.NewReconciler(store, intents, log),
		circuitBreakers: circuitBreakers,
		settled:         make(map[string]bool),
	}, nil
}

// Start begins the payrunner service and blocks until ctx is cancelled
func (s *Service) Start(ctx context.Context) {
	// Start health monitoring server
	healthServer := health.NewServer(s.config.MetricsPort, s.balances, s.pinger, s.circuitBreakers)
	go healthServer.Start()

	// Start ledger reconciliation loop
	go func() {
		s.logger.Info("Ledger reconciler started with interval %v", s.config.ReconcileInterval)
		ticker := time.NewTicker(s.config.ReconcileInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Ledger reconciler shutting down")
				return
			case <-ticker.C:
				if err := s.reconciler.ReconcileOnce(ctx); err != nil {
					s.logger.Error("Reconciliation pass failed: %v", err)
				}
			}
		}
	}()

	s.logger.Info("Starting Payrunner Service with polling interval %v", s.config.PollingInterval)
	ticker := time.NewTicker(s.config.PollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Context cancelled, shutting down service")
			return
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

// pollOnce fetches pending groups and settles them strictly sequentially.
// The wallet session is a single-writer resource, so groups never run in
// parallel.
func (s *Service) pollOnce(ctx context.Context) {
	groups, err := s.groups.FetchPendingGroups(ctx)
	if err != nil {
		s.logger.Error("Error fetching payment groups: %v", err)
		return
	}

	pending := make([]models.PaymentGroup, 0, len(groups))
	for _, group := range groups {
		if s.settled[group.ID] {
			continue
		}
		pending = append(pending, group)
	}
	metrics.PendingGroups.Set(float64(len(pending)))
	if len(pending) == 0 {
		s.logger.Debug("No pending payment groups found")
		return
	}
	s.logger.Info("Found %d pending payment groups", len(pending))

	for _, group := range pending {
		if ctx.Err() != nil {
			return
		}
		s.runGroup(ctx, group)
	}
}

func (s *Service) runGroup(ctx context.Context, group models.PaymentGroup) {
	s.logger.Info("Settling payment group %s (%d obligations)", group.ID, len(group.Obligations))

	result, err := s.sequencer.RunGroup(ctx, group.Obligations)

	switch {
	case err != nil:
		s.logger.Error("Payment group %s failed: %v", group.ID, err)
	case result.Blocked:
		s.logger.Error("Payment group %s blocked: %s", group.ID, result.Message)
	case result.Failed > 0:
		s.logger.Notice("Payment group %s partially settled: %d succeeded, %d failed, %d skipped",
			group.ID, result.Succeeded, result.Failed, result.Skipped)
	default:
		s.settled[group.ID] = true
		s.logger.Info("Payment group %s settled: %d succeeded, %d skipped",
			group.ID, result.Succeeded, result.Skipped)
	}
}
