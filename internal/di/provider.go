package di

import (
	"context"
	"database/sql"
	"time"

	"github.com/hustlexp/hustlexp-core/internal/capability"
	"github.com/hustlexp/hustlexp-core/internal/config"
	"github.com/hustlexp/hustlexp-core/internal/dispute"
	"github.com/hustlexp/hustlexp-core/internal/domain"
	"github.com/hustlexp/hustlexp-core/internal/escrow"
	"github.com/hustlexp/hustlexp-core/internal/killswitch"
	"github.com/hustlexp/hustlexp-core/internal/ledger"
	"github.com/hustlexp/hustlexp-core/internal/notify"
	"github.com/hustlexp/hustlexp-core/internal/outbox"
	"github.com/hustlexp/hustlexp-core/internal/payment"
	"github.com/hustlexp/hustlexp-core/internal/ratelimit"
	"github.com/hustlexp/hustlexp-core/internal/rpcedge"
	"github.com/hustlexp/hustlexp-core/internal/storage/postgres"
	"github.com/hustlexp/hustlexp-core/internal/task"
	"github.com/hustlexp/hustlexp-core/internal/trust"
	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

// Provider configures and registers hustlexpd's services in the container.
// Two collaborators are sourced outside this core's schema: a
// trust.StatsProvider (on-time ratio, distinct-poster count,
// security-deposit status, §4.6) and a ledger.PaymentVerifier (external
// payment confirmation, §4.8). Until a real integration is injected via
// WithStatsProvider/WithPaymentVerifier, RegisterAll wires the
// conservative, fail-closed defaults (trust.ConservativeStats,
// ledger.DenyVerifier) so the process still boots but never falsely
// promotes a user or clears tax debt on an unverified payment.
type Provider struct {
	container *Container
	config    *config.Config
	stats     trust.StatsProvider
	verifier  ledger.PaymentVerifier
}

// NewProvider creates a new service provider.
func NewProvider(container *Container, cfg *config.Config) *Provider {
	return &Provider{container: container, config: cfg}
}

// WithStatsProvider injects the promotion-stats collaborator.
func (p *Provider) WithStatsProvider(stats trust.StatsProvider) *Provider {
	p.stats = stats
	return p
}

// WithPaymentVerifier injects the tax-payment verification collaborator.
func (p *Provider) WithPaymentVerifier(verifier ledger.PaymentVerifier) *Provider {
	p.verifier = verifier
	return p
}

// RegisterAll registers every builder. Construction is lazy: nothing opens
// a connection or allocates an engine until first Get, mirroring the
// teacher's lazy builder registration.
func (p *Provider) RegisterAll() error {
	p.container.Register(ServiceConfig, p.config)

	p.registerStorageBuilders()
	p.registerEngineBuilders()
	p.registerOutboxBuilders()

	return nil
}

func (p *Provider) registerStorageBuilders() {
	p.container.RegisterBuilder(ServiceDB, func(c *Container) (interface{}, error) {
		return postgres.Open(context.Background(), p.config.Database)
	})

	p.container.RegisterBuilder(ServiceTxRunner, func(c *Container) (interface{}, error) {
		dbVal, err := c.Get(ServiceDB)
		if err != nil {
			return nil, err
		}
		return txrunner.New(dbVal.(*sql.DB)), nil
	})
}

func (p *Provider) registerOutboxBuilders() {
	p.container.RegisterBuilder(ServiceOutboxWriter, func(c *Container) (interface{}, error) {
		return outbox.NewWriter(), nil
	})

	p.container.RegisterBuilder(ServiceDispatcher, func(c *Container) (interface{}, error) {
		runnerVal, err := c.Get(ServiceTxRunner)
		if err != nil {
			return nil, err
		}
		trustVal, err := c.Get(ServiceTrust)
		if err != nil {
			return nil, err
		}

		sinks := map[string]outbox.Sink{
			"trust_penalties":    trust.NewPenaltySink(trustVal.(*trust.Engine)),
			"user_notifications": notify.NewSink(notify.NewLogDispatcher()),
		}
		cfg := outbox.Config{
			PollInterval:    p.config.Outbox.PollInterval,
			ClaimBatch:      p.config.Outbox.ClaimBatch,
			WorkerCount:     p.config.Outbox.WorkerCount,
			StuckJobTimeout: p.config.Outbox.StuckJobTimeout,
		}
		return outbox.New(runnerVal.(*txrunner.Runner), sinks, cfg), nil
	})
}

func (p *Provider) registerEngineBuilders() {
	p.container.RegisterBuilder(ServiceEscrow, func(c *Container) (interface{}, error) {
		return escrow.New(), nil
	})

	p.container.RegisterBuilder(ServiceTrust, func(c *Container) (interface{}, error) {
		if p.stats == nil {
			p.stats = trust.ConservativeStats{}
		}
		runnerVal, err := c.Get(ServiceTxRunner)
		if err != nil {
			return nil, err
		}
		return trust.New(runnerVal.(*txrunner.Runner), p.stats, 4096), nil
	})

	p.container.RegisterBuilder(ServiceTask, func(c *Container) (interface{}, error) {
		trustVal, err := c.Get(ServiceTrust)
		if err != nil {
			return nil, err
		}
		escrowVal, err := c.Get(ServiceEscrow)
		if err != nil {
			return nil, err
		}
		minTier, err := domain.ParseTrustTier(p.config.Instant.MinTier)
		if err != nil {
			return nil, err
		}
		minSensitiveTier, err := domain.ParseTrustTier(p.config.Instant.MinSensitiveTier)
		if err != nil {
			return nil, err
		}

		deps := task.Deps{
			Trust:  trustVal.(*trust.Engine),
			Escrow: escrowVal.(*escrow.Engine),
			Limiter: ratelimit.NewSlidingWindow(
				p.config.Instant.RateLimitPerMinute, time.Minute, 4096,
			),
			KillSwitch: killswitch.Static{Flags: map[string]bool{
				"instant_mode": p.config.Instant.KillSwitch,
			}},
			Config: task.Config{
				MinInstantTier:          minTier,
				MinSensitiveInstantTier: minSensitiveTier,
			},
		}
		return task.New(deps), nil
	})

	p.container.RegisterBuilder(ServicePayment, func(c *Container) (interface{}, error) {
		runnerVal, err := c.Get(ServiceTxRunner)
		if err != nil {
			return nil, err
		}
		escrowVal, err := c.Get(ServiceEscrow)
		if err != nil {
			return nil, err
		}
		taskVal, err := c.Get(ServiceTask)
		if err != nil {
			return nil, err
		}
		return payment.New(runnerVal.(*txrunner.Runner), escrowVal.(*escrow.Engine), taskVal.(*task.Engine)), nil
	})

	p.container.RegisterBuilder(ServiceDispute, func(c *Container) (interface{}, error) {
		taskVal, err := c.Get(ServiceTask)
		if err != nil {
			return nil, err
		}
		escrowVal, err := c.Get(ServiceEscrow)
		if err != nil {
			return nil, err
		}
		trustVal, err := c.Get(ServiceTrust)
		if err != nil {
			return nil, err
		}
		return dispute.New(taskVal.(*task.Engine), escrowVal.(*escrow.Engine), trustVal.(*trust.Engine)), nil
	})

	p.container.RegisterBuilder(ServiceLedger, func(c *Container) (interface{}, error) {
		if p.verifier == nil {
			p.verifier = ledger.DenyVerifier{}
		}
		runnerVal, err := c.Get(ServiceTxRunner)
		if err != nil {
			return nil, err
		}
		escrowVal, err := c.Get(ServiceEscrow)
		if err != nil {
			return nil, err
		}
		return ledger.New(runnerVal.(*txrunner.Runner), escrowVal.(*escrow.Engine), p.verifier), nil
	})

	p.container.RegisterBuilder(ServiceCapability, func(c *Container) (interface{}, error) {
		return capability.New(), nil
	})
}

// GetConfig returns the configuration from the container.
func (p *Provider) GetConfig() *config.Config {
	return p.config
}

// BuildFacade resolves every engine from the container into the bundle
// rpcedge.Server hands to its registered handlers.
func (p *Provider) BuildFacade() (*rpcedge.Facade, error) {
	taskVal, err := p.container.Get(ServiceTask)
	if err != nil {
		return nil, err
	}
	escrowVal, err := p.container.Get(ServiceEscrow)
	if err != nil {
		return nil, err
	}
	trustVal, err := p.container.Get(ServiceTrust)
	if err != nil {
		return nil, err
	}
	paymentVal, err := p.container.Get(ServicePayment)
	if err != nil {
		return nil, err
	}
	disputeVal, err := p.container.Get(ServiceDispute)
	if err != nil {
		return nil, err
	}
	ledgerVal, err := p.container.Get(ServiceLedger)
	if err != nil {
		return nil, err
	}
	capabilityVal, err := p.container.Get(ServiceCapability)
	if err != nil {
		return nil, err
	}

	return &rpcedge.Facade{
		Task:       taskVal.(*task.Engine),
		Escrow:     escrowVal.(*escrow.Engine),
		Trust:      trustVal.(*trust.Engine),
		Payment:    paymentVal.(*payment.Engine),
		Dispute:    disputeVal.(*dispute.Engine),
		Ledger:     ledgerVal.(*ledger.Engine),
		Capability: capabilityVal.(*capability.Engine),
	}, nil
}
