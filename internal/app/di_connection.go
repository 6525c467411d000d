package app

import (
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	connectionRepository "github.com/allisson/channelvault/internal/connection/repository"
	connectionUsecase "github.com/allisson/channelvault/internal/connection/usecase"
	policyService "github.com/allisson/channelvault/internal/policy/service"
	"github.com/allisson/channelvault/internal/provider"
)

// Gate returns the policy gate built from the configured provider registries.
func (c *Container) Gate() (*policyService.Gate, error) {
	var err error
	c.gateInit.Do(func() {
		c.gate, err = c.initGate()
		if err != nil {
			c.initErrors["gate"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["gate"]; exists {
		return nil, storedErr
	}
	return c.gate, nil
}

// ConnectionRepository returns the connection repository based on database driver.
func (c *Container) ConnectionRepository() (connectionUsecase.ConnectionRepository, error) {
	var err error
	c.connectionRepoInit.Do(func() {
		c.connectionRepo, err = c.initConnectionRepository()
		if err != nil {
			c.initErrors["connectionRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["connectionRepo"]; exists {
		return nil, storedErr
	}
	return c.connectionRepo, nil
}

// MembershipRepository returns the brand membership repository based on database driver.
func (c *Container) MembershipRepository() (connectionUsecase.MembershipRepository, error) {
	var err error
	c.membershipRepoInit.Do(func() {
		c.membershipRepo, err = c.initMembershipRepository()
		if err != nil {
			c.initErrors["membershipRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["membershipRepo"]; exists {
		return nil, storedErr
	}
	return c.membershipRepo, nil
}

// Limiters returns one outbound rate limiter per provider. The OAuth client and the
// publisher of a provider share it.
func (c *Container) Limiters() map[string]*rate.Limiter {
	c.limitersInit.Do(func() {
		c.limiters = make(map[string]*rate.Limiter, len(c.config.PolicyProviders))
		for _, name := range c.config.PolicyProviders {
			c.limiters[name] = provider.NewLimiter(c.config.ProviderRateLimitPerSec, c.config.ProviderRateLimitBurst)
		}
	})
	return c.limiters
}

// OAuthClients returns the OAuth clients of every provider with a configured client id.
func (c *Container) OAuthClients() (map[string]*provider.OAuthClient, error) {
	var err error
	c.oauthClientsInit.Do(func() {
		c.oauthClients, err = c.initOAuthClients()
		if err != nil {
			c.initErrors["oauthClients"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["oauthClients"]; exists {
		return nil, storedErr
	}
	return c.oauthClients, nil
}

// TokenRefresher returns the token refresher.
func (c *Container) TokenRefresher() (*connectionUsecase.TokenRefresher, error) {
	var err error
	c.tokenRefresherInit.Do(func() {
		c.tokenRefresher, err = c.initTokenRefresher()
		if err != nil {
			c.initErrors["tokenRefresher"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["tokenRefresher"]; exists {
		return nil, storedErr
	}
	return c.tokenRefresher, nil
}

// ConnectionUseCase returns the connection use case wrapped with metrics.
func (c *Container) ConnectionUseCase() (connectionUsecase.ConnectionUseCase, error) {
	var err error
	c.connectionUseCaseInit.Do(func() {
		c.connectionUseCase, err = c.initConnectionUseCase()
		if err != nil {
			c.initErrors["connectionUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["connectionUseCase"]; exists {
		return nil, storedErr
	}
	return c.connectionUseCase, nil
}

// ProviderConfig merges the configured settings of a provider over its built-in
// endpoints.
func (c *Container) ProviderConfig(name string) provider.Config {
	cfg := provider.Defaults(name)
	settings, ok := c.config.Providers[name]
	if !ok {
		return cfg
	}

	cfg.ClientID = settings.ClientID
	cfg.ClientSecret = settings.ClientSecret
	cfg.RedirectURL = settings.RedirectURL
	if settings.AuthURL != "" {
		cfg.AuthURL = settings.AuthURL
	}
	if settings.TokenURL != "" {
		cfg.TokenURL = settings.TokenURL
	}
	if settings.ProfileURL != "" {
		cfg.ProfileURL = settings.ProfileURL
	}
	if settings.PublishURL != "" {
		cfg.PublishURL = settings.PublishURL
	}
	if len(settings.Scopes) > 0 {
		cfg.Scopes = settings.Scopes
	}
	return cfg
}

func (c *Container) initGate() (*policyService.Gate, error) {
	policies, err := policyService.LoadProviderPolicies(c.config.PolicyRegistryDir, c.config.PolicyProviders)
	if err != nil {
		return nil, fmt.Errorf("failed to load provider policies: %w", err)
	}
	gate, err := policyService.NewGate(policies...)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy gate: %w", err)
	}
	return gate, nil
}

func (c *Container) initConnectionRepository() (connectionUsecase.ConnectionRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for connection repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return connectionRepository.NewPostgreSQLConnectionRepository(db), nil
	case "mysql":
		return connectionRepository.NewMySQLConnectionRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initMembershipRepository() (connectionUsecase.MembershipRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for membership repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return connectionRepository.NewPostgreSQLMembershipRepository(db), nil
	case "mysql":
		return connectionRepository.NewMySQLMembershipRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initOAuthClients skips providers without a client id. Their tokens cannot be
// refreshed and fail with ErrTokenRefresh when they expire.
func (c *Container) initOAuthClients() (map[string]*provider.OAuthClient, error) {
	limiters := c.Limiters()
	clients := make(map[string]*provider.OAuthClient, len(c.config.PolicyProviders))

	for _, name := range c.config.PolicyProviders {
		cfg := c.ProviderConfig(name)
		if cfg.ClientID == "" {
			c.Logger().Warn("no oauth client configured", slog.String("provider", name))
			continue
		}
		client, err := provider.NewOAuthClient(cfg, nil, limiters[name])
		if err != nil {
			return nil, fmt.Errorf("failed to create oauth client for %s: %w", name, err)
		}
		clients[name] = client
	}
	return clients, nil
}

func (c *Container) initTokenRefresher() (*connectionUsecase.TokenRefresher, error) {
	connectionRepo, err := c.ConnectionRepository()
	if err != nil {
		return nil, err
	}
	envelopeCipher, err := c.EnvelopeCipher()
	if err != nil {
		return nil, err
	}
	gate, err := c.Gate()
	if err != nil {
		return nil, err
	}
	clients, err := c.OAuthClients()
	if err != nil {
		return nil, err
	}

	refreshers := make(map[string]connectionUsecase.OAuthRefresher, len(clients))
	for name, client := range clients {
		refreshers[name] = client
	}

	return connectionUsecase.NewTokenRefresher(
		connectionUsecase.RefreshConfig{
			Threshold: c.config.TokenRefreshThreshold,
			Timeout:   c.config.TokenRefreshTimeout,
		},
		connectionRepo,
		envelopeCipher,
		gate,
		refreshers,
		c.Logger(),
	), nil
}

func (c *Container) initConnectionUseCase() (connectionUsecase.ConnectionUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for connection use case: %w", err)
	}
	connectionRepo, err := c.ConnectionRepository()
	if err != nil {
		return nil, err
	}
	membershipRepo, err := c.MembershipRepository()
	if err != nil {
		return nil, err
	}
	envelopeCipher, err := c.EnvelopeCipher()
	if err != nil {
		return nil, err
	}
	gate, err := c.Gate()
	if err != nil {
		return nil, err
	}
	tokenRefresher, err := c.TokenRefresher()
	if err != nil {
		return nil, err
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, err
	}

	useCase := connectionUsecase.NewConnectionUseCase(
		txManager,
		connectionRepo,
		membershipRepo,
		envelopeCipher,
		gate,
		tokenRefresher,
		c.Logger(),
	)
	return connectionUsecase.NewConnectionUseCaseWithMetrics(useCase, businessMetrics), nil
}
