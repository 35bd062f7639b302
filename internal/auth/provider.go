package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/microsoft"

	"onedrive-console/internal/config"
)

// appScope requests every application permission granted to the client.
const appScope = "https://graph.microsoft.com/.default"

// deviceScopes are the delegated permissions requested by the device flow.
var deviceScopes = []string{
	"Files.ReadWrite.All",
	"User.Read",
	"offline_access",
}

// Provider owns the process-wide credential. It is constructed once at the
// composition root and shared by reference with the Drive gateway, which
// reads tokens through the graph.TokenSource interface.
//
// Concurrent first requests may race to populate the cache; the mutex bounds
// the duplicate work and the last writer wins. Once cached, Token returns
// the same credential until it expires or Reset is called.
type Provider struct {
	cfg    *config.Config
	logger *slog.Logger

	// endpoint is the Azure AD OAuth2 endpoint for the configured tenant.
	// Tests point it at a mock server.
	endpoint oauth2.Endpoint

	mu      sync.Mutex
	state   State
	prompt  *DevicePrompt
	src     oauth2.TokenSource
	lastErr error
}

// NewProvider creates a Provider for the configured flow. No remote call is
// made until a token is first requested (app flow) or a device login is
// started (device flow).
func NewProvider(cfg *config.Config, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		cfg:      cfg,
		logger:   logger,
		endpoint: microsoft.AzureADEndpoint(cfg.TenantID),
	}
}

// Flow returns the configured authentication flow.
func (p *Provider) Flow() config.Flow {
	return p.cfg.Flow
}

// Status returns a snapshot of the credential lifecycle for display and for
// the browser's polling endpoint.
func (p *Provider) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := Status{State: p.state, Err: p.lastErr}
	if p.prompt != nil {
		prompt := *p.prompt
		st.Prompt = &prompt
	}

	return st
}

// Token returns the current bearer token, satisfying graph.TokenSource.
// App flow acquires lazily on first call; device flow requires a completed
// StartDeviceLogin and returns ErrNotAuthenticated until then. The
// underlying oauth2 token source re-acquires silently when the cached token
// expires, so callers never see a stale credential.
func (p *Provider) Token() (string, error) {
	p.mu.Lock()
	src := p.src
	p.mu.Unlock()

	if src == nil {
		if p.cfg.Flow != config.FlowApp {
			return "", ErrNotAuthenticated
		}

		return p.acquireAppToken()
	}

	tok, err := src.Token()
	if err != nil {
		p.fail(err)
		return "", &AuthError{Flow: p.cfg.Flow, Err: err}
	}

	return tok.AccessToken, nil
}

// acquireAppToken performs the confidential-client credential exchange and
// caches the resulting token source.
func (p *Provider) acquireAppToken() (string, error) {
	p.mu.Lock()
	if p.state == StateUninitialized {
		p.state = StateAcquiring
	}
	p.mu.Unlock()

	p.logger.Info("acquiring app-only token",
		slog.String("tenant_id", p.cfg.TenantID),
	)

	cc := &clientcredentials.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		TokenURL:     p.endpoint.TokenURL,
		Scopes:       []string{appScope},
	}

	// The token source outlives any single request, so it is bound to the
	// background context rather than a request context.
	src := cc.TokenSource(context.Background())

	tok, err := src.Token()
	if err != nil {
		p.fail(err)
		return "", &AuthError{Flow: p.cfg.Flow, Err: err}
	}

	p.mu.Lock()
	p.src = src
	p.state = StateCached
	p.lastErr = nil
	p.mu.Unlock()

	p.logger.Info("app-only token acquired", slog.Time("expiry", tok.Expiry))

	return tok.AccessToken, nil
}

// StartDeviceLogin begins the device-code flow in a background goroutine so
// the serving thread is never blocked on out-of-band user authorization.
// Progress is observable through Status; calling it while a flow is already
// underway (or completed) is a no-op.
func (p *Provider) StartDeviceLogin() error {
	if p.cfg.Flow != config.FlowDevice {
		return fmt.Errorf("auth: device login not available in %s flow", p.cfg.Flow)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateUninitialized {
		return nil
	}

	p.state = StateAcquiring
	p.lastErr = nil

	// Background context: the flow must survive the HTTP request that
	// started it.
	go p.runDeviceFlow(context.Background())

	return nil
}

// runDeviceFlow requests a device code, publishes the verification prompt,
// then blocks polling the token endpoint until the user authorizes, denies,
// or the code expires.
func (p *Provider) runDeviceFlow(ctx context.Context) {
	ocfg := &oauth2.Config{
		ClientID: p.cfg.ClientID,
		Scopes:   deviceScopes,
		Endpoint: p.endpoint,
	}

	da, err := ocfg.DeviceAuth(ctx)
	if err != nil {
		p.fail(fmt.Errorf("device auth request failed: %w", err))
		return
	}

	p.logger.Info("device code received, waiting for user authorization",
		slog.String("user_code", da.UserCode),
		slog.String("verification_uri", da.VerificationURI),
	)

	p.mu.Lock()
	p.state = StateAwaitingVerification
	p.prompt = &DevicePrompt{
		UserCode:        da.UserCode,
		VerificationURI: da.VerificationURI,
	}
	p.mu.Unlock()

	tok, err := ocfg.DeviceAccessToken(ctx, da)
	if err != nil {
		p.fail(fmt.Errorf("device code authorization failed: %w", err))
		return
	}

	p.mu.Lock()
	p.src = ocfg.TokenSource(ctx, tok)
	p.state = StateCached
	p.prompt = nil
	p.lastErr = nil
	p.mu.Unlock()

	p.logger.Info("user authorized, credential cached",
		slog.Time("expiry", tok.Expiry),
	)
}

// Reset drops the cached credential and returns the provider to
// Uninitialized, forcing a fresh acquisition on the next use.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = StateUninitialized
	p.prompt = nil
	p.src = nil
	p.lastErr = nil

	p.logger.Info("credential cache reset")
}

// fail records an acquisition failure and returns to Uninitialized so a new
// attempt can be started.
func (p *Provider) fail(err error) {
	p.logger.Warn("credential acquisition failed",
		slog.String("flow", string(p.cfg.Flow)),
		slog.String("error", err.Error()),
	)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = StateUninitialized
	p.prompt = nil
	p.src = nil
	p.lastErr = &AuthError{Flow: p.cfg.Flow, Err: err}
}
