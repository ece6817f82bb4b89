// Package service provides domain services for Sevault.
package service

import (
	"container/list"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/yndnr/sevault-go/internal/core/domain"
)

// ApplicationRepository defines the storage interface for application
// records.
type ApplicationRepository interface {
	// Get retrieves an application by ID.
	Get(ctx context.Context, appID string) (*domain.Application, error)

	// Create stores a new application.
	Create(ctx context.Context, app *domain.Application) error

	// Update updates an existing application.
	Update(ctx context.Context, app *domain.Application) error

	// Delete removes an application by ID.
	Delete(ctx context.Context, appID string) error

	// List retrieves all applications.
	List(ctx context.Context) ([]*domain.Application, error)
}

// ApplicationService handles application authentication, authorization and
// rate limiting, plus the admin management operations.
type ApplicationService struct {
	repo         ApplicationRepository
	cache        *ApplicationCache
	rateLimiters *RateLimiterRegistry
	globalAllow  []string // Global IP allowlist
}

// ApplicationServiceConfig holds configuration for ApplicationService.
type ApplicationServiceConfig struct {
	// CacheTTL is the cache time-to-live for authenticated applications
	// (default: 60s).
	CacheTTL time.Duration

	// CacheSize is the maximum number of cached applications (default:
	// 10,000).
	CacheSize int

	// GlobalAllowlist is the global IP/CIDR allowlist (empty = no
	// restriction).
	GlobalAllowlist []string
}

// DefaultApplicationServiceConfig returns default configuration.
func DefaultApplicationServiceConfig() *ApplicationServiceConfig {
	return &ApplicationServiceConfig{
		CacheTTL:        60 * time.Second,
		CacheSize:       10000,
		GlobalAllowlist: []string{},
	}
}

// NewApplicationService creates a new ApplicationService.
func NewApplicationService(repo ApplicationRepository, config *ApplicationServiceConfig) *ApplicationService {
	if config == nil {
		config = DefaultApplicationServiceConfig()
	}

	return &ApplicationService{
		repo:         repo,
		cache:        NewApplicationCache(config.CacheSize, config.CacheTTL),
		rateLimiters: NewRateLimiterRegistry(),
		globalAllow:  config.GlobalAllowlist,
	}
}

// AuthenticateRequest contains parameters for application authentication.
type AuthenticateRequest struct {
	AppID    string
	Secret   string
	ClientIP string
}

// AuthenticateResponse contains the result of application authentication.
type AuthenticateResponse struct {
	Valid bool
	App   *domain.Application
}

// Authenticate authenticates an application and returns its record.
//
// A missing application and a wrong secret produce the same credential
// error; admin lookups are the place to learn whether an ID exists.
func (s *ApplicationService) Authenticate(ctx context.Context, req *AuthenticateRequest) (*AuthenticateResponse, error) {
	// 1. Check cache first
	if cached := s.cache.Get(req.AppID); cached != nil {
		// Verify secret hash (constant-time comparison)
		if s.verifySecretHash(req.Secret, cached.SecretHash, cached.OldSecretHash, cached.IsInGracePeriod()) {
			// Still need to check if active and not expired
			if !cached.IsActive() {
				if cached.Status == domain.AppStatusDisabled {
					return nil, domain.ErrApplicationDisabled
				}
				if cached.IsExpired() {
					return nil, domain.ErrCredentialsInvalid.WithDetails("application expired")
				}
			}

			// Check IP allowlist
			if err := s.checkIPAllowlist(req.ClientIP, cached.Allowlist); err != nil {
				return nil, err
			}

			// Touch and return
			cached.Touch()
			return &AuthenticateResponse{
				Valid: true,
				App:   cached,
			}, nil
		}
		// Cache hit but secret mismatch, fall through to storage
	}

	// 2. Cache miss, query from storage
	app, err := s.repo.Get(ctx, req.AppID)
	if err != nil {
		return nil, domain.ErrCredentialsInvalid.WithCause(err)
	}

	// 3. Check status
	if app.Status != domain.AppStatusActive {
		return nil, domain.ErrApplicationDisabled
	}

	// 4. Check expiration
	if app.IsExpired() {
		return nil, domain.ErrCredentialsInvalid.WithDetails("application expired")
	}

	// 5. Check IP allowlist (global + application-specific)
	if err := s.checkIPAllowlist(req.ClientIP, app.Allowlist); err != nil {
		return nil, err
	}

	// 6. Verify secret (Argon2 - expensive operation)
	if !s.verifySecretHash(req.Secret, app.SecretHash, app.OldSecretHash, app.IsInGracePeriod()) {
		return nil, domain.ErrCredentialsInvalid.WithDetails("secret mismatch")
	}

	// 7. Update last used timestamp, best effort
	app.Touch()
	_ = s.repo.Update(ctx, app)

	// 8. Cache the authenticated application
	s.cache.Set(req.AppID, app)

	return &AuthenticateResponse{
		Valid: true,
		App:   app,
	}, nil
}

// CheckPermission checks if an application's role grants the permission.
func (s *ApplicationService) CheckPermission(app *domain.Application, perm domain.Permission) error {
	if !domain.HasPermission(app.Role, perm) {
		return domain.ErrPermissionDenied.WithDetails(
			"role " + string(app.Role) + " does not have permission " + string(perm),
		)
	}
	return nil
}

// CheckRateLimit checks if an application has exceeded its rate limit.
func (s *ApplicationService) CheckRateLimit(_ context.Context, appID string, rateLimit int) error {
	limiter := s.rateLimiters.GetOrCreate(appID, rateLimit)

	if !limiter.Allow() {
		// Calculate retry-after duration
		reservation := limiter.Reserve()
		delay := reservation.Delay()
		reservation.Cancel()

		return domain.ErrRateLimited.WithDetails(
			"rate limit exceeded, retry after " + delay.String(),
		)
	}

	return nil
}

// InvalidateCache invalidates the cache for a specific application.
func (s *ApplicationService) InvalidateCache(appID string) {
	s.cache.Delete(appID)
}

// checkIPAllowlist checks if the client IP is covered by the combined
// global and per-application allowlists.
func (s *ApplicationService) checkIPAllowlist(clientIP string, appAllowlist []string) error {
	var allowlist []string
	if len(s.globalAllow) > 0 || len(appAllowlist) > 0 {
		allowlist = make([]string, 0, len(s.globalAllow)+len(appAllowlist))
		allowlist = append(allowlist, s.globalAllow...)
		allowlist = append(allowlist, appAllowlist...)
	}

	// Empty allowlist means no restriction
	if len(allowlist) == 0 {
		return nil
	}

	ip := net.ParseIP(clientIP)
	if ip == nil {
		return domain.ErrIPNotAllowed.WithDetails("invalid client IP format")
	}

	for _, entry := range allowlist {
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				continue // Skip invalid CIDR
			}
			if ipNet.Contains(ip) {
				return nil
			}
		} else {
			allowedIP := net.ParseIP(entry)
			if allowedIP != nil && allowedIP.Equal(ip) {
				return nil
			}
		}
	}

	return domain.ErrIPNotAllowed.WithDetails("client IP not in allowlist")
}

// verifySecretHash verifies a secret against its hash(es).
// Supports the grace period after secret rotation.
func (s *ApplicationService) verifySecretHash(secret, currentHash, oldHash string, inGracePeriod bool) bool {
	if verifyArgon2Hash(secret, currentHash) {
		return true
	}

	// During the grace period, also try the pre-rotation hash
	if inGracePeriod && oldHash != "" {
		return verifyArgon2Hash(secret, oldHash)
	}

	return false
}

// verifyArgon2Hash verifies a secret against an Argon2id hash.
// Hash format: $argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>
func verifyArgon2Hash(secret, hash string) bool {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		return false
	}

	if parts[1] != "argon2id" {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	// Compute the hash with the same parameters secrets are created with
	computedHash := argon2.IDKey([]byte(secret), salt,
		domain.Argon2Time, domain.Argon2Memory, domain.Argon2Parallelism, uint32(len(expectedHash)))

	// Constant-time comparison to prevent timing attacks
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}

// ============================================================================
// ApplicationCache - LRU Cache for Authenticated Applications
// ============================================================================

// ApplicationCache implements an LRU cache with TTL for authenticated
// applications, so the Argon2 verification cost is paid once per TTL.
type ApplicationCache struct {
	mu       sync.RWMutex
	items    map[string]*list.Element
	order    *list.List // LRU order, front = most recently used
	capacity int
	ttl      time.Duration
}

type cacheEntry struct {
	appID     string
	app       *domain.Application
	expiresAt time.Time
}

// NewApplicationCache creates a new ApplicationCache with LRU eviction.
func NewApplicationCache(capacity int, ttl time.Duration) *ApplicationCache {
	if capacity <= 0 {
		capacity = 10000 // default capacity
	}
	return &ApplicationCache{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Get retrieves an application from cache if not expired.
// Moves the accessed item to the front (LRU behavior).
func (c *ApplicationCache) Get(appID string) *domain.Application {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[appID]
	if !exists {
		return nil
	}

	entry := elem.Value.(*cacheEntry)

	// Expired entries are removed on access
	if time.Now().After(entry.expiresAt) {
		c.order.Remove(elem)
		delete(c.items, appID)
		return nil
	}

	// Move to front (LRU behavior)
	c.order.MoveToFront(elem)
	return entry.app
}

// Set adds an application to the cache.
// Evicts oldest entries if at capacity (LRU eviction).
func (c *ApplicationCache) Set(appID string, app *domain.Application) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// If already exists, update and move to front
	if elem, exists := c.items[appID]; exists {
		entry := elem.Value.(*cacheEntry)
		entry.app = app
		entry.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}

	// Evict oldest entries if at capacity
	for c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			oldEntry := oldest.Value.(*cacheEntry)
			delete(c.items, oldEntry.appID)
			c.order.Remove(oldest)
		}
	}

	// Add new entry at front
	entry := &cacheEntry{
		appID:     appID,
		app:       app,
		expiresAt: time.Now().Add(c.ttl),
	}
	elem := c.order.PushFront(entry)
	c.items[appID] = elem
}

// Delete removes an application from the cache.
func (c *ApplicationCache) Delete(appID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[appID]; exists {
		c.order.Remove(elem)
		delete(c.items, appID)
	}
}

// Clear removes all entries from the cache.
func (c *ApplicationCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Size returns the current number of items in the cache.
func (c *ApplicationCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// ============================================================================
// Application Management Methods
// ============================================================================

// RegisterApplicationRequest contains parameters for registering a new
// application.
type RegisterApplicationRequest struct {
	Name        string
	Role        string
	Description string
	Allowlist   []string
	RateLimit   int    // 0 keeps the default
	ExpiresAt   int64  // Unix milliseconds, 0 = never
	CreatedBy   string // Registering application ID or "system"
}

// RegisterApplicationResponse contains the result of registration. Secret
// is the plaintext credential and is returned exactly once.
type RegisterApplicationResponse struct {
	AppID     string
	Secret    string
	Name      string
	Role      string
	CreatedAt time.Time
}

// RegisterApplication creates a new application.
func (s *ApplicationService) RegisterApplication(ctx context.Context, req *RegisterApplicationRequest) (*RegisterApplicationResponse, error) {
	if !domain.IsValidRole(req.Role) {
		return nil, domain.ErrApplicationValidation.WithDetails("role must be client or admin")
	}

	app, plainSecret, err := domain.NewApplication(req.Name, domain.Role(req.Role))
	if err != nil {
		return nil, err
	}

	app.Description = req.Description
	app.Allowlist = req.Allowlist
	app.ExpiresAt = req.ExpiresAt
	if req.RateLimit > 0 {
		app.RateLimit = req.RateLimit
	}
	if req.CreatedBy != "" {
		app.CreatedBy = req.CreatedBy
	}

	if err := app.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, app); err != nil {
		return nil, err
	}

	return &RegisterApplicationResponse{
		AppID:     app.ID,
		Secret:    plainSecret,
		Name:      app.Name,
		Role:      string(app.Role),
		CreatedAt: app.CreatedAtTime(),
	}, nil
}

// ListApplicationsRequest contains parameters for listing applications.
type ListApplicationsRequest struct {
	Role string // Optional filter by role
}

// ListApplicationsResponse contains the result of listing applications.
type ListApplicationsResponse struct {
	Apps []*ApplicationInfo
}

// ApplicationInfo is an application record without credential material.
type ApplicationInfo struct {
	AppID       string
	Name        string
	Role        string
	Description string
	Status      string
	RateLimit   int
	CreatedAt   time.Time
	LastUsedAt  time.Time
}

// ListApplications retrieves all applications (without secret hashes).
func (s *ApplicationService) ListApplications(ctx context.Context, req *ListApplicationsRequest) (*ListApplicationsResponse, error) {
	apps, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	var result []*ApplicationInfo
	for _, app := range apps {
		if req.Role != "" && string(app.Role) != req.Role {
			continue
		}

		result = append(result, &ApplicationInfo{
			AppID:       app.ID,
			Name:        app.Name,
			Role:        string(app.Role),
			Description: app.Description,
			Status:      string(app.Status),
			RateLimit:   app.RateLimit,
			CreatedAt:   app.CreatedAtTime(),
			LastUsedAt:  app.LastUsedAtTime(),
		})
	}

	return &ListApplicationsResponse{
		Apps: result,
	}, nil
}

// SetApplicationStatusRequest contains parameters for enabling or
// disabling an application.
type SetApplicationStatusRequest struct {
	AppID   string
	Enabled bool
}

// SetApplicationStatusResponse contains the result of the status change.
type SetApplicationStatusResponse struct {
	Success bool
}

// SetApplicationStatus enables or disables an application.
func (s *ApplicationService) SetApplicationStatus(ctx context.Context, req *SetApplicationStatusRequest) (*SetApplicationStatusResponse, error) {
	app, err := s.repo.Get(ctx, req.AppID)
	if err != nil {
		return nil, err
	}

	if req.Enabled {
		app.Status = domain.AppStatusActive
	} else {
		app.Status = domain.AppStatusDisabled
	}
	app.IncrVersion()

	if err := s.repo.Update(ctx, app); err != nil {
		return nil, err
	}

	// Invalidate cache so the change takes effect immediately
	s.cache.Delete(req.AppID)

	return &SetApplicationStatusResponse{Success: true}, nil
}

// RotateApplicationSecretRequest contains parameters for secret rotation.
type RotateApplicationSecretRequest struct {
	AppID string
}

// RotateApplicationSecretResponse contains the new plaintext secret,
// returned exactly once. The old secret keeps working for the grace
// period.
type RotateApplicationSecretResponse struct {
	AppID     string
	NewSecret string
}

// RotateApplicationSecret rotates the secret for an application.
func (s *ApplicationService) RotateApplicationSecret(ctx context.Context, req *RotateApplicationSecretRequest) (*RotateApplicationSecretResponse, error) {
	app, err := s.repo.Get(ctx, req.AppID)
	if err != nil {
		return nil, err
	}

	newSecret, err := app.RotateSecret()
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, app); err != nil {
		return nil, err
	}

	// Invalidate cache
	s.cache.Delete(req.AppID)

	return &RotateApplicationSecretResponse{
		AppID:     app.ID,
		NewSecret: newSecret,
	}, nil
}
