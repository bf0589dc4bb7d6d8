package services

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cheems/transit/internal/models"
	"github.com/cheems/transit/internal/repositories"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc        func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc     func(ctx context.Context, email string) (*models.User, error)
	CreateFunc         func(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePasswordFunc func(ctx context.Context, id, passwordHash string, changedAt time.Time) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash, changedAt)
	}
	return nil
}

// MockTokenRevocationRepository keeps revoked JTIs in memory unless the
// function fields override it.
type MockTokenRevocationRepository struct {
	RevokeTokenFunc    func(ctx context.Context, jti, userID, tokenType string, expiresAt time.Time, reason string) error
	IsTokenRevokedFunc func(ctx context.Context, jti string) (bool, error)

	mu      sync.Mutex
	revoked map[string]string
}

func (m *MockTokenRevocationRepository) RevokeToken(ctx context.Context, jti, userID, tokenType string, expiresAt time.Time, reason string) error {
	if m.RevokeTokenFunc != nil {
		return m.RevokeTokenFunc(ctx, jti, userID, tokenType, expiresAt, reason)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revoked == nil {
		m.revoked = make(map[string]string)
	}
	m.revoked[jti] = reason
	return nil
}

func (m *MockTokenRevocationRepository) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if m.IsTokenRevokedFunc != nil {
		return m.IsTokenRevokedFunc(ctx, jti)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[jti]
	return ok, nil
}

// MemoryLoginAttemptRepository is an in-memory LoginAttemptRepository.
// WithAccountLock serializes callers the way the advisory lock does.
type MemoryLoginAttemptRepository struct {
	CreateErr error

	accountMu sync.Mutex
	mu        sync.Mutex
	attempts  []*models.LoginAttempt
}

func (m *MemoryLoginAttemptRepository) LatestAttempt(ctx context.Context, email string, since time.Time) (*models.LoginAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *models.LoginAttempt
	for _, a := range m.attempts {
		if a.Email != email || a.AttemptTime.Before(since) {
			continue
		}
		if latest == nil || !a.AttemptTime.Before(latest.AttemptTime) {
			latest = a
		}
	}
	return latest, nil
}

func (m *MemoryLoginAttemptRepository) CountFailedSince(ctx context.Context, email string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, a := range m.attempts {
		if a.Email == email && !a.Success && !a.AttemptTime.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryLoginAttemptRepository) Create(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *attempt
	stored.ID = strconv.Itoa(len(m.attempts) + 1)
	attempt.ID = stored.ID
	m.attempts = append(m.attempts, &stored)
	return nil
}

func (m *MemoryLoginAttemptRepository) WithAccountLock(ctx context.Context, email string, fn func(store repositories.LoginAttemptStore) error) error {
	m.accountMu.Lock()
	defer m.accountMu.Unlock()
	return fn(m)
}

// Attempts returns a copy of the log, oldest first.
func (m *MemoryLoginAttemptRepository) Attempts() []models.LoginAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.LoginAttempt, 0, len(m.attempts))
	for _, a := range m.attempts {
		out = append(out, *a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AttemptTime.Before(out[j].AttemptTime) })
	return out
}

// MockCredentialVerifier implements CredentialVerifier for testing
type MockCredentialVerifier struct {
	VerifyFunc func(ctx context.Context, email, password string) (*Session, error)
}

func (m *MockCredentialVerifier) Verify(ctx context.Context, email, password string) (*Session, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, email, password)
	}
	return nil, models.ErrNotFound
}

// RecordingNotifier captures notifications instead of delivering them.
type RecordingNotifier struct {
	Err error

	mu   sync.Mutex
	Sent []SentMessage
}

type SentMessage struct {
	Recipient string
	Message   Message
}

func (n *RecordingNotifier) Notify(ctx context.Context, recipient string, msg Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, SentMessage{Recipient: recipient, Message: msg})
	return n.Err
}

// MockVehicleRepository implements VehicleRepository for testing
type MockVehicleRepository struct {
	GetByIDFunc      func(ctx context.Context, id string) (*models.Vehicle, error)
	GetByPlateFunc   func(ctx context.Context, plate string) (*models.Vehicle, error)
	ListFunc         func(ctx context.Context, limit, offset int) ([]*models.Vehicle, error)
	ListByPlatesFunc func(ctx context.Context, plates []string) ([]*models.Vehicle, error)
	CreateFunc       func(ctx context.Context, vehicle *models.Vehicle) (*models.Vehicle, error)
	UpdateFunc       func(ctx context.Context, id string, vehicle *models.Vehicle) (*models.Vehicle, error)
	DeleteFunc       func(ctx context.Context, id string) error
}

func (m *MockVehicleRepository) GetByID(ctx context.Context, id string) (*models.Vehicle, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockVehicleRepository) GetByPlate(ctx context.Context, plate string) (*models.Vehicle, error) {
	if m.GetByPlateFunc != nil {
		return m.GetByPlateFunc(ctx, plate)
	}
	return nil, models.ErrNotFound
}

func (m *MockVehicleRepository) List(ctx context.Context, limit, offset int) ([]*models.Vehicle, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.Vehicle{}, nil
}

func (m *MockVehicleRepository) ListByPlates(ctx context.Context, plates []string) ([]*models.Vehicle, error) {
	if m.ListByPlatesFunc != nil {
		return m.ListByPlatesFunc(ctx, plates)
	}
	return []*models.Vehicle{}, nil
}

func (m *MockVehicleRepository) Create(ctx context.Context, vehicle *models.Vehicle) (*models.Vehicle, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, vehicle)
	}
	return nil, models.ErrInternalServer
}

func (m *MockVehicleRepository) Update(ctx context.Context, id string, vehicle *models.Vehicle) (*models.Vehicle, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, vehicle)
	}
	return nil, models.ErrNotFound
}

func (m *MockVehicleRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockRouteRepository implements RouteRepository for testing
type MockRouteRepository struct {
	GetByIDFunc func(ctx context.Context, id string) (*models.Route, error)
	ListFunc    func(ctx context.Context, vehicleID string, limit, offset int) ([]*models.Route, error)
	CreateFunc  func(ctx context.Context, route *models.Route) (*models.Route, error)
	DeleteFunc  func(ctx context.Context, id string) error
}

func (m *MockRouteRepository) GetByID(ctx context.Context, id string) (*models.Route, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockRouteRepository) List(ctx context.Context, vehicleID string, limit, offset int) ([]*models.Route, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, vehicleID, limit, offset)
	}
	return []*models.Route{}, nil
}

func (m *MockRouteRepository) Create(ctx context.Context, route *models.Route) (*models.Route, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, route)
	}
	created := *route
	created.ID = "route-" + route.Name
	return &created, nil
}

func (m *MockRouteRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// NewTestUser creates a test user with the given hash
func NewTestUser(id, email, passwordHash string) *models.User {
	now := time.Now().Add(-24 * time.Hour)
	return &models.User{
		ID:                id,
		Email:             email,
		PasswordHash:      passwordHash,
		Name:              "Test User",
		Role:              models.RoleUser,
		CreatedAt:         now,
		UpdatedAt:         now,
		PasswordChangedAt: &now,
	}
}
