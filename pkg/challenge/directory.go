package challenge

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/fleetdesk/loginverify/pkg/verifyapi"
)

// Directory resolves users, roles, and permission sets for issued sessions.
type Directory interface {
	FindUserByEmail(ctx context.Context, email string) (*verifyapi.User, error)
	GetUser(ctx context.Context, userID string) (*verifyapi.User, error)
	GetRole(ctx context.Context, roleID string) (*verifyapi.Role, error)
	GetPermissions(ctx context.Context, permissionID string) (verifyapi.Permissions, error)
}

// InMemDirectory is a seedable in-memory Directory.
type InMemDirectory struct {
	mu          sync.RWMutex
	users       map[string]verifyapi.User
	byEmail     map[string]string
	roles       map[string]verifyapi.Role
	permissions map[string]verifyapi.Permissions
}

func NewInMemDirectory() *InMemDirectory {
	return &InMemDirectory{
		users:       make(map[string]verifyapi.User),
		byEmail:     make(map[string]string),
		roles:       make(map[string]verifyapi.Role),
		permissions: make(map[string]verifyapi.Permissions),
	}
}

// AddUser registers a user together with its role and permission set.
func (d *InMemDirectory) AddUser(user verifyapi.User, role verifyapi.Role, perms verifyapi.Permissions) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.users[user.ID] = user
	d.byEmail[normalizeEmail(user.Email)] = user.ID
	d.roles[role.ID] = role
	d.permissions[role.PermissionID] = perms
}

func (d *InMemDirectory) FindUserByEmail(ctx context.Context, email string) (*verifyapi.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	userID, exists := d.byEmail[normalizeEmail(email)]
	if !exists {
		return nil, nil
	}
	user := d.users[userID]
	return &user, nil
}

func (d *InMemDirectory) GetUser(ctx context.Context, userID string) (*verifyapi.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, exists := d.users[userID]
	if !exists {
		return nil, nil
	}
	return &user, nil
}

func (d *InMemDirectory) GetRole(ctx context.Context, roleID string) (*verifyapi.Role, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	role, exists := d.roles[roleID]
	if !exists {
		return nil, nil
	}
	return &role, nil
}

func (d *InMemDirectory) GetPermissions(ctx context.Context, permissionID string) (verifyapi.Permissions, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	perms, exists := d.permissions[permissionID]
	if !exists {
		return nil, nil
	}
	out := make(verifyapi.Permissions, len(perms))
	for k, v := range perms {
		out[k] = v
	}
	return out, nil
}

// SeedDemoDirectory fills the directory with a dispatcher and an accountant
// for local development.
func SeedDemoDirectory(d *InMemDirectory) {
	dispatcherRole := verifyapi.Role{
		ID:           uuid.New().String(),
		Name:         "dispatcher",
		PermissionID: uuid.New().String(),
	}
	d.AddUser(verifyapi.User{
		ID:        uuid.New().String(),
		Email:     "dispatcher@example.com",
		FirstName: "Dana",
		LastName:  "Dispatch",
		RoleID:    dispatcherRole.ID,
	}, dispatcherRole, verifyapi.Permissions{
		"loads.view":       true,
		"drivers.view":     true,
		"dispatchers.view": true,
	})

	accountantRole := verifyapi.Role{
		ID:           uuid.New().String(),
		Name:         "accountant",
		PermissionID: uuid.New().String(),
	}
	d.AddUser(verifyapi.User{
		ID:        uuid.New().String(),
		Email:     "accountant@example.com",
		FirstName: "Avery",
		LastName:  "Books",
		RoleID:    accountantRole.ID,
	}, accountantRole, verifyapi.Permissions{
		"invoices.view":       true,
		"driver-pay.view":     true,
		"relay-payments.view": true,
	})
}
