package access

import (
	"errors"
	"github.com/MintBay/market-engine/internal/entity"
	"sync"
)

var (
	ErrNotAdmin = errors.New("caller is not the admin")
)

// Control is the capability-check collaborator handed to every engine.
// The admin identity holds every role implicitly.
type Control interface {
	Grant(caller, identity string, role entity.Role) error
	Revoke(caller, identity string, role entity.Role) error
	Has(identity string, role entity.Role) bool
	Admin() string
}

type control struct {
	mu    sync.RWMutex
	admin string
	roles map[entity.Role]map[string]bool
}

func New(admin string) Control {
	return &control{
		admin: admin,
		roles: make(map[entity.Role]map[string]bool),
	}
}

func (c *control) Grant(caller, identity string, role entity.Role) error {
	if !c.Has(caller, entity.AdminRole) {
		return ErrNotAdmin
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.roles[role] == nil {
		c.roles[role] = make(map[string]bool)
	}
	c.roles[role][identity] = true

	return nil
}

func (c *control) Revoke(caller, identity string, role entity.Role) error {
	if !c.Has(caller, entity.AdminRole) {
		return ErrNotAdmin
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.roles[role] != nil {
		delete(c.roles[role], identity)
	}

	return nil
}

func (c *control) Has(identity string, role entity.Role) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if identity == c.admin {
		return true
	}

	return c.roles[role][identity]
}

func (c *control) Admin() string {
	return c.admin
}
