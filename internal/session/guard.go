package session

import (
	"sync"

	"github.com/AnshRaj112/planpal-backend/internal/identity"
)

// Navigator performs a client-side navigation.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

type authState int

const (
	authUnknown authState = iota
	authSignedIn
	authSignedOut
)

// Guard redirects to the login route once per transition into the signed
// out state, however many times nil is observed in a row.
type Guard struct {
	nav   Navigator
	route string

	mu    sync.Mutex
	state authState
}

func NewGuard(nav Navigator, route string) *Guard {
	return &Guard{nav: nav, route: route}
}

// Observe records id and reports whether it caused a redirect.
func (g *Guard) Observe(id *identity.Identity) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id != nil {
		g.state = authSignedIn
		return false
	}
	if g.state == authSignedOut {
		return false
	}
	g.state = authSignedOut
	if g.nav != nil {
		g.nav.Navigate(g.route)
	}
	return true
}
