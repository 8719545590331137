package service

import (
	"alcyxob/personal-coach/internal/domain"
	"sync"
)

// AuthStatus is the coarse authentication state of a caller.
type AuthStatus int

const (
	StatusSignedOut AuthStatus = iota
	StatusAuthenticating
	StatusSignedIn
)

func (s AuthStatus) String() string {
	switch s {
	case StatusAuthenticating:
		return "authenticating"
	case StatusSignedIn:
		return "signed-in"
	default:
		return "signed-out"
	}
}

// AuthState is what subscribers receive. UID and UserType are set only when
// signed in.
type AuthState struct {
	Status   AuthStatus
	UID      string
	UserType domain.UserType
}

type subscriber struct {
	id int
	fn func(AuthState)
}

// AuthStateNotifier broadcasts auth state transitions. Delivery is
// synchronous, in subscription order, outside the internal lock, so a
// subscriber may call back into the notifier.
type AuthStateNotifier struct {
	mu     sync.Mutex
	state  AuthState
	subs   []subscriber
	nextID int
}

// NewAuthStateNotifier starts in the signed-out state.
func NewAuthStateNotifier() *AuthStateNotifier {
	return &AuthStateNotifier{}
}

// Subscribe registers fn and immediately delivers the current state to it.
// The returned func removes the subscription.
func (n *AuthStateNotifier) Subscribe(fn func(AuthState)) (unsubscribe func()) {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs = append(n.subs, subscriber{id: id, fn: fn})
	current := n.state
	n.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			for i, s := range n.subs {
				if s.id == id {
					n.subs = append(n.subs[:i], n.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Current returns the last published state.
func (n *AuthStateNotifier) Current() AuthState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Publish records state and delivers it to every current subscriber.
func (n *AuthStateNotifier) Publish(state AuthState) {
	n.mu.Lock()
	n.state = state
	subs := make([]subscriber, len(n.subs))
	copy(subs, n.subs)
	n.mu.Unlock()

	for _, s := range subs {
		s.fn(state)
	}
}

func (n *AuthStateNotifier) signedOut() {
	n.Publish(AuthState{Status: StatusSignedOut})
}

func (n *AuthStateNotifier) authenticating() {
	n.Publish(AuthState{Status: StatusAuthenticating})
}

func (n *AuthStateNotifier) signedIn(uid string, userType domain.UserType) {
	n.Publish(AuthState{Status: StatusSignedIn, UID: uid, UserType: userType})
}
