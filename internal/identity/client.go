package identity

import (
	"context"
	"sync"
)

var _ Provider = (*Client)(nil)

// Client is a Provider bound to one caller. It holds that caller's current
// session; the credentials themselves live in the Directory.
type Client struct {
	dir *Directory

	mu      sync.Mutex
	session *Session
}

func (c *Client) setSession(s *Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// CreateAccount registers email/password and signs the new account in.
func (c *Client) CreateAccount(ctx context.Context, email, password string) (string, error) {
	cred, err := c.dir.register(ctx, email, password)
	if err != nil {
		return "", err
	}
	c.setSession(sessionFor(cred))
	return cred.UID, nil
}

// SignIn verifies the credentials and replaces the current session.
func (c *Client) SignIn(ctx context.Context, email, password string) (string, error) {
	cred, err := c.dir.authenticate(ctx, email, password)
	if err != nil {
		return "", err
	}
	c.setSession(sessionFor(cred))
	return cred.UID, nil
}

// SignOut drops the current session. Tokens already issued stay valid until
// they expire.
func (c *Client) SignOut(ctx context.Context) error {
	c.setSession(nil)
	return nil
}

// CreateDisposableSession signs in a new anonymous identity.
func (c *Client) CreateDisposableSession(ctx context.Context) (string, error) {
	cred, err := c.dir.createAnonymous(ctx)
	if err != nil {
		return "", err
	}
	c.setSession(sessionFor(cred))
	return cred.UID, nil
}

// DeleteCurrentSessionIfDisposable deletes the anonymous identity and clears
// the session. A registered session is left alone.
func (c *Client) DeleteCurrentSessionIfDisposable(ctx context.Context) error {
	c.mu.Lock()
	s := c.session
	if s == nil || !s.Disposable {
		c.mu.Unlock()
		return nil
	}
	c.session = nil
	c.mu.Unlock()

	return c.dir.DeleteAccount(ctx, s.UID)
}

// CurrentSession returns a copy of the session, or nil.
func (c *Client) CurrentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// Token mints a bearer token for the current session.
func (c *Client) Token() (string, error) {
	s := c.CurrentSession()
	if s == nil {
		return "", newError(CodeNoSession, "identity: no user is signed in")
	}
	return c.dir.sign(*s)
}
