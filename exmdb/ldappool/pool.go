// Package ldappool implements the resource pool (spec.md §4.8, component
// C10): a bounded set of (primary, bind) LDAP connection pairs, checked
// out for the duration of one directory operation and returned when
// done. Checkout/return follow the same discipline the teacher uses for
// its sqlitex.Pool: get_wait blocks on a channel of available slots,
// put pushes the slot back rather than closing it, and no lock is held
// across a call that can block on network I/O.
//
// Grounded on original_source/exch/ldap_adaptor.cpp's g_conn_pool
// (gromox::resource_pool<twoconn>) and its get_wait/resize/clear/bump
// operations, reimplemented with a buffered channel in place of the C++
// condition variable, and with github.com/go-ldap/ldap/v3 in place of
// the C LDAP SDK.
package ldappool

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ldap/ldap/v3"
)

// Config carries everything a connection pair needs to dial and
// (optionally) bind, mirroring ldap_adaptor.cpp's g_ldap_host/g_use_tls/
// g_bind_user/g_bind_pass globals.
type Config struct {
	URL      string // e.g. "ldaps://ldap.example.com:636"
	BindDN   string
	BindPass string
	TLS      *tls.Config // nil disables explicit TLS config (ldap.DialURL default)
}

// Conn is one checked-out pair: primary for anonymous/service lookups,
// bind for verifying a user's own credentials. Splitting the two mirrors
// ldap_adaptor.cpp's twoconn{meta, bind}.
type Conn struct {
	Primary *ldap.Conn
	Bind    *ldap.Conn
}

func (c *Conn) close() {
	if c.Primary != nil {
		c.Primary.Close()
	}
	if c.Bind != nil {
		c.Bind.Close()
	}
}

// Pool is a bounded, resizable set of *Conn slots. The zero value is not
// usable; construct with New.
type Pool struct {
	cfg Config

	mu    sync.Mutex
	slots chan *Conn // buffered to the pool's current size; nil entries mean "not yet dialed"
}

// New constructs a pool of the given size, all slots initially empty
// (dialed lazily on first checkout, same as ldap_adaptor.cpp's
// make_conn-on-demand rather than at startup).
func New(cfg Config, size int) *Pool {
	p := &Pool{cfg: cfg}
	p.slots = make(chan *Conn, size)
	for i := 0; i < size; i++ {
		p.slots <- nil
	}
	return p
}

// Size reports the pool's current capacity.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cap(p.slots)
}

func (p *Pool) dial() (*Conn, error) {
	primary, err := p.dialOne()
	if err != nil {
		return nil, fmt.Errorf("ldappool: dial primary: %w", err)
	}
	bind, err := p.dialOne()
	if err != nil {
		primary.Close()
		return nil, fmt.Errorf("ldappool: dial bind: %w", err)
	}
	if p.cfg.BindDN != "" {
		if err := primary.Bind(p.cfg.BindDN, p.cfg.BindPass); err != nil {
			primary.Close()
			bind.Close()
			return nil, fmt.Errorf("ldappool: bind primary: %w", err)
		}
	}
	return &Conn{Primary: primary, Bind: bind}, nil
}

func (p *Pool) dialOne() (*ldap.Conn, error) {
	var opts []ldap.DialOpt
	if p.cfg.TLS != nil {
		opts = append(opts, ldap.DialWithTLSConfig(p.cfg.TLS))
	}
	return ldap.DialURL(p.cfg.URL, opts...)
}

// ErrClosed is returned by a GetWait that was blocked on the slot
// channel when Clear or Resize replaced it; the pool itself stays usable.
var ErrClosed = errors.New("ldappool: pool closed")

// GetWait blocks until a slot is available, dialing lazily if the slot
// has never been used or was cleared. It mirrors
// resource_pool<twoconn>::get_wait(): the caller owns the pair until it
// calls Put.
func (p *Pool) GetWait(ctx context.Context) (*Conn, error) {
	p.mu.Lock()
	slots := p.slots
	p.mu.Unlock()

	select {
	case slot, ok := <-slots:
		if !ok {
			return nil, ErrClosed
		}
		if slot != nil {
			return slot, nil
		}
		conn, err := p.dial()
		if err != nil {
			// Return an empty slot so the pool doesn't shrink on a dial failure.
			slots <- nil
			return nil, err
		}
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Put returns a pair to the pool. A nil conn is accepted and simply
// replenishes an empty slot (the caller determined the pair was broken
// and closed it itself).
func (p *Pool) Put(conn *Conn) {
	p.mu.Lock()
	slots := p.slots
	p.mu.Unlock()
	select {
	case slots <- conn:
	default:
		// Pool was resized smaller while this conn was checked out;
		// there is no room for it back. Close it rather than leak it.
		if conn != nil {
			conn.close()
		}
	}
}

// WithRetry runs fn against conn.Primary, and on an LDAP "server down"
// result redials once and retries — the Go equivalent of
// ldap_adaptor.cpp's gx_auto_retry template.
func WithRetry(p *Pool, ctx context.Context, fn func(*ldap.Conn) error) error {
	conn, err := p.GetWait(ctx)
	if err != nil {
		return err
	}
	defer p.Put(conn)

	err = fn(conn.Primary)
	if !isServerDown(err) {
		return err
	}
	conn.Primary.Close()
	fresh, dialErr := p.dialOne()
	if dialErr != nil {
		return err
	}
	conn.Primary = fresh
	return fn(conn.Primary)
}

// isServerDown reports whether err looks like a dropped connection worth
// a single redial-and-retry, the same substring classification
// stratastor-rodent's isConnectionError uses rather than relying on a
// specific *ldap.Error result code.
func isServerDown(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	for _, sub := range []string{"connection closed", "broken pipe", "EOF", "i/o timeout", "connection reset", "network error"} {
		if strings.Contains(strings.ToLower(s), strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// Resize grows or shrinks the pool's capacity. Growing adds empty
// (lazily-dialed) slots; shrinking removes up to the requested number of
// currently-idle slots without disturbing pairs in flight, mirroring
// resource_pool<twoconn>::resize() — a slot checked out when the pool
// shrinks is simply not replaced on its next Put.
func (p *Pool) Resize(size int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := cap(p.slots)
	switch {
	case size > cur:
		newSlots := make(chan *Conn, size)
		close(p.slots)
		for s := range p.slots {
			newSlots <- s
		}
		for i := 0; i < size-cur; i++ {
			newSlots <- nil
		}
		p.slots = newSlots
	case size < cur:
		newSlots := make(chan *Conn, size)
		drained := 0
		want := cur - size
	drain:
		for drained < want {
			select {
			case s := <-p.slots:
				if s != nil {
					s.close()
				}
				drained++
			default:
				break drain
			}
		}
		for {
			select {
			case s := <-p.slots:
				select {
				case newSlots <- s:
				default:
					if s != nil {
						s.close()
					}
				}
			default:
				p.slots = newSlots
				return
			}
		}
	}
}

// Clear closes every idle connection pair and rebuilds empty slots in
// their place, without changing pool size — the pool stays usable.
// Mirrors resource_pool<twoconn>::clear().
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	size := cap(p.slots)
	old := p.slots
	p.slots = make(chan *Conn, size)
	close(old)
	for s := range old {
		if s != nil {
			s.close()
		}
		p.slots <- nil
	}
}

// Bump forces every idle connection pair to be redialed on next
// checkout, without closing the pool — used after a configuration
// change (new bind credentials, new host). Mirrors
// resource_pool<twoconn>::bump().
func (p *Pool) Bump() {
	p.Clear()
}
