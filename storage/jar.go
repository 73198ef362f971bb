package storage

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"
)

// Jar is an http.CookieJar for one backend origin that remembers its cookies
// in a FileStore while the persist flag is set. The refresh cookie lives here.
type Jar struct {
	mu         sync.Mutex
	jar        *cookiejar.Jar
	seen       map[string]*http.Cookie // name -> last cookie set for origin
	store      *FileStore
	origin     *url.URL
	persistKey string
}

// NewJar creates a jar for origin, restoring remembered cookies when
// persistKey is set in store.
func NewJar(store *FileStore, origin, persistKey string) (*Jar, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin: %w", err)
	}
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	j := &Jar{
		jar:        inner,
		seen:       make(map[string]*http.Cookie),
		store:      store,
		origin:     &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"},
		persistKey: persistKey,
	}

	if store.Flag(persistKey) {
		cookies, err := store.Cookies(j.key())
		if err != nil {
			return nil, fmt.Errorf("failed to restore cookies: %w", err)
		}
		inner.SetCookies(j.origin, cookies)
		for _, c := range cookies {
			j.seen[c.Name] = c
		}
	}
	return j, nil
}

func (j *Jar) key() string {
	return j.origin.Scheme + "://" + j.origin.Host
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	j.jar.SetCookies(u, cookies)
	if u.Host == j.origin.Host {
		now := time.Now()
		for _, c := range cookies {
			switch {
			case c.MaxAge < 0, !c.Expires.IsZero() && c.Expires.Before(now):
				delete(j.seen, c.Name)
			default:
				kept := *c
				if c.MaxAge > 0 {
					kept.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
				}
				j.seen[c.Name] = &kept
			}
		}
	}
	j.mu.Unlock()

	if j.store.Flag(j.persistKey) {
		// A failed save only costs the next run its remembered session.
		_ = j.Save()
	}
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Save writes the origin's current cookies to the store.
func (j *Jar) Save() error {
	j.mu.Lock()
	cookies := make([]*http.Cookie, 0, len(j.seen))
	for _, c := range j.seen {
		cookies = append(cookies, c)
	}
	j.mu.Unlock()

	return j.store.SaveCookies(j.key(), cookies)
}

// Forget removes the saved cookies and keeps them in memory.
func (j *Jar) Forget() error {
	return j.store.SaveCookies(j.key(), nil)
}

// Reset forgets every cookie, in memory and on disk.
func (j *Jar) Reset() error {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.jar = inner
	j.seen = make(map[string]*http.Cookie)
	j.mu.Unlock()

	return j.store.SaveCookies(j.key(), nil)
}

var _ http.CookieJar = (*Jar)(nil)
