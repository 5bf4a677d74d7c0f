// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

/*
Package cookies provides Jar, an in-memory cookie document with the write semantics of a
browser's document.cookie: each write sets one cookie, and a write with an expiry in the past
deletes it.

A server can seed a Jar from an incoming request with Load and send the cookies written since
with Flush, which lets mirrored auth state travel through redirects.
*/
package cookies

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

type change struct {
	value   string
	expires time.Time
	deleted bool
}

// Jar implements cache.Document. It is safe for concurrent use.
type Jar struct {
	mu      sync.Mutex
	names   []string
	values  map[string]string
	expires map[string]time.Time
	pending map[string]change
	order   []string

	now func() time.Time
}

// NewJar creates an empty Jar.
func NewJar() *Jar {
	return &Jar{
		values:  map[string]string{},
		expires: map[string]time.Time{},
		pending: map[string]change{},
		now:     time.Now,
	}
}

// Cookie implements cache.Document.Cookie().
func (j *Jar) Cookie() string {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.expire()
	pairs := make([]string, 0, len(j.names))
	for _, name := range j.names {
		pairs = append(pairs, name+"="+j.values[name])
	}
	return strings.Join(pairs, "; ")
}

// SetCookie implements cache.Document.SetCookie(). Attributes other than expires and
// max-age are accepted and ignored. A write without a name is ignored.
func (j *Jar) SetCookie(raw string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	name, value, expires, ok := parse(raw, now)
	if !ok {
		return
	}
	if !expires.IsZero() && !expires.After(now) {
		j.delete(name)
		j.pending[name] = change{deleted: true}
		j.track(name)
		return
	}
	if _, ok := j.values[name]; !ok {
		j.names = append(j.names, name)
	}
	j.values[name] = value
	if expires.IsZero() {
		delete(j.expires, name)
	} else {
		j.expires[name] = expires
	}
	j.pending[name] = change{value: value, expires: expires}
	j.track(name)
}

// Load adds the cookies of r to the jar without marking them for Flush.
func (j *Jar) Load(r *http.Request) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, c := range r.Cookies() {
		if _, ok := j.values[c.Name]; !ok {
			j.names = append(j.names, c.Name)
		}
		j.values[c.Name] = c.Value
	}
}

// Flush writes a Set-Cookie header for every cookie changed since the last Flush. Cookies
// whose name is not a valid HTTP token are dropped by net/http.
func (j *Jar) Flush(w http.ResponseWriter) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, name := range j.order {
		ch := j.pending[name]
		c := &http.Cookie{Name: name, Value: ch.value, Path: "/", Expires: ch.expires}
		if ch.deleted {
			c.Value = ""
			c.Expires = time.Time{}
			c.MaxAge = -1
		}
		http.SetCookie(w, c)
	}
	j.order = nil
	j.pending = map[string]change{}
}

func (j *Jar) track(name string) {
	for _, n := range j.order {
		if n == name {
			return
		}
	}
	j.order = append(j.order, name)
}

func (j *Jar) delete(name string) {
	if _, ok := j.values[name]; !ok {
		return
	}
	delete(j.values, name)
	delete(j.expires, name)
	for i, n := range j.names {
		if n == name {
			j.names = append(j.names[:i], j.names[i+1:]...)
			break
		}
	}
}

// expire drops cookies whose expiry has passed since they were written.
func (j *Jar) expire() {
	now := j.now()
	for name, exp := range j.expires {
		if !exp.After(now) {
			j.delete(name)
		}
	}
}

// parse reads a Set-Cookie style string leniently, the way a browser treats document.cookie
// writes: the value is everything up to the first ';'. max-age counts from now.
func parse(raw string, now time.Time) (name, value string, expires time.Time, ok bool) {
	parts := strings.Split(raw, ";")
	name, value, _ = strings.Cut(parts[0], "=")
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", time.Time{}, false
	}
	value = strings.TrimSpace(value)

	var maxAge *int
	for _, attr := range parts[1:] {
		k, v, _ := strings.Cut(strings.TrimSpace(attr), "=")
		switch strings.ToLower(k) {
		case "expires":
			if t, err := http.ParseTime(v); err == nil {
				expires = t
			}
		case "max-age":
			if n, err := strconv.Atoi(v); err == nil {
				maxAge = &n
			}
		}
	}
	if maxAge != nil {
		if *maxAge <= 0 {
			expires = time.Unix(0, 0)
		} else {
			expires = now.Add(time.Duration(*maxAge) * time.Second)
		}
	}
	return name, value, expires, true
}
