// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package cookie mirrors cache entries into the host cookie string so they survive a
// navigation that loses the storage area. Absence and an empty value are indistinguishable.
package cookie

import (
	"net/http"
	"strings"
	"time"

	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/cache"
)

// Mirror reads and writes cookies on a cache.Document. A Mirror with a nil Document
// ignores writes and reads every cookie as "".
type Mirror struct {
	doc cache.Document
	now func() time.Time
}

// New creates a Mirror over doc.
func New(doc cache.Document) *Mirror {
	return &Mirror{doc: doc, now: time.Now}
}

// Enabled reports whether the mirror has a document to write to.
func (m *Mirror) Enabled() bool {
	return m != nil && m.doc != nil
}

// Set writes name=value. With expiresInDays == 0 the cookie has no expiry.
func (m *Mirror) Set(name, value string, expiresInDays int) {
	if !m.Enabled() {
		return
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteString("=")
	b.WriteString(value)
	b.WriteString(";path=/;")
	if expiresInDays != 0 {
		b.WriteString("expires=")
		b.WriteString(m.expiry(expiresInDays))
		b.WriteString(";")
	}
	m.doc.SetCookie(b.String())
}

// Get returns the value of the first cookie called name, or "".
func (m *Mirror) Get(name string) string {
	if !m.Enabled() {
		return ""
	}
	prefix := name + "="
	for _, c := range strings.Split(m.doc.Cookie(), ";") {
		c = strings.TrimLeft(c, " ")
		if strings.HasPrefix(c, prefix) {
			return c[len(prefix):]
		}
	}
	return ""
}

// Clear expires the cookie called name.
func (m *Mirror) Clear(name string) {
	m.Set(name, "", -1)
}

// Names lists the names of every cookie in the document.
func (m *Mirror) Names() []string {
	if !m.Enabled() {
		return nil
	}
	var names []string
	for _, c := range strings.Split(m.doc.Cookie(), ";") {
		name, _, _ := strings.Cut(strings.TrimSpace(c), "=")
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (m *Mirror) expiry(days int) string {
	return m.now().UTC().Add(time.Duration(days) * 24 * time.Hour).Format(http.TimeFormat)
}
