// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package cookies

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kylelemons/godebug/pretty"
)

func TestJarSetCookie(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour).UTC().Format(http.TimeFormat)
	future := time.Now().Add(48 * time.Hour).UTC().Format(http.TimeFormat)

	tests := []struct {
		desc   string
		writes []string
		want   string
	}{
		{
			desc:   "single",
			writes: []string{"a=1;path=/;"},
			want:   "a=1",
		},
		{
			desc:   "insertion order and overwrite",
			writes: []string{"a=1;path=/;", "b=2;path=/;expires=" + future + ";", "a=3;path=/;"},
			want:   "a=3; b=2",
		},
		{
			desc:   "past expiry deletes",
			writes: []string{"a=1;path=/;", "b=2;path=/;", "a=;path=/;expires=" + past + ";"},
			want:   "b=2",
		},
		{
			desc:   "max-age zero deletes",
			writes: []string{"a=1", "a=1; Max-Age=0"},
			want:   "",
		},
		{
			desc:   "nameless write ignored",
			writes: []string{"=x;path=/;"},
			want:   "",
		},
		{
			desc:   "delimited names",
			writes: []string{"msal.app1.state.login|s1=s1;path=/;"},
			want:   "msal.app1.state.login|s1=s1",
		},
	}

	for _, test := range tests {
		j := NewJar()
		for _, w := range test.writes {
			j.SetCookie(w)
		}
		if got := j.Cookie(); got != test.want {
			t.Errorf("TestJarSetCookie(%s): got %q, want %q", test.desc, got, test.want)
		}
	}
}

func TestJarExpiresLater(t *testing.T) {
	j := NewJar()
	now := time.Now()
	j.now = func() time.Time { return now }
	j.SetCookie("a=1;path=/;expires=" + now.Add(time.Hour).UTC().Format(http.TimeFormat) + ";")
	if got := j.Cookie(); got != "a=1" {
		t.Fatalf("got %q, want a=1", got)
	}
	j.now = func() time.Time { return now.Add(2 * time.Hour) }
	if got := j.Cookie(); got != "" {
		t.Errorf("after expiry got %q, want empty", got)
	}
}

func TestJarMaxAgeUsesClock(t *testing.T) {
	j := NewJar()
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return start }
	j.SetCookie("a=1;path=/;max-age=60")

	tests := []struct {
		elapsed time.Duration
		want    string
	}{
		{elapsed: 0, want: "a=1"},
		{elapsed: 59 * time.Second, want: "a=1"},
		{elapsed: 61 * time.Second, want: ""},
	}
	for _, test := range tests {
		j.now = func() time.Time { return start.Add(test.elapsed) }
		if got := j.Cookie(); got != test.want {
			t.Errorf("TestJarMaxAgeUsesClock(%v): got %q, want %q", test.elapsed, got, test.want)
		}
	}
}

func TestJarLoadFlush(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/callback", nil)
	req.AddCookie(&http.Cookie{Name: "msal.app1.nonce.idtoken|s1", Value: "n1"})

	j := NewJar()
	j.Load(req)
	if got := j.Cookie(); got != "msal.app1.nonce.idtoken|s1=n1" {
		t.Fatalf("Cookie() after Load = %q", got)
	}

	j.SetCookie("msal.app1.state.login|s1=s1;path=/;")
	j.SetCookie("msal.app1.nonce.idtoken|s1=;path=/;expires=Thu, 01 Jan 1970 00:00:00 GMT;")

	rec := httptest.NewRecorder()
	j.Flush(rec)
	got := rec.Result().Cookies()

	type summary struct {
		Name   string
		Value  string
		MaxAge int
	}
	var sums []summary
	for _, c := range got {
		sums = append(sums, summary{Name: c.Name, Value: c.Value, MaxAge: c.MaxAge})
	}
	want := []summary{
		{Name: "msal.app1.state.login|s1", Value: "s1"},
		{Name: "msal.app1.nonce.idtoken|s1", MaxAge: -1},
	}
	if diff := pretty.Compare(want, sums); diff != "" {
		t.Errorf("Flush(): -want/+got:\n%s", diff)
	}

	rec = httptest.NewRecorder()
	j.Flush(rec)
	if n := len(rec.Result().Cookies()); n != 0 {
		t.Errorf("second Flush() wrote %d cookies, want 0", n)
	}
}
