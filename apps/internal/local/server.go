// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package local contains a local HTTP server that receives the redirect of an interactive
// login and checks its state against the auth cache.
package local

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/authcache"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/internal/keys"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/internal/logger"
)

var okPage = []byte(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8" />
    <title>Authentication Complete</title>
</head>
<body>
    <p>Authentication complete. You can return to the application. Feel free to close this browser tab.</p>
</body>
</html>
`)

var failPage = []byte(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8" />
    <title>Authentication Failed</title>
</head>
<body>
	<p>Authentication failed. You can return to the application. Feel free to close this browser tab.</p>
	<p>Error details: error {{.Code}}, error description: {{.Err}}</p>
</body>
</html>
`)

var (
	// code is the html template variable name,
	// which matches the Result Code variable
	code = []byte("{{.Code}}")
	// err is the html template variable name
	// which matches the Result Err variable
	err = []byte("{{.Err}}")
)

// Result is the result from the redirect.
type Result struct {
	// Code is the code sent by the authority server.
	Code string
	// State is the request state the redirect answered.
	State string
	// Err is set if there was an error.
	Err error
}

// Server is an HTTP server.
type Server struct {
	// Addr is the address the server is listening on.
	Addr        string
	resultCh    chan Result
	s           *http.Server
	cache       *authcache.AuthCache
	log         *logger.Logger
	successPage []byte
	errorPage   []byte
}

// BeginLogin records a fresh request state and nonce in c, the way a login request does
// before redirecting. Both are mirrored in cookies.
func BeginLogin(ctx context.Context, c *authcache.AuthCache, authority string) (state string, err error) {
	state = authcache.NewState()
	entries := []struct {
		key, value string
	}{
		{keys.TemporaryKey(keys.StateLogin, state), state},
		{keys.TemporaryKey(keys.NonceIDToken, state), authcache.NewState()},
		{keys.AuthorityKey(state), authority},
	}
	for _, e := range entries {
		if err := c.Set(ctx, authcache.Logical(e.key), e.value, authcache.WithCookie()); err != nil {
			return "", err
		}
	}
	return state, nil
}

// New creates a local HTTP server and starts it. Redirects are accepted for any state recorded
// in c by BeginLogin. Once a redirect is handled, the temporary entries of its state are reaped.
func New(c *authcache.AuthCache, port int, successPage []byte, errorPage []byte) (*Server, error) {
	var l net.Listener
	var err error
	var portStr string
	if port > 0 {
		// use port provided by caller
		l, err = net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
		portStr = strconv.FormatInt(int64(port), 10)
	} else {
		// find a free port
		for i := 0; i < 10; i++ {
			l, err = net.Listen("tcp", "localhost:0")
			if err != nil {
				continue
			}
			addr := l.Addr().String()
			portStr = addr[strings.LastIndex(addr, ":")+1:]
			break
		}
	}
	if err != nil {
		return nil, err
	}

	if len(successPage) == 0 {
		successPage = okPage
	}

	if len(errorPage) == 0 {
		errorPage = failPage
	}

	serv := &Server{
		Addr:        fmt.Sprintf("http://localhost:%s", portStr),
		s:           &http.Server{Addr: "localhost:0", ReadHeaderTimeout: time.Second},
		cache:       c,
		log:         logger.New(c.Logger()).With(logger.Field("clientID", c.ClientID()), logger.Field("addr", portStr)),
		resultCh:    make(chan Result, 1),
		successPage: successPage,
		errorPage:   errorPage,
	}
	serv.s.Handler = http.HandlerFunc(serv.handler)

	go func() {
		if err := serv.s.Serve(l); err != nil {
			serv.putResult(Result{Err: err})
		}
	}()

	return serv, nil
}

// Result gets the result of the redirect operation. ctx deadline will be honored.
func (s *Server) Result(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	case r := <-s.resultCh:
		return r
	}
}

// Shutdown shuts down the server.
func (s *Server) Shutdown() {
	// Note: You might get clever and think you can do this in handler() as a defer, you can't.
	_ = s.s.Shutdown(context.Background())
}

func (s *Server) putResult(r Result) {
	select {
	case s.resultCh <- r:
	default:
	}
}

func (s *Server) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	respState := q.Get("state")

	headerErr := q.Get("error")
	if headerErr != "" {
		escapedErrDesc := html.EscapeString(q.Get("error_description")) // provides XSS protection
		escapedHeaderErr := html.EscapeString(headerErr)                // provides XSS protection

		errorPage := bytes.ReplaceAll(s.errorPage, code, []byte(escapedHeaderErr))
		errorPage = bytes.ReplaceAll(errorPage, err, []byte(escapedErrDesc))

		_, _ = w.Write(errorPage)

		// The error page is already written, so cache failures are only logged.
		known, cacheErr := s.knownState(ctx, respState)
		if cacheErr != nil {
			s.log.Log(ctx, logger.Warn, "reading OAuth state from the cache failed", logger.Field("error", cacheErr))
		}
		if known {
			if cacheErr := s.cache.ResetTemporaryEntries(ctx, respState); cacheErr != nil {
				s.log.Log(ctx, logger.Warn, "clearing request state failed", logger.Field("state", respState), logger.Field("error", cacheErr))
			}
		}
		s.putResult(Result{State: respState, Err: fmt.Errorf("%s", escapedErrDesc)})
		return
	}

	if respState == "" {
		s.error(w, http.StatusInternalServerError, "server didn't send OAuth state")
		return
	}
	known, cacheErr := s.knownState(ctx, respState)
	if cacheErr != nil {
		s.error(w, http.StatusInternalServerError, "reading OAuth state from the cache: %v", cacheErr)
		return
	}
	if !known {
		s.error(w, http.StatusInternalServerError, "unknown OAuth state %s", html.EscapeString(respState))
		return
	}

	code := q.Get("code")
	if code == "" {
		s.error(w, http.StatusInternalServerError, "authorization code missing in query string")
		return
	}

	if err := s.cache.ResetTemporaryEntries(ctx, respState); err != nil {
		s.error(w, http.StatusInternalServerError, "clearing request state: %v", err)
		return
	}
	_, _ = w.Write(s.successPage)
	s.putResult(Result{Code: code, State: respState})
}

// knownState reports whether state was recorded by BeginLogin and not reaped since.
func (s *Server) knownState(ctx context.Context, state string) (bool, error) {
	if state == "" {
		return false, nil
	}
	v, ok, err := s.cache.Get(ctx, authcache.Logical(keys.TemporaryKey(keys.StateLogin, state)))
	if err != nil {
		return false, err
	}
	return ok && v == state, nil
}

func (s *Server) error(w http.ResponseWriter, code int, str string, i ...interface{}) {
	err := fmt.Errorf(str, i...)
	http.Error(w, err.Error(), code)
	s.putResult(Result{Err: err})
}
