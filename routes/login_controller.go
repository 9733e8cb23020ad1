package routes

import (
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/mbolis/quick-form/app"
	"github.com/mbolis/quick-form/httpx"
	"github.com/mbolis/quick-form/log"
)

var reRefresh = regexp.MustCompile(`(?i)^refresh\s+(.*)`)

func grantRequest(r *http.Request, body url.Values) *http.Request {
	encoded := body.Encode()
	req := r.Clone(r.Context())
	req.Method = http.MethodPost
	req.Body = io.NopCloser(strings.NewReader(encoded))
	req.ContentLength = int64(len(encoded))
	req.Header.Set("content-type", "application/x-www-form-urlencoded")
	req.Header.Set("content-length", strconv.Itoa(len(encoded)))
	req.Header.Del("authorization")
	req.Form, req.PostForm = nil, nil
	return req
}

// exchange runs a grant against the bearer server and relays its answer.
func exchange(app app.App, w http.ResponseWriter, req *http.Request, code string, user string) {
	resp := httpx.NewResponseBuffer()
	app.UserCredentials(resp, req)
	entry := log.WithFields(log.Fields{"user": user, "status": resp.Status()})
	if resp.Status() != http.StatusOK {
		entry.Debug(code + ": refused")
	} else {
		entry.Info(code + ": granted")
	}
	resp.Flush(w)
}

func Login(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "login.basic_auth")
			return
		}

		req := grantRequest(r, url.Values{
			"grant_type": {"password"},
			"username":   {user},
			"password":   {pass},
		})
		exchange(app, w, req, "login", user)
	}
}

func Refresh(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		match := reRefresh.FindStringSubmatch(r.Header.Get("authorization"))
		if len(match) == 0 {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "refresh.token")
			return
		}

		req := grantRequest(r, url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {match[1]},
		})
		exchange(app, w, req, "refresh", "-")
	}
}
