// Package reporting sends unexpected errors to Rollbar. Without a token it only logs.
package reporting

import (
	"log"
	"net/http"
	"os"

	"github.com/rollbar/rollbar-go"
)

// Config configures the reporter
type Config struct {
	Token       string
	Environment string
	CodeVersion string
}

// Reporter reports errors to Rollbar and the standard logger
type Reporter struct {
	enabled bool
}

// New configures the global Rollbar client
func New(cfg Config) *Reporter {
	enabled := cfg.Token != ""
	if enabled {
		host, _ := os.Hostname()
		rollbar.SetToken(cfg.Token)
		rollbar.SetEnvironment(cfg.Environment)
		rollbar.SetServerHost(host)
		rollbar.SetCodeVersion(cfg.CodeVersion)
	}
	rollbar.SetEnabled(enabled)
	return &Reporter{enabled: enabled}
}

// Nop returns a reporter that only logs
func Nop() *Reporter {
	return &Reporter{}
}

// Enabled reports whether errors are forwarded to Rollbar
func (r *Reporter) Enabled() bool {
	return r != nil && r.enabled
}

// Error logs err and forwards it with optional context
func (r *Reporter) Error(msg string, err error, extras map[string]interface{}) {
	log.Printf("%s: %v", msg, err)
	if !r.Enabled() {
		return
	}
	if extras == nil {
		extras = map[string]interface{}{}
	}
	extras["message"] = msg
	rollbar.Error(err, extras)
}

// RequestError forwards an error raised while serving req
func (r *Reporter) RequestError(req *http.Request, err error, userID int64) {
	if !r.Enabled() {
		return
	}
	extras := map[string]interface{}{"route": req.Method + " " + req.URL.Path}
	if userID != 0 {
		extras["user_id"] = userID
	}
	rollbar.Error(req, err, extras)
}

// Close flushes queued reports
func (r *Reporter) Close() {
	if r.Enabled() {
		rollbar.Close()
	}
}
