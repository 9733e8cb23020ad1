package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/hashicorp/go-multierror"

	"github.com/mbolis/quick-form/log"
	"github.com/mbolis/quick-form/store"
)

// Will log an error, and send an HTTP response with status 500 and default text
func LogInternalError(w http.ResponseWriter, code string, err error) {
	log.Errorf("%s: %s", code, err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// Will log a debug message, and send an HTTP response with status 404 and default text
func LogNotFound(w http.ResponseWriter, code string, id any) {
	log.Debugf("%s: not found (%v)", code, id)
	http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
}

// Will log an error code at the given level, and send
// an HTTP response with status and default text
func LogStatus(w http.ResponseWriter, status int, level log.Level, code string) {
	log.Log(level, code)
	http.Error(w, http.StatusText(status), status)
}

// Will log an error code and message at the given level,
// and send an HTTP response with the given status and formatted message
func LogStatusMsg(w http.ResponseWriter, status int, level log.Level, code string, msg string, args ...any) {
	errMsg := fmt.Sprintf(msg, args...)
	log.Log(level, code+":", errMsg)
	http.Error(w, errMsg, status)
}

// Will log a store failure and send the matching HTTP status:
// 404 for a missing item, 409 for a duplicate, 503 when the backend is down
func LogStoreError(w http.ResponseWriter, code string, err error, id any) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		LogNotFound(w, code, id)
	case errors.Is(err, store.ErrExists):
		LogStatusMsg(w, http.StatusConflict, log.DebugLevel, code, "%v already exists", id)
	case errors.Is(err, store.ErrUnavailable):
		log.Errorf("%s: %s", code, err)
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
	default:
		LogInternalError(w, code, err)
	}
}

// Will log a debug message, and send an HTTP response with status 422 and a JSON body
func LogUnprocessable(w http.ResponseWriter, r *http.Request, code string, body any) {
	log.Debugf("%s: unprocessable", code)
	render.Status(r, http.StatusUnprocessableEntity)
	render.JSON(w, r, body)
}

// Problems flattens a multi-problem error into its messages.
func Problems(err error) []string {
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		return []string{err.Error()}
	}
	problems := make([]string, 0, len(merr.Errors))
	for _, e := range merr.Errors {
		problems = append(problems, e.Error())
	}
	return problems
}
