package engine

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/require"
)

func newStatusEngine() *Engine {
	src := &scriptedSource{poll: func(int, int) ([]telego.Update, error) { return nil, nil }}
	return New(src, Options{}, nil)
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var payload statusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	return payload
}

func TestHealthAlwaysOK(t *testing.T) {
	eng := newStatusEngine()

	rec := httptest.NewRecorder()
	eng.handleHealth(rec, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeStatus(t, rec).Status)
}

func TestReadyReflectsPollState(t *testing.T) {
	eng := newStatusEngine()

	rec := httptest.NewRecorder()
	eng.handleReady(rec, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code, "not ready before any successful poll")

	eng.notePollOK()
	rec = httptest.NewRecorder()
	eng.handleReady(rec, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	eng.notePollError(errors.New("transport down"))
	rec = httptest.NewRecorder()
	eng.handleReady(rec, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "transport down", decodeStatus(t, rec).LastPollErr)
}

func TestReadyFalseAfterStop(t *testing.T) {
	eng := newStatusEngine()
	eng.notePollOK()
	eng.Stop()

	rec := httptest.NewRecorder()
	eng.handleReady(rec, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusReportsCursor(t *testing.T) {
	eng := newStatusEngine()
	eng.cursor.Store(123)

	rec := httptest.NewRecorder()
	eng.handleHealth(rec, nil)
	require.Equal(t, 123, decodeStatus(t, rec).Cursor)
}
