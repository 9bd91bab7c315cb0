package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	cases := []struct {
		name      string
		handler   http.HandlerFunc
		wantCode  int
		wantLevel string
		wantBytes float64
	}{
		{
			name: "implicit 200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("hello"))
			},
			wantCode:  http.StatusOK,
			wantLevel: "INFO",
			wantBytes: 5,
		},
		{
			name: "client error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
			},
			wantCode:  http.StatusConflict,
			wantLevel: "WARN",
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("{}"))
			},
			wantCode:  http.StatusServiceUnavailable,
			wantLevel: "ERROR",
			wantBytes: 2,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			h := chimiddleware.RequestID(Logger(logger)(tc.handler))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/posts", nil))

			assert.Equal(t, tc.wantCode, rr.Code)

			var rec map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
			assert.Equal(t, "request completed", rec["msg"])
			assert.Equal(t, tc.wantLevel, rec["level"])
			assert.Equal(t, "POST", rec["method"])
			assert.Equal(t, "/api/posts", rec["path"])
			assert.Equal(t, float64(tc.wantCode), rec["status"])
			assert.Equal(t, tc.wantBytes, rec["bytes"])
			assert.NotEmpty(t, rec["requestID"])
		})
	}
}
