package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/farmloop-backend/api/responses"
	pkgerrors "github.com/angelmondragon/farmloop-backend/pkg/errors"
	"github.com/angelmondragon/farmloop-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/farmloop-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader     = "Idempotency-Key"
	IdempotentReplayedHeader = "Idempotent-Replayed"

	maxIdempotencyKeyLen = 128

	defaultIdempotencyTTL = 24 * time.Hour
	paymentIdempotencyTTL = 7 * 24 * time.Hour
	inFlightTTL           = 2 * time.Minute
)

// idempotentRoutes lists POST routes that require an Idempotency-Key. Patterns use
// path.Match syntax, so * stands for one path segment.
var idempotentRoutes = []struct {
	pattern string
	ttl     time.Duration
}{
	{"/api/v1/auth/register", defaultIdempotencyTTL},
	{"/api/v1/cart", defaultIdempotencyTTL},
	{"/api/v1/orders", defaultIdempotencyTTL},
	{"/api/v1/orders/*/delivery", defaultIdempotencyTTL},
	{"/api/v1/waste/reports", defaultIdempotencyTTL},
	{"/api/v1/waste/reports/*/collection", defaultIdempotencyTTL},
	{"/api/v1/orders/checkout", paymentIdempotencyTTL},
	{"/api/v1/orders/*/apply-points", paymentIdempotencyTTL},
	{"/api/v1/orders/*/verify-payment", paymentIdempotencyTTL},
	{"/api/v1/orders/*/retry-payment", paymentIdempotencyTTL},
}

// storedResponse is what a replay writes back. A record without Status marks a
// request that is still being handled.
type storedResponse struct {
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

func (s storedResponse) completed() bool { return s.Status != 0 }

// Idempotency replays the first response for a repeated (user, route, key) and
// rejects a reused key whose body differs. A concurrent duplicate gets 409 while the
// first request is still running. 5xx responses are not stored so clients can retry.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ttl, ok := idempotencyTTL(r.Method, routePattern(r))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if clientKey == "" || len(clientKey) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.Newf(pkgerrors.CodeValidation, "%s header is required (max %d chars)", IdempotencyKeyHeader, maxIdempotencyKeyLen))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			reqHash := hashBody(body)
			key := store.IdempotencyKey(UserIDFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)

			claimed, err := claimKey(ctx, store, key, reqHash)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store unavailable"))
				return
			}
			if !claimed {
				replayOrReject(ctx, logg, w, store, key, reqHash)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			persistResponse(context.WithoutCancel(ctx), logg, store, key, ttl, storedResponse{
				RequestHash: reqHash,
				Status:      capture.statusCode(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
		})
	}
}

func claimKey(ctx context.Context, store pkgredis.IdempotencyStore, key, reqHash string) (bool, error) {
	marker, err := json.Marshal(storedResponse{RequestHash: reqHash})
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, string(marker), inFlightTTL)
}

func replayOrReject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, store pkgredis.IdempotencyStore, key, reqHash string) {
	raw, err := store.Get(ctx, key)
	if pkgredis.IsNil(err) {
		// the in-flight marker expired between SetNX and Get
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this key is still in progress"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store unavailable"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "corrupt idempotency record"))
		return
	}
	switch {
	case stored.RequestHash != reqHash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request body"))
	case !stored.completed():
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this key is still in progress"))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set(IdempotentReplayedHeader, "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

func persistResponse(ctx context.Context, logg *logger.Logger, store pkgredis.IdempotencyStore, key string, ttl time.Duration, resp storedResponse) {
	if resp.Status >= http.StatusInternalServerError {
		if err := store.Del(ctx, key); err != nil && logg != nil {
			logg.Error(ctx, "idempotency.release_failed", err)
		}
		return
	}
	payload, err := json.Marshal(resp)
	if err == nil {
		err = store.Set(ctx, key, string(payload), ttl)
	}
	if err != nil && logg != nil {
		logg.Error(ctx, "idempotency.persist_failed", err)
	}
}

func idempotencyTTL(method, pattern string) (time.Duration, bool) {
	if method != http.MethodPost || pattern == "" {
		return 0, false
	}
	for _, route := range idempotentRoutes {
		if ok, _ := path.Match(route.pattern, pattern); ok {
			return route.ttl, true
		}
	}
	return 0, false
}

// routePattern uses the chi pattern when it is final. Middleware mounted on a
// sub-router only sees a wildcard prefix, so the trimmed URL path is used then.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			return pattern
		}
	}
	if p := strings.TrimSuffix(r.URL.Path, "/"); p != "" {
		return p
	}
	return r.URL.Path
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
