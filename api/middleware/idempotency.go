package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/tipledger-backend/api/responses"
	"github.com/angelmondragon/tipledger-backend/api/validators"
	pkgerrors "github.com/angelmondragon/tipledger-backend/pkg/errors"
	"github.com/angelmondragon/tipledger-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/tipledger-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader  = "Idempotency-Key"
	DefaultIdempotencyTTL = 24 * time.Hour

	replayedHeader    = "Idempotent-Replayed"
	maxIdempotencyKey = 255
)

// replayRecord is what gets cached per key. Body is the raw response.
type replayRecord struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

type replayGuard struct {
	store pkgredis.IdempotencyStore
	ttl   time.Duration
	logg  *logger.Logger
}

// Idempotency caches the response of the wrapped route under the caller's
// Idempotency-Key and replays it on retry. Requests without the header, or
// a nil store, pass through. 5xx responses are never cached so the retry
// runs again. A store outage rejects the request with DEPENDENCY_ERROR.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	g := &replayGuard{store: store, ttl: ttl, logg: logg}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serve(w, r, next)
		})
	}
}

func (g *replayGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ctx := r.Context()
	idemKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if idemKey == "" {
		next.ServeHTTP(w, r)
		return
	}
	if len(idemKey) > maxIdempotencyKey {
		responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long").
			WithDetails(map[string]any{"field": IdempotencyKeyHeader, "max": maxIdempotencyKey}))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validators.MaxBodyBytes))
	if err != nil {
		msg := "read request body"
		var sizeErr *http.MaxBytesError
		if errors.As(err, &sizeErr) {
			msg = fmt.Sprintf("request body exceeds %d bytes", sizeErr.Limit)
		}
		responses.WriteError(ctx, g.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, msg))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	sum := sha256.Sum256(body)
	hash := hex.EncodeToString(sum[:])
	key := g.store.IdempotencyKey(r.Method+"|"+r.URL.Path, idemKey)

	prior, err := g.lookup(ctx, key)
	if err != nil {
		responses.WriteError(ctx, g.logg, w, err)
		return
	}
	if prior != nil {
		if prior.RequestHash != hash {
			responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
			return
		}
		prior.replay(w)
		return
	}

	capture := &responseCapture{ResponseWriter: w}
	next.ServeHTTP(capture, r)
	g.remember(ctx, key, hash, capture)
}

func (g *replayGuard) lookup(ctx context.Context, key string) (*replayRecord, error) {
	raw, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		return nil, nil
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key")
	}
	var rec replayRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &rec, nil
}

// remember stores the captured response. First writer wins; a failure only
// costs the next retry a re-execution, so it is logged and dropped.
func (g *replayGuard) remember(ctx context.Context, key, hash string, capture *responseCapture) {
	status := capture.statusCode()
	if status >= http.StatusInternalServerError {
		return
	}
	payload, err := json.Marshal(replayRecord{
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
		RequestHash: hash,
	})
	if err == nil {
		_, err = g.store.SetNX(ctx, key, string(payload), g.ttl)
	}
	if err != nil && g.logg != nil {
		g.logg.Error(ctx, "store idempotency record", err)
	}
}

func (rec *replayRecord) replay(w http.ResponseWriter) {
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

// responseCapture tees the response so it can be cached after the handler
// returns.
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
