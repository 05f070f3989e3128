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

	"github.com/angelmondragon/marketplace-backend/api/responses"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/marketplace-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"

	defaultIdempotencyTTL  = 24 * time.Hour
	maxIdempotencyKeyLen   = 200
	maxIdempotentBodyBytes = 1 << 20
)

// savedResponse is what a replay writes back. Body is []byte so it
// round-trips through JSON as base64. A pending entry claims the key while
// the first request is still being handled.
type savedResponse struct {
	Fingerprint string `json:"fingerprint"`
	Pending     bool   `json:"pending,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency makes a mutating endpoint safe to retry. The Idempotency-Key
// header is mandatory and the key is claimed before the handler runs, so
// only one request per key reaches it. A repeat with the same key and body
// gets the first response back, or a conflict while the first is still
// running; the same key with a different body is a conflict. 5xx responses
// release the key so the client can retry.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	reject := func(w http.ResponseWriter, r *http.Request, err error) {
		responses.WriteError(r.Context(), logg, w, err)
	}
	logFailure := func(r *http.Request, msg string, err error) {
		if err != nil && logg != nil {
			logg.Error(r.Context(), msg, err)
		}
	}

	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			switch {
			case clientKey == "":
				reject(w, r, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			case len(clientKey) > maxIdempotencyKeyLen:
				reject(w, r, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long"))
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIdempotentBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					reject(w, r, pkgerrors.New(pkgerrors.CodeValidation, "request body too large"))
					return
				}
				reject(w, r, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := fingerprintBody(body)
			key := store.IdempotencyKey(callerScope(r), clientKey)

			claimed, err := claim(r, store, key, fingerprint, ttl)
			if err != nil {
				reject(w, r, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				saved, err := loadResponse(r, store, key)
				if err != nil {
					reject(w, r, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
					return
				}
				switch {
				case saved == nil || saved.Pending && saved.Fingerprint == fingerprint:
					reject(w, r, pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this Idempotency-Key is still in progress"))
				case saved.Fingerprint != fingerprint:
					reject(w, r, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
				default:
					saved.replay(w)
				}
				return
			}

			// The claim is dropped unless a response is saved, including when
			// the handler panics.
			bg := context.WithoutCancel(r.Context())
			saved := false
			defer func() {
				if !saved {
					logFailure(r, "release idempotency key", store.Del(bg, key))
				}
			}()

			tee := &teeWriter{ResponseWriter: w}
			next.ServeHTTP(tee, r)

			status := tee.statusCode()
			if status >= http.StatusInternalServerError {
				return
			}
			encoded, err := json.Marshal(savedResponse{
				Fingerprint: fingerprint,
				Status:      status,
				ContentType: tee.Header().Get("Content-Type"),
				Body:        tee.body.Bytes(),
			})
			if err == nil {
				err = store.Set(bg, key, string(encoded), ttl)
			}
			saved = err == nil
			logFailure(r, "persist idempotent response", err)
		})
	}
}

// claim reserves key for this request with a pending marker.
func claim(r *http.Request, store pkgredis.IdempotencyStore, key, fingerprint string, ttl time.Duration) (bool, error) {
	marker, err := json.Marshal(savedResponse{Fingerprint: fingerprint, Pending: true})
	if err != nil {
		return false, err
	}
	return store.SetNX(r.Context(), key, string(marker), ttl)
}

func loadResponse(r *http.Request, store pkgredis.IdempotencyStore, key string) (*savedResponse, error) {
	raw, err := store.Get(r.Context(), key)
	if pkgredis.IsNil(err) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var saved savedResponse
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		return nil, fmt.Errorf("decode saved response: %w", err)
	}
	return &saved, nil
}

func (s *savedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// callerScope keeps keys from different callers apart; anonymous requests
// share the "guest" scope.
func callerScope(r *http.Request) string {
	caller := UserIDFromContext(r.Context())
	if caller == "" {
		caller = "guest"
	}
	return caller + "|" + r.Method + "|" + r.URL.Path
}

func fingerprintBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

type teeWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (t *teeWriter) WriteHeader(code int) {
	if t.status == 0 {
		t.status = code
	}
	t.ResponseWriter.WriteHeader(code)
}

func (t *teeWriter) Write(b []byte) (int, error) {
	if t.status == 0 {
		t.status = http.StatusOK
	}
	t.body.Write(b)
	return t.ResponseWriter.Write(b)
}

func (t *teeWriter) statusCode() int {
	if t.status == 0 {
		return http.StatusOK
	}
	return t.status
}
