package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cassiomorais/notifications/internal/repository/postgres"
	"github.com/rs/zerolog"
)

const maxIdempotencyBodySize = 1 << 20

const IdempotencyHeader = "Idempotency-Key"

// Bodies past maxIdempotencyBodySize cannot be fingerprinted whole, so
// they are refused rather than hashed by prefix.
var errBodyTooLarge = errors.New("request body too large")

// IdempotencyStore persists responses keyed by Idempotency-Key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*postgres.IdempotencyEntry, error)
	Set(ctx context.Context, entry *postgres.IdempotencyEntry) error
}

// Idempotency replays the stored response for a repeated Idempotency-Key,
// so a producer retrying an enqueue does not create a second notification.
// Keys are scoped to method and path.
func Idempotency(store IdempotencyStore, ttl time.Duration, logger zerolog.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(IdempotencyHeader)
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Method + " " + r.URL.Path + " " + header

			hash, err := fingerprintBody(r)
			if errors.Is(err, errBodyTooLarge) {
				writeIdempotencyError(w, http.StatusRequestEntityTooLarge, "request body too large", "request_too_large")
				return
			}
			if err != nil {
				writeIdempotencyError(w, http.StatusBadRequest, "request body could not be read", "invalid_body")
				return
			}

			entry, err := store.Get(r.Context(), key)
			if err != nil {
				logger.Warn().Err(err).Str("idempotency_key", header).Msg("Idempotency lookup failed")
			}
			if err == nil && entry != nil && entry.RequestHash != "" && entry.RequestHash != hash {
				writeIdempotencyError(w, http.StatusUnprocessableEntity,
					"idempotency key already used for a different request", "idempotency_key_reused")
				return
			}
			if err == nil && entry != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Idempotency-Replayed", "true")
				w.WriteHeader(entry.ResponseStatus)
				w.Write([]byte(entry.ResponseBody))
				return
			}

			rec := &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			// 5xx responses stay retryable
			if rec.statusCode >= 200 && rec.statusCode < 500 && !rec.bodyTruncated {
				now := time.Now()
				err := store.Set(context.WithoutCancel(r.Context()), &postgres.IdempotencyEntry{
					Key:            key,
					RequestHash:    hash,
					ResponseBody:   rec.body.String(),
					ResponseStatus: rec.statusCode,
					CreatedAt:      now,
					ExpiresAt:      now.Add(ttl),
				})
				if err != nil {
					logger.Warn().Err(err).Str("idempotency_key", header).Msg("Failed to store idempotent response")
				}
			}
		})
	}
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode    int
	body          *bytes.Buffer
	bodyTruncated bool
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.bodyTruncated {
		if r.body.Len()+len(b) > maxIdempotencyBodySize {
			r.bodyTruncated = true
		} else {
			r.body.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}

// fingerprintBody hashes the request body and rewinds it for the handler.
// Bodies over maxIdempotencyBodySize fail with errBodyTooLarge.
func fingerprintBody(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotencyBodySize+1))
	if err != nil {
		return "", err
	}
	if len(body) > maxIdempotencyBodySize {
		return "", errBodyTooLarge
	}
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

func writeIdempotencyError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
		"code":  code,
	})
}
