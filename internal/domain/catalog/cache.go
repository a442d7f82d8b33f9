package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/db"
)

const doctorKeyPrefix = "doctor:"

// doctorKey scopes a cache entry to the request's clinic.
func doctorKey(ctx context.Context, identifier string) string {
	clinic := db.ClinicFromContext(ctx)
	if clinic == "" {
		clinic = "-"
	}
	return doctorKeyPrefix + clinic + ":" + identifier
}

// CachedDoctorResolver keeps resolved doctors in Redis keyed by clinic and the
// identifier the client used. Redis failures are logged and the inner resolver answers.
type CachedDoctorResolver struct {
	inner  DoctorResolver
	rdb    redis.Cmdable
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCachedDoctorResolver(inner DoctorResolver, rdb redis.Cmdable, ttl time.Duration, logger zerolog.Logger) *CachedDoctorResolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedDoctorResolver{inner: inner, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *CachedDoctorResolver) Resolve(ctx context.Context, identifier string) (*Doctor, error) {
	key := doctorKey(ctx, identifier)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var d Doctor
		if jerr := json.Unmarshal(raw, &d); jerr == nil {
			return &d, nil
		}
		c.logger.Warn().Str("key", key).Msg("discarding undecodable cached doctor")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Str("key", key).Msg("doctor cache read failed")
	}

	d, err := c.inner.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(d); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("doctor cache write failed")
		}
	}
	return d, nil
}
