package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/clinicdesk/internal/platform/db"
)

type countingResolver struct {
	doctor *Doctor
	calls  int
}

func (r *countingResolver) Resolve(_ context.Context, _ string) (*Doctor, error) {
	r.calls++
	if r.doctor == nil {
		return nil, ErrDoctorNotFound
	}
	return r.doctor, nil
}

func newTestCache(t *testing.T, inner DoctorResolver) (*CachedDoctorResolver, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewCachedDoctorResolver(inner, rdb, time.Minute, zerolog.Nop()), mr
}

func TestCachedResolver_HitAfterMiss(t *testing.T) {
	inner := &countingResolver{doctor: &Doctor{ID: uuid.New(), Name: "Dr. Cached", ConsultationFee: 500}}
	cache, mr := newTestCache(t, inner)

	first, err := cache.Resolve(context.Background(), "D1")
	require.NoError(t, err)
	second, err := cache.Resolve(context.Background(), "D1")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 500.0, second.ConsultationFee)
	assert.True(t, mr.Exists("doctor:-:D1"))

	mr.FastForward(2 * time.Minute)
	_, err = cache.Resolve(context.Background(), "D1")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedResolver_NotFoundIsNotCached(t *testing.T) {
	inner := &countingResolver{}
	cache, mr := newTestCache(t, inner)

	_, err := cache.Resolve(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrDoctorNotFound)
	assert.False(t, mr.Exists("doctor:-:ghost"))
}

func TestCachedResolver_RedisDownFallsThrough(t *testing.T) {
	inner := &countingResolver{doctor: &Doctor{ID: uuid.New()}}
	cache, mr := newTestCache(t, inner)
	mr.Close()

	d, err := cache.Resolve(context.Background(), "D1")
	require.NoError(t, err)
	assert.Equal(t, inner.doctor.ID, d.ID)
}

func TestCachedResolver_CorruptEntry(t *testing.T) {
	inner := &countingResolver{doctor: &Doctor{ID: uuid.New()}}
	cache, mr := newTestCache(t, inner)
	require.NoError(t, mr.Set("doctor:-:D1", "{not json"))

	d, err := cache.Resolve(context.Background(), "D1")
	require.NoError(t, err)
	assert.Equal(t, inner.doctor.ID, d.ID)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedResolver_ScopedByClinic(t *testing.T) {
	inner := &countingResolver{doctor: &Doctor{ID: uuid.New()}}
	cache, mr := newTestCache(t, inner)

	north := context.WithValue(context.Background(), db.ClinicIDKey, "north")
	south := context.WithValue(context.Background(), db.ClinicIDKey, "south")

	_, err := cache.Resolve(north, "D1")
	require.NoError(t, err)
	_, err = cache.Resolve(south, "D1")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.True(t, mr.Exists("doctor:north:D1"))
	assert.True(t, mr.Exists("doctor:south:D1"))
}
