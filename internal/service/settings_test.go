package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minato/storefront-api/internal/model"
)

type fakeSettingsRepo struct {
	values map[string]string
	fail   bool
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{values: make(map[string]string)}
}

func (f *fakeSettingsRepo) Get(_ context.Context, key string) (string, error) {
	if f.fail {
		return "", errors.New("database unavailable")
	}
	return f.values[key], nil
}

func (f *fakeSettingsRepo) Set(_ context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

func (f *fakeSettingsRepo) All(_ context.Context) ([]model.SiteSetting, error) {
	var out []model.SiteSetting
	for k, v := range f.values {
		out = append(out, model.SiteSetting{Key: k, Value: v})
	}
	return out, nil
}

func TestSettingsService_Rules_FromStore(t *testing.T) {
	repo := newFakeSettingsRepo()
	repo.values["free_shipping_threshold"] = "8000"
	repo.values["shipping_fee"] = "700"
	repo.values["point_award_rate"] = "50"

	svc := NewSettingsService(repo, nil, testLog)

	rules := svc.Rules(context.Background())
	assert.Equal(t, int64(8000), rules.FreeShippingThreshold)
	assert.Equal(t, int64(700), rules.ShippingFee)
	assert.Equal(t, int64(50), rules.PointAwardRate)
}

func TestSettingsService_Rules_DefaultsOnMissing(t *testing.T) {
	svc := NewSettingsService(newFakeSettingsRepo(), nil, testLog)

	rules := svc.Rules(context.Background())
	assert.Equal(t, int64(5000), rules.FreeShippingThreshold)
	assert.Equal(t, int64(500), rules.ShippingFee)
	assert.Equal(t, int64(100), rules.PointAwardRate)
}

func TestSettingsService_Rules_DegradesOnFailure(t *testing.T) {
	repo := newFakeSettingsRepo()
	repo.values["shipping_fee"] = "700"
	repo.fail = true

	svc := NewSettingsService(repo, nil, testLog)

	// The backend being down yields defaults, not an error.
	rules := svc.Rules(context.Background())
	assert.Equal(t, int64(500), rules.ShippingFee)
}

func TestSettingsService_Rules_IgnoresGarbageValues(t *testing.T) {
	repo := newFakeSettingsRepo()
	repo.values["shipping_fee"] = "free!"

	svc := NewSettingsService(repo, nil, testLog)
	rules := svc.Rules(context.Background())
	assert.Equal(t, int64(500), rules.ShippingFee)
}

func TestSettingsService_SetAndGet(t *testing.T) {
	repo := newFakeSettingsRepo()
	svc := NewSettingsService(repo, nil, testLog)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "shipping_fee", "600"))
	value, err := svc.Get(ctx, "shipping_fee")
	require.NoError(t, err)
	assert.Equal(t, "600", value)
}
