package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/prodscout/internal/metrics"
)

func TestDiscover(t *testing.T) {
	f := newFakeBackend()
	f.categories = []string{" Headphones ", "Speakers", "Headphones", ""}
	mc := metrics.NewCollector()
	d := NewDiscovery(f, f, 0, mc, quietLogger())
	ctx := context.Background()

	_, err := d.Discover(ctx, "   ")
	require.ErrorIs(t, err, ErrEmptyQuery)

	got, err := d.Discover(ctx, "audio gear")
	require.NoError(t, err)
	assert.Equal(t, []string{"Headphones", "Speakers"}, got)
	assert.Equal(t, int64(1), mc.Snapshot().Discover.Count)

	_, err = d.Discover(ctx, "fail")
	require.ErrorContains(t, err, "backend unavailable")

	f.categories = nil
	got, err = d.Discover(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIdentify(t *testing.T) {
	f := newFakeBackend()
	f.products["Headphones"] = []string{"Sony WH", "Bose QC", "Sony WH"}
	f.products["Speakers"] = []string{"Sonos One"}
	d := NewDiscovery(f, f, 2, nil, quietLogger())

	got, err := d.Identify(context.Background(), []string{"Headphones", "Speakers", "Headphones"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"Headphones": {"Sony WH", "Bose QC"},
		"Speakers":   {"Sonos One"},
	}, got)
	assert.Equal(t, 1, f.calls["Headphones"])

	empty, err := d.Identify(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestIdentifyFailsAsAWhole(t *testing.T) {
	f := newFakeBackend()
	f.products["Headphones"] = []string{"Sony WH"}
	f.identErr["Speakers"] = errors.New("rate limited")
	d := NewDiscovery(f, f, 4, nil, quietLogger())

	got, err := d.Identify(context.Background(), []string{"Headphones", "Speakers"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Speakers"`)
	assert.Nil(t, got)
}
