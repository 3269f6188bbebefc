package lease

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/lease-parser/pkg/logger"
)

func TestGetService_DefaultsNeedNoInfrastructure(t *testing.T) {
	rt, err := GetService(context.Background(), testConfig(), logger.NewTestLogger())
	require.NoError(t, err)
	defer rt.Close()

	assert.NotNil(t, rt.Service)
	assert.NotNil(t, rt.Validator)
	assert.Nil(t, rt.Stager)
	assert.Nil(t, rt.Queue)
	assert.Nil(t, rt.Jobs)

	_, err = rt.Service.GetJob(context.Background(), "x")
	assert.ErrorIs(t, err, ErrJobsDisabled)
}

func TestGetService_UnreachableRedis(t *testing.T) {
	cfg := testConfig()
	cfg.Redis.Addr = "127.0.0.1:1"
	_, err := GetService(context.Background(), cfg, logger.NewTestLogger())
	assert.ErrorContains(t, err, "redis")
}

func TestGetService_UnknownStaging(t *testing.T) {
	cfg := testConfig()
	cfg.Staging.Backend = "ftp"
	_, err := GetService(context.Background(), cfg, logger.NewTestLogger())
	assert.ErrorContains(t, err, "unsupported storage type")
}
