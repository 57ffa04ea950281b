package rpcedge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func TestServerConfig_Validate(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Address = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultServerConfig()
	cfg.MaxRecvMsgSize = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultServerConfig()
	cfg.MaxSendMsgSize = -1
	assert.Error(t, cfg.Validate())
}

func TestNewServer_DefaultsConfigWhenNil(t *testing.T) {
	srv, err := NewServer(nil, &Facade{})
	require.NoError(t, err)
	assert.NotNil(t, srv.GetGRPCServer())
}

func TestNewServer_RejectsInvalidConfig(t *testing.T) {
	_, err := NewServer(&ServerConfig{}, &Facade{})
	assert.Error(t, err)
}

func TestServer_StartStopLifecycle(t *testing.T) {
	facade := &Facade{}
	srv, err := NewServer(&ServerConfig{Address: "127.0.0.1:0", MaxRecvMsgSize: 1024, MaxSendMsgSize: 1024}, facade)
	require.NoError(t, err)
	assert.Same(t, facade, srv.Facade())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	require.Eventually(t, func() bool {
		return srv.Address() != ""
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	srv.Stop(ctx)

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestServer_HealthRegistered(t *testing.T) {
	srv, err := NewServer(&ServerConfig{Address: "127.0.0.1:0", MaxRecvMsgSize: 1024, MaxSendMsgSize: 1024}, &Facade{})
	require.NoError(t, err)

	info := srv.GetGRPCServer().GetServiceInfo()
	_, ok := info[grpc_health_v1.Health_ServiceDesc.ServiceName]
	assert.True(t, ok, "health service must be registered so orchestrators can probe readiness")
}
