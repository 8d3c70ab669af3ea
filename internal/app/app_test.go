package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func testProcess(t *testing.T) *process {
	t.Helper()
	cfg := config.Load(config.ServiceOrders)
	cfg.HTTPAddr = freeAddr(t)
	cfg.ShutdownTimeout = time.Second
	return &process{cfg: cfg, logger: zap.NewNop()}
}

func TestProcess_RunServesUntilCancelled(t *testing.T) {
	p := testProcess(t)
	var closed []string
	p.onClose(func() error { closed = append(closed, "first"); return nil })
	p.onClose(func() error { closed = append(closed, "second"); return errors.New("ignored") })

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	worker := func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- p.run(ctx, p.router(nil), worker) }()
	<-started

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	require.Eventually(t, func() bool {
		resp, err := client.Get(fmt.Sprintf("http://%s/health/live", p.cfg.HTTPAddr))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	assert.Equal(t, []string{"second", "first"}, closed)

	p.close()
	assert.Len(t, closed, 2)
}

func TestProcess_RunStopsOnComponentError(t *testing.T) {
	p := testProcess(t)
	boom := errors.New("consumer crashed")

	err := p.run(context.Background(), p.router(nil), func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestProcess_RunListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	p := testProcess(t)
	p.cfg.HTTPAddr = ln.Addr().String()
	err = p.run(context.Background(), p.router(nil))
	assert.Error(t, err)
}

func TestRunWith_InvalidConfig(t *testing.T) {
	cfg := config.Load(config.ServiceInventory)
	cfg.Inventory.DefaultReservationQuantity = 0

	called := false
	err := runWith(context.Background(), cfg, func(p *process) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestProcess_EnsureTopicsDisabled(t *testing.T) {
	p := testProcess(t)
	p.cfg.Kafka.EnsureTopics = false
	assert.NoError(t, p.ensureTopics(context.Background()))
}
