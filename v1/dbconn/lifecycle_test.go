package dbconn

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/mock/gomock"
)

type monitoredConnection struct {
	*MockConnection
	monitored atomic.Bool
	stopped   atomic.Bool
	interval  time.Duration
}

func (m *monitoredConnection) MonitorConnection(ctx context.Context, interval time.Duration) {
	m.interval = interval
	m.monitored.Store(true)
	<-ctx.Done()
	m.stopped.Store(true)
}

func TestRegisterLifecycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := &monitoredConnection{MockConnection: NewMockConnection(ctrl)}

	gomock.InOrder(
		conn.EXPECT().Connect(gomock.Any()).Return(nil),
		conn.EXPECT().Disconnect(gomock.Any()).DoAndReturn(func(context.Context) error {
			assert.True(t, conn.stopped.Load(), "monitor must stop before disconnect")
			return nil
		}),
	)

	lc := fxtest.NewLifecycle(t)
	RegisterLifecycle(lc, conn, Maintenance{HealthInterval: time.Minute})

	lc.RequireStart()
	require.Eventually(t, conn.monitored.Load, time.Second, 5*time.Millisecond)
	assert.Equal(t, time.Minute, conn.interval)
	lc.RequireStop()
}

func TestRegisterLifecycleConnectFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := NewMockConnection(ctrl)
	boom := NewConnectionError(SQLite, "connect", "unreachable", nil)
	conn.EXPECT().Connect(gomock.Any()).Return(boom)

	lc := fxtest.NewLifecycle(t)
	RegisterLifecycle(lc, conn, Maintenance{})

	err := lc.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConnection))
}
