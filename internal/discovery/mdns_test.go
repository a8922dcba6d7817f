package discovery

import (
	"bytes"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applog "github.com/mateusz-kowalczyk-12/shared-canvas/internal/log"
)

func TestNewServiceUsesInstanceAndPort(t *testing.T) {
	svc, err := newService("canvas-host", "canvas-host.local.", 11000, []net.IP{net.IPv4(192, 168, 1, 10)})
	require.NoError(t, err)

	assert.Equal(t, "canvas-host", svc.Instance)
	assert.Equal(t, ServiceType, svc.Service)
	assert.Equal(t, "local.", svc.Domain)
	assert.Equal(t, 11000, svc.Port)
	assert.Equal(t, []string{"SharedCanvas"}, svc.TXT)
}

func TestNewServiceRejectsUnqualifiedHost(t *testing.T) {
	_, err := newService("canvas-host", "not-qualified", 11000, []net.IP{net.IPv4(192, 168, 1, 10)})
	assert.Error(t, err)
}

type fakeResponder struct {
	calls int
	err   error
}

func (f *fakeResponder) Shutdown() error {
	f.calls++
	return f.err
}

func TestAdvertiserCloseLogsShutdown(t *testing.T) {
	var buf bytes.Buffer
	srv := &fakeResponder{}
	adv := &Advertiser{server: srv, log: applog.NewWithWriter(&buf, "info")}

	require.NoError(t, adv.Close())
	assert.Equal(t, 1, srv.calls)
	assert.Contains(t, buf.String(), "mDNS advertisement stopped")
}

func TestAdvertiserCloseReportsShutdownError(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("boom")
	adv := &Advertiser{server: &fakeResponder{err: boom}, log: applog.NewWithWriter(&buf, "info")}

	assert.ErrorIs(t, adv.Close(), boom)
	assert.NotContains(t, buf.String(), "mDNS advertisement stopped")
}
