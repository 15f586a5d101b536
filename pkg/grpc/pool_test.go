package grpc

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
)

func TestPool_ReusesConnectionPerTarget(t *testing.T) {
	p := NewPool()
	defer p.Close()

	a, err := p.GetConnection("passthrough:///a")
	require.NoError(t, err)
	again, err := p.GetConnection("passthrough:///a")
	require.NoError(t, err)
	b, err := p.GetConnection("passthrough:///b")
	require.NoError(t, err)

	assert.Same(t, a, again)
	assert.NotSame(t, a, b)
}

func TestPool_ConcurrentGetCreatesOne(t *testing.T) {
	p := NewPool()
	defer p.Close()

	const n = 32
	conns := make([]*grpc.ClientConn, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := p.GetConnection("passthrough:///shared")
			assert.NoError(t, err)
			conns[i] = conn
		}(i)
	}
	wg.Wait()

	for _, c := range conns[1:] {
		assert.Same(t, conns[0], c)
	}
}

func TestPool_ReplacesShutdownConnection(t *testing.T) {
	p := NewPool()
	defer p.Close()

	first, err := p.GetConnection("passthrough:///a")
	require.NoError(t, err)
	require.NoError(t, first.Close())
	assert.Equal(t, connectivity.Shutdown, first.GetState())

	second, err := p.GetConnection("passthrough:///a")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestPool_CloseShutsDownAll(t *testing.T) {
	var calls int
	p := NewPool(WithInterceptor(func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		calls++
		return invoker(ctx, method, req, reply, cc, opts...)
	}))

	a, err := p.GetConnection("passthrough:///a")
	require.NoError(t, err)
	b, err := p.GetConnection("passthrough:///b")
	require.NoError(t, err)

	require.NoError(t, p.Close())
	assert.Equal(t, connectivity.Shutdown, a.GetState())
	assert.Equal(t, connectivity.Shutdown, b.GetState())
	assert.Zero(t, calls)
}
