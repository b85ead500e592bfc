// Package transport wraps net/rpc clients with context-aware calls.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"os"
	"syscall"
	"time"
)

// Caller issues RPC calls to a remote service.
type Caller interface {
	Call(ctx context.Context, serviceMethod string, args interface{}, reply interface{}) error
	Close() error
}

// RPCCaller implements Caller on top of a net/rpc client.
type RPCCaller struct {
	client *rpc.Client
}

// Call implements Caller interface.
// The call is abandoned (not canceled on the remote side) once ctx is done.
func (c *RPCCaller) Call(ctx context.Context, serviceMethod string, args interface{}, reply interface{}) error {
	call := c.client.Go(serviceMethod, args, reply, make(chan *rpc.Call, 1))

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", serviceMethod, ctx.Err())
	case res := <-call.Done:
		if res.Error != nil {
			return fmt.Errorf("%s: %w", serviceMethod, res.Error)
		}
		return nil
	}
}

// Close implements Caller interface.
func (c *RPCCaller) Close() error {
	return c.client.Close()
}

// NewRPCCaller wraps an existing net/rpc client.
func NewRPCCaller(client *rpc.Client) *RPCCaller {
	return &RPCCaller{client: client}
}

// DialOptions configures Dial.
type DialOptions struct {
	// Number of extra attempts on "connection refused"
	Retries int
	// Pause between attempts
	RetryFallback time.Duration
}

// Dial connects to the RPC server at address.
// Only connection establishment is retried (server might be still starting), never calls.
func Dial(ctx context.Context, address string, opts DialOptions) (*RPCCaller, error) {
	if opts.Retries < 0 {
		return nil, fmt.Errorf("%s: must be GTE 0", "Retries")
	}
	if opts.RetryFallback <= 0 {
		opts.RetryFallback = 500 * time.Millisecond
	}

	dialer := net.Dialer{}
	for retry := 0; ; retry++ {
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err == nil {
			return NewRPCCaller(rpc.NewClient(conn)), nil
		}

		if retry < opts.Retries && isConnRefused(err) {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("dial (%s): %w", address, ctx.Err())
			case <-time.After(opts.RetryFallback):
			}
			continue
		}

		return nil, fmt.Errorf("dial (%s): %w", address, err)
	}
}

func isConnRefused(err error) bool {
	var netErr *net.OpError
	if !errors.As(err, &netErr) {
		return false
	}

	var sysErr *os.SyscallError
	if errors.As(netErr.Err, &sysErr) {
		return sysErr.Err == syscall.ECONNREFUSED
	}

	return false
}
