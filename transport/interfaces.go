// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package transport

import (
	"context"
	"net"
)

type PTTController interface {
	SetPTT(on bool)
}

// Dialer is implemented by transports that supports dialing a transport.URL.
type Dialer interface {
	DialURL(url *URL) (net.Conn, error)
}

// ContextDialer is implemented by transports that support dialing a
// transport.URL with cancellation.
type ContextDialer interface {
	DialURLContext(ctx context.Context, url *URL) (net.Conn, error)
}

// ContextDialerFunc adapts a plain function to a ContextDialer.
type ContextDialerFunc func(ctx context.Context, url *URL) (net.Conn, error)

func (f ContextDialerFunc) DialURLContext(ctx context.Context, url *URL) (net.Conn, error) {
	return f(ctx, url)
}
