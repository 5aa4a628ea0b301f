// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package vara

import (
	"context"
	"net"
	"strconv"

	"github.com/kc1gsl/varafbb/callsign"
	"github.com/kc1gsl/varafbb/transport"
)

// DialURL dials vara:// URLs.
//
// Accepted query parameters:
//   - bw: VARA HF bandwidth (500, 2300 or 2750).
//
// Examples:
//   - vara://127.0.0.1:8300/KW1U
//   - vara://LA5NTA@127.0.0.1:8300/KW1U?bw=2300
func DialURL(url *transport.URL) (net.Conn, error) {
	return DialURLContext(context.Background(), url)
}

// DialURLContext is DialURL with cancellation support for the initial
// TCP connects; the CONNECT handshake that follows does not observe ctx.
func DialURLContext(ctx context.Context, url *transport.URL) (net.Conn, error) {
	if url.Scheme != "vara" {
		return nil, transport.ErrUnsupportedScheme
	}

	host := url.Host
	port := DefaultControlPort
	if h, p, err := net.SplitHostPort(url.Host); err == nil {
		host = h
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}

	target, err := callsign.Parse(url.Target)
	if err != nil {
		return nil, err
	}

	var mycall callsign.StationId
	if url.User != nil {
		mycall, err = callsign.Parse(url.User.Username())
		if err != nil {
			return nil, err
		}
	}

	ctrl, err := DialContext(ctx, host, port, mycall)
	if err != nil {
		return nil, err
	}

	if bw := url.Params.Get("bw"); bw != "" {
		n, err := strconv.Atoi(bw)
		if err != nil {
			ctrl.Close()
			return nil, err
		}
		if err := ctrl.SetBandwidth(Bandwidth(n)); err != nil {
			ctrl.Close()
			return nil, err
		}
	}

	path := ConnectPath{}
	for _, raw := range url.Digis {
		digi, err := callsign.Parse(raw)
		if err != nil {
			ctrl.Close()
			return nil, err
		}
		path.Digis = append(path.Digis, digi)
	}

	conn, err := ctrl.Connect(mycall, target, path)
	if err != nil {
		ctrl.Close()
		return nil, err
	}
	return conn, nil
}

func init() {
	transport.RegisterContextDialer("vara", transport.ContextDialerFunc(DialURLContext))
}
