// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package lzhuf

import "github.com/kc1gsl/varafbb/crc16"

// crcWriter is an io.Writer adapter around crc16.Accumulator, used to
// tee the size field and compressed stream through the B2 CRC-16 check
// as the Reader consumes them.
type crcWriter struct {
	acc *crc16.Accumulator
}

func newCRCWriter() *crcWriter { return &crcWriter{acc: crc16.New()} }

func (w *crcWriter) Write(p []byte) (int, error) { return w.acc.Write(p) }

func (w *crcWriter) Sum() uint16 { return w.acc.Finish() }

// crc computes the CRC-16 of p in one call, used by the Writer to
// compute the header checksum over the size field and the
// already-buffered compressed bytes.
func crc(p []byte) uint16 { return crc16.Sum(p) }
