// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bakhtin/ctf-tshirt/lib/netutil"
)

// ErrLineTooLong is returned by the line reader for input longer than
// the configured maximum. The rest of the line has been discarded.
var ErrLineTooLong = errors.New("session: line too long")

const (
	DefaultIdleTimeout   = 5 * time.Minute
	DefaultMaxLineLength = 1024

	// writeTimeout bounds each flush so a peer that stops reading
	// cannot pin a session forever.
	writeTimeout = 30 * time.Second
)

// EndReason says why a connection ended.
type EndReason string

const (
	EndExit        EndReason = "exit"
	EndIdleTimeout EndReason = "idle timeout"
	EndPeerClosed  EndReason = "peer closed"
	EndShutdown    EndReason = "shutdown"
	EndError       EndReason = "error"
)

// ConnConfig bounds one connection's input.
type ConnConfig struct {
	// IdleTimeout is the deadline for each line. Defaults to
	// DefaultIdleTimeout.
	IdleTimeout time.Duration

	// MaxLineLength limits a line, excluding its terminator.
	// Defaults to DefaultMaxLineLength.
	MaxLineLength int
}

// Run drives the session over conn until the peer exits, goes idle,
// disconnects, or ctx is cancelled. Cancelling ctx unblocks a pending
// read. Run does not close conn. The returned error is nil for every
// ordinary ending.
func (s *Session) Run(ctx context.Context, conn net.Conn, cfg ConnConfig) (EndReason, error) {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.MaxLineLength <= 0 {
		cfg.MaxLineLength = DefaultMaxLineLength
	}
	defer s.close()

	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	reader := newLineReader(conn, cfg.MaxLineLength)
	writer := bufio.NewWriter(conn)
	flush := func() error {
		if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return err
		}
		return writer.Flush()
	}

	if err := s.Greet(writer); err != nil {
		return classify(err)
	}
	if err := flush(); err != nil {
		return classify(err)
	}

	for !s.Closed() {
		if err := conn.SetReadDeadline(time.Now().Add(cfg.IdleTimeout)); err != nil {
			return classify(err)
		}
		// Checked after the deadline is armed: a cancellation that
		// fired before this point would otherwise be overwritten.
		if ctx.Err() != nil {
			return s.farewell(writer, flush, shutdownText, EndShutdown)
		}

		line, err := reader.readLine()
		switch {
		case errors.Is(err, ErrLineTooLong):
			fmt.Fprintf(writer, lineTooLongFormat, cfg.MaxLineLength)
			writer.WriteString(s.Prompt())
			if err := flush(); err != nil {
				return classify(err)
			}
			continue
		case err != nil && netutil.IsTimeout(err):
			if ctx.Err() != nil {
				return s.farewell(writer, flush, shutdownText, EndShutdown)
			}
			return s.farewell(writer, flush, timeoutText, EndIdleTimeout)
		case err != nil:
			return classify(err)
		}

		handleErr := s.Handle(ctx, writer, line)
		if err := flush(); err != nil {
			return classify(errors.Join(handleErr, err))
		}
		if handleErr != nil {
			return EndError, handleErr
		}
	}
	return EndExit, nil
}

// farewell makes a best-effort attempt to say goodbye.
func (s *Session) farewell(writer *bufio.Writer, flush func() error, text string, reason EndReason) (EndReason, error) {
	writer.WriteString(text)
	flush()
	return reason, nil
}

func classify(err error) (EndReason, error) {
	if netutil.IsExpectedCloseError(err) {
		return EndPeerClosed, nil
	}
	return EndError, err
}

// lineReader frames input on '\n'. A trailing '\r' is dropped.
type lineReader struct {
	reader *bufio.Reader
	limit  int
}

func newLineReader(source io.Reader, limit int) *lineReader {
	// Room for the longest accepted line plus CRLF, so ReadSlice only
	// reports a full buffer for lines that are too long anyway.
	return &lineReader{reader: bufio.NewReaderSize(source, limit+2), limit: limit}
}

func (r *lineReader) readLine() (string, error) {
	line, err := r.reader.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		if err := r.discardLine(); err != nil {
			return "", err
		}
		return "", ErrLineTooLong
	}
	if err != nil {
		return "", err
	}

	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) > r.limit {
		return "", ErrLineTooLong
	}
	return string(line), nil
}

func (r *lineReader) discardLine() error {
	for {
		_, err := r.reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return err
	}
}
