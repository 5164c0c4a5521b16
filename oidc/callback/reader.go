// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/myopenpass/openpass-go/oidc"
)

// ReaderSession is an oidc.AuthenticationSession for terminals: it writes the
// authorize url to Out and reads the callback url the user pastes from In.
// An empty line cancels the sign-in.
type ReaderSession struct {
	In  io.Reader
	Out io.Writer
}

var _ oidc.AuthenticationSession = (*ReaderSession)(nil)

// Authenticate implements oidc.AuthenticationSession. If ctx is done while
// waiting, Authenticate returns without consuming In any further, but the
// pending read is abandoned rather than interrupted.
func (s *ReaderSession) Authenticate(ctx context.Context, authURL, callbackScheme string) (string, error) {
	const op = "ReaderSession.Authenticate"
	if s.In == nil || s.Out == nil {
		return "", fmt.Errorf("%s: in or out is nil: %w", op, oidc.ErrNilParameter)
	}
	if _, err := fmt.Fprintf(s.Out, "Open this url in your browser to sign in:\n\n  %s\n\n", authURL); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if _, err := fmt.Fprintf(s.Out, "Then paste the %s:// url you were sent to (empty to cancel): ", callbackScheme); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	lines := make(chan result, 1)
	go func() {
		sc := bufio.NewScanner(s.In)
		if sc.Scan() {
			lines <- result{callbackURL: strings.TrimSpace(sc.Text())}
			return
		}
		err := sc.Err()
		if err == nil {
			err = io.EOF
		}
		lines <- result{err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	case r := <-lines:
		switch {
		case r.err == io.EOF, r.err == nil && r.callbackURL == "":
			return "", fmt.Errorf("%s: %w", op, oidc.ErrUserCancelled)
		case r.err != nil:
			return "", fmt.Errorf("%s: %w", op, r.err)
		}
		return r.callbackURL, nil
	}
}
