// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// cli signs in to OpenPass from a terminal with either the device
// authorization flow or the sign-in flow, prints the resulting claims and
// then optionally refreshes and signs out.
//
// Configuration is read from the OPENPASS_* environment variables, and from
// the dotenv file named by -env.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/myopenpass/openpass-go/oidc"
	"github.com/myopenpass/openpass-go/oidc/callback"
)

func main() {
	flow := flag.String("flow", "device", "sign in flow to use: device or signin")
	envFile := flag.String("env", "", "optional dotenv file with OPENPASS_* settings")
	refresh := flag.Bool("refresh", false, "refresh the tokens once signed in")
	signOut := flag.Bool("sign-out", false, "sign out before exiting")
	debug := flag.Bool("debug", false, "enable debug logging")
	timeout := flag.Duration("timeout", 10*time.Minute, "how long to wait for the user to sign in")
	flag.Parse()

	level := hclog.Info
	if *debug {
		level = hclog.Debug
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "openpass-cli",
		Level:  level,
		Output: os.Stderr,
	})

	if err := run(logger, *flow, *envFile, *refresh, *signOut, *timeout); err != nil {
		if errors.Is(err, oidc.ErrAuthorizationCancelled) {
			fmt.Fprintln(os.Stderr, "sign in cancelled")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(logger hclog.Logger, flow, envFile string, refresh, signOut bool, timeout time.Duration) error {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	c, err := oidc.LoadConfigFromEnv(files...)
	if err != nil {
		return err
	}

	// handle ctrl-c while waiting for the user
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m, err := oidc.NewManager(ctx, c, oidc.WithLogger(logger))
	if err != nil {
		return err
	}

	sub, err := m.Subscribe()
	if err != nil {
		m.Close()
		return err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for t := range sub.C {
			if t == nil {
				logger.Info("signed out")
				continue
			}
			logger.Info("tokens updated", "subject", t.IDToken.Subject, "expires", t.ExpiresAt().Format(time.RFC3339))
		}
	}()
	defer func() {
		m.Close()
		<-done
	}()

	var tokens *oidc.TokenSet
	switch flow {
	case "device":
		tokens, err = deviceSignIn(ctx, m)
	case "signin":
		tokens, err = browserSignIn(ctx, m)
	default:
		return fmt.Errorf("unknown flow %q, use device or signin", flow)
	}
	if err != nil {
		return err
	}
	printClaims(os.Stderr, tokens)

	if refresh {
		if tokens.RefreshToken == "" {
			return errors.New("no refresh token was issued")
		}
		f, err := m.RefreshTokenFlow()
		if err != nil {
			return err
		}
		if tokens, err = f.RefreshTokens(ctx, tokens.RefreshToken); err != nil {
			return err
		}
		printClaims(os.Stderr, tokens)
	}

	if signOut {
		return m.SignOut(ctx)
	}
	return nil
}

func deviceSignIn(ctx context.Context, m *oidc.Manager) (*oidc.TokenSet, error) {
	f, err := m.DeviceAuthorizationFlow()
	if err != nil {
		return nil, err
	}
	dc, err := f.FetchDeviceCode(ctx)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "Visit %s and enter the code:\n\n    %s\n\n", dc.VerificationURI, dc.UserCode)
	if dc.VerificationURIComplete != "" {
		fmt.Fprintf(os.Stderr, "Or open %s\n\n", dc.VerificationURIComplete)
	}
	return f.FetchAccessToken(ctx, dc)
}

func browserSignIn(ctx context.Context, m *oidc.Manager) (*oidc.TokenSet, error) {
	f, err := m.SignInFlow(&callback.ReaderSession{In: os.Stdin, Out: os.Stderr})
	if err != nil {
		return nil, err
	}
	return f.BeginSignIn(ctx)
}

// printClaims writes the id_token claims of t, followed by the redacted
// TokenSet, to w.
func printClaims(w io.Writer, t *oidc.TokenSet) {
	const op = "printClaims"
	claims := struct {
		Issuer        string `json:"iss"`
		Subject       string `json:"sub"`
		Audience      string `json:"aud"`
		Expiry        int64  `json:"exp"`
		Email         string `json:"email,omitempty"`
		EmailVerified *bool  `json:"email_verified,omitempty"`
		GivenName     string `json:"given_name,omitempty"`
		FamilyName    string `json:"family_name,omitempty"`
	}{
		Issuer:        t.IDToken.Issuer,
		Subject:       t.IDToken.Subject,
		Audience:      t.IDToken.Audience,
		Expiry:        t.IDToken.ExpirationTime,
		Email:         t.IDToken.Email,
		EmailVerified: t.IDToken.EmailVerified,
		GivenName:     t.IDToken.GivenName,
		FamilyName:    t.IDToken.FamilyName,
	}
	data, err := json.MarshalIndent(claims, "", "    ")
	if err != nil {
		fmt.Fprintf(w, "%s: %s\n", op, err)
		return
	}
	fmt.Fprintf(w, "IDToken claims:\n%s\n%s\n", data, t)
}
