// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback_test

import (
	"context"
	"fmt"
	"os"

	"github.com/myopenpass/openpass-go/oidc"
	"github.com/myopenpass/openpass-go/oidc/callback"
)

func ExampleReaderSession() {
	ctx := context.Background()
	c, err := oidc.NewConfig("your_client_id", "openpass")
	if err != nil {
		// handle error
	}
	m, err := oidc.NewManager(ctx, c)
	if err != nil {
		// handle error
	}
	defer m.Close()

	f, err := m.SignInFlow(&callback.ReaderSession{In: os.Stdin, Out: os.Stdout})
	if err != nil {
		// handle error
	}
	tokens, err := f.BeginSignIn(ctx)
	if err != nil {
		// handle error
	}
	fmt.Println(tokens.IDToken.Email)
}

func ExampleHandler() {
	s, err := callback.NewChannelSession(func(_ context.Context, authURL string) error {
		fmt.Println("open", authURL)
		return nil
	})
	if err != nil {
		// handle error
	}
	h, err := callback.Handler(s, "com.myopenpass.auth.your_client_id", "openpass", callback.DefaultResponse)
	if err != nil {
		// handle error
	}
	_ = h // register h with your http.ServeMux
}
