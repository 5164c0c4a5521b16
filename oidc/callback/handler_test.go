// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/myopenpass/openpass-go/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yhat/scrape"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// pageMessage returns the text of the message element of a response page.
func pageMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	root, err := html.Parse(w.Body)
	require.NoError(t, err)
	title, ok := scrape.Find(root, scrape.ByTag(atom.Title))
	require.True(t, ok)
	assert.Equal(t, "OpenPass sign in", scrape.Text(title))
	msg, ok := scrape.Find(root, scrape.ById("message"))
	require.True(t, ok)
	return scrape.Text(msg)
}

func TestHandler(t *testing.T) {
	t.Parallel()
	open, urls := opened()
	s, err := NewChannelSession(open)
	require.NoError(t, err)

	t.Run("invalid", func(t *testing.T) {
		_, err := Handler(nil, testScheme, "openpass", DefaultResponse)
		assert.ErrorIs(t, err, oidc.ErrNilParameter)
		_, err = Handler(s, "", "openpass", DefaultResponse)
		assert.ErrorIs(t, err, oidc.ErrInvalidParameter)
		_, err = Handler(s, testScheme, "openpass", nil)
		assert.ErrorIs(t, err, oidc.ErrNilParameter)
	})

	var (
		gotURL string
		gotErr error
	)
	h, err := Handler(s, testScheme, "openpass", func(callbackURL string, err error, w http.ResponseWriter, req *http.Request) {
		gotURL, gotErr = callbackURL, err
		DefaultResponse(callbackURL, err, w, req)
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/callback?code=c&state=s", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, pageMessage(t, w), "Sign in failed")
	assert.ErrorIs(t, gotErr, ErrNoSignIn)

	res := authenticate(context.Background(), s, "https://auth.example.com/authorize")
	<-urls
	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/callback?code=c&state=s", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, pageMessage(t, w), "Signed in")
	require.NoError(t, gotErr)

	want := testScheme + "://openpass?code=c&state=s"
	assert.Equal(t, want, gotURL)
	r := waitResult(t, res)
	require.NoError(t, r.err)
	assert.Equal(t, want, r.callbackURL)
}
