package web

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPages(t *testing.T) {
	ts, err := Load()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ts.Render(&buf, PageLogin, LoginPage{Login: "demo", Error: "Wrong login/password"}))
	html := buf.String()
	assert.Contains(t, html, `name="password"`)
	assert.Contains(t, html, "Wrong login/password")
	assert.NotContains(t, html, `name="otp_code"`)

	buf.Reset()
	require.NoError(t, ts.Render(&buf, PageScanCode, LoginPage{
		Login:        "demo",
		PendingToken: "tok",
		SecretCode:   "JBSWY3DPEHPK3PXP",
		QRCode:       "iVBORw0KGgo=",
	}))
	html = buf.String()
	assert.Contains(t, html, "data:image/png;base64,iVBORw0KGgo=")
	assert.Contains(t, html, `name="otp_code"`)
	assert.Contains(t, html, `name="pending_token" value="tok"`)
	assert.NotContains(t, html, `name="password"`)

	buf.Reset()
	require.NoError(t, ts.Render(&buf, PageVerifyCode, LoginPage{Login: "<b>demo</b>", Error: "Your security code is wrong"}))
	html = buf.String()
	assert.Contains(t, html, "Your security code is wrong")
	assert.Contains(t, html, "&lt;b&gt;demo&lt;/b&gt;")
	assert.NotContains(t, html, "data:image/png")
}

func TestRenderUnknownPage(t *testing.T) {
	ts, err := Load()
	require.NoError(t, err)
	var buf bytes.Buffer
	assert.Error(t, ts.Render(&buf, "missing", LoginPage{}))
	assert.Zero(t, buf.Len())
}
