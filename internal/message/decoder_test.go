package message

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// crlf normalizes test fixtures to RFC 5322 line endings.
func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestDecodeMultipartPrefersHTML(t *testing.T) {
	raw := crlf(`From: Costco <orders@costco.com>
To: buyer@example.com
Subject: Your Costco.com order W123456789 is confirmed
Date: Mon, 05 Jan 2026 10:30:00 +0000
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/plain; charset=utf-8

Your order is confirmed.
--b1
Content-Type: text/html; charset=utf-8

<html><body><p>Order Number: W123456789</p></body></html>
--b1--
`)

	d := Decode(raw)
	require.Equal(t, "Your Costco.com order W123456789 is confirmed", d.Subject)
	require.Equal(t, "orders@costco.com", d.Sender)
	require.Equal(t, 2026, d.Date.Year())
	require.Contains(t, d.HTML, "Order Number: W123456789")
	require.Contains(t, d.Text, "Your order is confirmed.")
	require.Equal(t, d.HTML, d.Body(), "HTML wins when both parts exist")
}

func TestDecodeQuotedPrintableBody(t *testing.T) {
	raw := crlf(`From: orders@costco.com
Subject: Order update
Content-Type: text/html; charset=utf-8
Content-Transfer-Encoding: quoted-printable

<p>Caf=C3=A9 Espresso Machine</p>
`)

	d := Decode(raw)
	require.Contains(t, d.HTML, "Café Espresso Machine")
}

func TestDecodeEncodedWordSubject(t *testing.T) {
	raw := crlf(`From: orders@costco.com
Subject: =?utf-8?q?Your_order_shipped_=E2=9C=93?=
Content-Type: text/plain; charset=utf-8

Shipped.
`)

	d := Decode(raw)
	require.Equal(t, "Your order shipped ✓", d.Subject)
}

func TestDecodePlainOnlyBodyFallback(t *testing.T) {
	raw := crlf(`From: orders@costco.com
Subject: Order update
Content-Type: text/plain; charset=utf-8

Order Number: 1234567890
`)

	d := Decode(raw)
	require.Empty(t, d.HTML)
	require.Contains(t, d.Text, "Order Number: 1234567890")
	require.Equal(t, d.Text, d.Body())
}

func TestDecodeGarbageNeverFails(t *testing.T) {
	d := Decode([]byte("\x00\x01 not a mime message <body>Order Number: 123</body>"))
	require.Contains(t, d.Body(), "Order Number: 123")
	require.NotEmpty(t, d.HTML, "payloads with markup are treated as HTML")
}
