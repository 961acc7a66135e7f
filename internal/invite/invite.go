// Package invite builds the connect link other users open to send a
// connection request, and renders it as a terminal QR code.
package invite

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Link returns the connect link for userID on the given backend.
func Link(backendURL, userID string) (string, error) {
	if userID == "" {
		return "", errors.New("invite: no user id")
	}
	u, err := url.Parse(strings.TrimRight(backendURL, "/"))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invite: bad backend url %q", backendURL)
	}
	return u.JoinPath("connect", userID).String(), nil
}

// Render draws content as a QR code using Unicode half blocks, two module
// rows per terminal line. indent is written at the start of every line.
func Render(content, indent string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("invite: qr: %w", err)
	}
	bitmap := qr.Bitmap()

	var sb strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		sb.WriteString(indent)
		for x := range bitmap[y] {
			top := bitmap[y][x]
			bot := y+1 < len(bitmap) && bitmap[y+1][x]
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
