// Package invite builds shareable town chat links and renders them as
// terminal QR codes.
package invite

import (
	"fmt"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Scheme is the URL scheme clients register for deep links.
const Scheme = "atitlan"

// Link returns the deep link that opens a town's chat room.
func Link(townID string) string {
	u := url.URL{Scheme: Scheme, Host: "town", Path: "/" + townID + "/chat"}
	return u.String()
}

// ParseLink extracts the town id from a link produced by Link.
func ParseLink(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse invite: %w", err)
	}
	town, ok := strings.CutSuffix(strings.TrimPrefix(u.Path, "/"), "/chat")
	if u.Scheme != Scheme || u.Host != "town" || !ok || town == "" || strings.Contains(town, "/") {
		return "", fmt.Errorf("not a town chat invite: %q", link)
	}
	return town, nil
}

// RenderQR converts content to a compact QR code drawn with Unicode
// half-block characters. Two bitmap rows become one terminal line, each
// prefixed with indent.
func RenderQR(content, indent string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	qr.DisableBorder = false

	bitmap := qr.Bitmap()
	rows := len(bitmap)
	cols := 0
	if rows > 0 {
		cols = len(bitmap[0])
	}

	var sb strings.Builder
	for y := 0; y < rows; y += 2 {
		sb.WriteString(indent)
		for x := 0; x < cols; x++ {
			top := bitmap[y][x]
			bot := y+1 < rows && bitmap[y+1][x]
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
		sb.WriteRune('\n')
	}
	return sb.String(), nil
}
