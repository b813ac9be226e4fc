// Package privacy masks identifiers before they reach logs or audit sinks.
// Raw IPs and full phone numbers are never logged; only masked forms persist
// outside the stores that need them.
package privacy

import (
	"net"
	"strings"
)

// AnonymizeIP reduces an IP address to a coarse prefix: IPv4 keeps the /24,
// IPv6 keeps the /64. Unparseable input is redacted entirely.
func AnonymizeIP(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "redacted"
	}
	if v4 := parsed.To4(); v4 != nil {
		masked := v4.Mask(net.CIDRMask(24, 32))
		return masked.String() + "/24"
	}
	masked := parsed.Mask(net.CIDRMask(64, 128))
	return masked.String() + "/64"
}

// MaskPhone keeps the last four digits of a phone number and blanks the rest.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
