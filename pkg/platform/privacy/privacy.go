// Package privacy holds masking helpers for log output. Sponsor emails and
// codes identify real donors and children; raw values never reach logs.
package privacy

import "strings"

// MaskEmail keeps the first character of the local part and the domain so an
// operator can correlate log lines without learning the address.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***@" + email[at+1:]
}

// MaskSponsorCode keeps the program prefix and year, masking the serial that
// identifies an individual sponsorship.
func MaskSponsorCode(code string) string {
	parts := strings.SplitN(code, "-", 3)
	if len(parts) != 3 {
		return "***"
	}
	return parts[0] + "-" + parts[1] + "-***"
}

// AnonymizeIP truncates an address to a coarse prefix for rate-limit logging.
func AnonymizeIP(ip string) string {
	if idx := strings.LastIndex(ip, "."); idx != -1 {
		return ip[:idx] + ".0"
	}
	// IPv6: keep the first two groups.
	groups := strings.Split(ip, ":")
	if len(groups) > 2 {
		return groups[0] + ":" + groups[1] + "::"
	}
	return "***"
}
