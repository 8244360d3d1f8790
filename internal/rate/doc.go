// Package rate keeps Redis fixed-window counters that throttle credential
// guessing and refresh-token spraying.
//
// A counter is bumped by a small script that sets the window expiry on the
// first hit, so a crash between the two steps cannot leave a counter that
// never expires. Keys live under a configurable prefix (default "grl"):
//
//	{prefix}:lu:{username}  failed logins per lowercased username
//	{prefix}:li:{ip}        failed logins per client IP
//	{prefix}:r:{ip}         refresh attempts per client IP
//
// Login windows count failures only; refresh windows count every attempt.
package rate
