// Package security summarizes the effective security posture of an engine
// configuration.
//
// [BuildReport] is pure: it takes the resolved settings and returns a
// [Report] with derived flags and human-readable warnings. The root
// package exposes it as Engine.SecurityReport and the server logs it at
// start-up.
package security
