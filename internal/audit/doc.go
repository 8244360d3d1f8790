// Package audit buffers security events and delivers them to a [Sink] off
// the request path.
//
// The engine decides what to emit. This package only queues, drops when
// configured to, and fans events out to channel, JSON-lines or logrus sinks.
// It must not import the root package.
package audit
