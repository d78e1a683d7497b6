// Package logx wraps zerolog behind a small, service-friendly API.
//
// Components receive a value-type Logger and attach fixed fields with
// With(). The Service owns the sinks (console, file, optional alert
// forwarding) and can swap them at runtime via Apply(), so a config reload
// changes log output without re-plumbing loggers through the app.
package logx
