// Package logx is a thin structured-logging layer over zerolog.
//
// It provides:
//   - A Logger value type whose zero value is a safe no-op.
//   - Field helpers (String, Int64, Time, Err, ...) applied per call site.
//   - A Service that owns sinks (console, file) and can re-Apply its
//     configuration at runtime without invalidating existing Logger values.
package logx
