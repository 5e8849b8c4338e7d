// Package domain defines the core business types for the newsletter service.
//
// Types in this package are pure value objects: no database dependencies,
// no HTTP concerns, no side effects. They are the shared language between
// handlers, the subscription service, and the repository.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Parsing/validation functions are allowed (they're pure)
//   - Constants and enums belong here
package domain
