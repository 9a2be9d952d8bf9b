// Package app provides the application composition layer.
//
// # Architecture Role
//
// The app package sits above storage and the individual services and is
// responsible for composing them into a running application. It is NOT a
// business logic layer - business logic belongs in internal/app/services/.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── user/           # Accounts and credentials
//	│   ├── project/        # Projects, memberships, milestones, activities
//	│   ├── task/           # Tasks, comments, history
//	│   └── token/          # Token issuance records and identities
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces (UserStore, ProjectStore, ...)
//	│   ├── memory/         # In-memory implementation, default and test backend
//	│   ├── postgres/       # PostgreSQL implementation for production
//	│   └── redis/          # Redis-backed token issuance store
//	├── services/           # Core services (auth, memberships, projects, tasks)
//	├── httpapi/            # HTTP handlers, routing, request audit
//	├── system/             # Lifecycle management for registered services
//	└── metrics/            # Prometheus collectors and HTTP instrumentation
//
// # Responsibilities
//
// The app package is responsible for:
//
//   - Composing services with their stores and shared logger
//   - Defaulting absent stores to the in-memory backend
//   - Registering long-running services (the overdue sweeper) with the
//     system manager so startup and shutdown are ordered
//   - Exposing the composed services to the HTTP layer
//
// Handlers never reach around the services to touch stores directly; every
// mutation goes through a service so authorization and audit trails hold.
package app
