// Package common provides shared constants, types, utilities, and interfaces
// used throughout the VPN Client application.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: application-wide constants like refresh intervals, file
//     names, and backoff defaults
//   - Errors: sentinel errors for consistent error handling across packages
//   - Interfaces: abstractions for the VPN connector, credential storage,
//     notifications, and logging
//   - Logger: structured logging backed by zap with rotating file output
//
// Packages higher in the dependency graph (api, refresher, reconnector, ui)
// import common; common imports nothing from the rest of the application.
package common
