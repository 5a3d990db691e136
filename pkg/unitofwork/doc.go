// Package unitofwork accumulates the change sets of several graph resolutions
// and hands them to a persistence Backend as one batch.
//
// Responsibilities:
//   - UnitOfWork tracks graphs through a graphstate.Resolver and merges their
//     entries by instance identity. A later state for the same instance
//     replaces the earlier one.
//   - Backend applies one Batch. The package never talks to a database; the
//     MemoryBackend is a reference implementation for tests and examples.
//   - Commit emits one activity event per inserted, updated or deleted
//     entity after the backend accepted the batch.
//
// Data flow:
//
//	graph -> Resolver.Resolve -> UnitOfWork.Track -> Commit -> Backend.Apply
package unitofwork
