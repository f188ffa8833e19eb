// Package models defines the core domain models for the economy service.
//
// # Models
//
//   - User: a player identity that can own accounts
//   - Currency: a named denomination; transfers never cross currencies
//   - Account: a named balance holder, owned by one or more users
//   - TransferRecord: immutable audit entry for one balance movement
//   - DutyContract: recurring payer→owner tax obligation
//   - SharedBox: rentable trade point carrying its own embedded duty
//   - BoxLog: links a box trade to the transfer it caused
//
// # Design Principles
//
//  1. **Plain data**: models carry no behavior; all mutation goes through
//     the storage layer so transactional discipline lives in one place
//  2. **Avoid circular references**: relationships use ID strings, never
//     pointers
//  3. **Unix time**: all timestamps are Unix seconds (int64); duty periods
//     are time.Duration, persisted as whole seconds
package models
