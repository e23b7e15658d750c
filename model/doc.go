// Package model defines the record and hit types shared by ringvec packages.
//
// # Data Types
//
//   - Record: an immutable (id, vector, metadata) triple
//   - Hit: a record paired with its similarity score
//
// Records are created once at insert time and shared by pointer afterwards.
// A *Record returned from a search may outlive the slot it was read from;
// callers must treat it as read-only.
package model
