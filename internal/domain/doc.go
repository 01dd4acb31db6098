// Package domain defines the persisted records of companiond and the enums
// shared between analysis, intervention and storage code.
//
// Records carry gorm tags and are migrated by internal/store. Nested values
// (tendencies, rules, overrides, notification metadata) are stored as JSON
// columns through gorm.io/datatypes and are typed structs, never open maps.
//
// Every record is scoped by UserID and has a single owner.
package domain
