// Package personalization maintains each user's Personalization record.
//
// Updater folds a pattern analysis into the record: it merges behavioral
// tendencies, decays the ones that were not seen again, derives adaptation
// rules and infers communication preferences and intent. Service serves the
// record to request handlers and applies explicit user overrides.
//
// Every write bumps Version and is checked against the version that was
// read, so concurrent writers fail with store.ErrVersionConflict instead of
// silently overwriting each other.
package personalization
