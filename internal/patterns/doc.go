// Package patterns extracts behavioral patterns from a user's moods,
// journal entries, intervention history, chat sessions and long-term
// memories.
//
// Each extractor is a pure function over already-loaded records and returns
// an empty result when it has too little data. Analyzer loads the records for
// one user and runs every extractor.
package patterns
