// Package facts derives structured facts from repository content. Every
// extractor reads through a repository.Files and returns either a value, a
// confirmed absence, or an error meaning the fact could not be determined.
// Callers keep the stored catalogue value when an extractor errors.
package facts
