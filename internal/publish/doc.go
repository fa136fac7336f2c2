// Package publish uploads committed deliverables to S3-compatible object
// storage. It implements commit.Publisher.
package publish
