// Package formats provides parsers for Spring engine file formats.
package formats

// Note: S3O (Spring unit model) is fully implemented in s3o.go
