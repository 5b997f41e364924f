// Package db embeds the PostgreSQL schema for customers, the service and parts
// catalogs, and orders.
package db

import _ "embed"

// Schema holds idempotent DDL applied at startup.
//
//go:embed migrations/001_schema.sql
var Schema string
