// Package db embeds the PostgreSQL schema of the checkout cleanup log.
package db

import _ "embed"

// Schema holds idempotent DDL for the saga and task tables.
//
//go:embed migrations/001_schema.sql
var Schema string
