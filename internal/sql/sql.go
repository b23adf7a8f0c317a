// Package sql embeds the Postgres schema and the audit-log statements.
package sql

import (
	"embed"
)

//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed queries/create_ingestion_log.sql
var CreateIngestionLog string

//go:embed queries/update_ingestion_log.sql
var UpdateIngestionLog string
