package sql

import (
	"embed"
)

// Migrations holds the DDL files applied by db.ApplyMigrations.
//
//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed queries/insert_batch.sql
var InsertBatch string

//go:embed queries/finish_batch.sql
var FinishBatch string

//go:embed queries/latest_batch.sql
var LatestBatch string

//go:embed queries/select_features.sql
var SelectFeatures string

//go:embed queries/delete_batch.sql
var DeleteBatch string

//go:embed queries/list_batches.sql
var ListBatches string
