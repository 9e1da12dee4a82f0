package db

import "embed"

// MigrationsDir is the directory inside Migrations holding the behavior_baselines schema.
const MigrationsDir = "migrations"

//go:embed migrations/*.sql
var Migrations embed.FS
