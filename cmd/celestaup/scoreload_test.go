package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, fileName, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), []byte(content), 0o644))
}

func TestLoadScoreBuildsGrainsAndTables(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "orders.grain.yaml", `
version: "app 1.0"
autoupdate: true
tables:
  - name: orders
    autoupdate: true
    versioned: true
    columns:
      - {name: id, type: integer, identity: true}
      - {name: total, type: float, nullable: true}
    pk: [id]
`)

	score, err := loadScore(dir, "celesta")
	require.NoError(t, err)

	g, ok := score.Grain("orders")
	require.True(t, ok)
	assert.True(t, g.Autoupdate())
	assert.Equal(t, "app 1.0", g.Version().String())

	tbl, ok := g.Table("orders")
	require.True(t, ok)
	assert.Equal(t, []string{"id"}, tbl.PrimaryKey())
	col, ok := tbl.Column("total")
	require.True(t, ok)
	_, hasDefault := col.Default()
	assert.False(t, hasDefault)

	sys, ok := score.SystemGrain()
	require.True(t, ok)
	assert.Equal(t, "celesta", sys.Name())
}

func TestLoadScoreResolvesForeignKeysAcrossGrains(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "customers.grain.yaml", `
version: "app 1.0"
tables:
  - name: customer
    columns:
      - {name: id, type: integer, identity: true}
    pk: [id]
`)
	writeManifest(t, dir, "orders.grain.yaml", `
version: "app 1.0"
tables:
  - name: orders
    columns:
      - {name: id, type: integer, identity: true}
      - {name: customer_id, type: integer}
    pk: [id]
    foreignKeys:
      - columns: [customer_id]
        referencedGrain: customers
        referencedTable: customer
        referencedColumns: [id]
`)

	score, err := loadScore(dir, "celesta")
	require.NoError(t, err)

	orders, ok := score.Grain("orders")
	require.True(t, ok)
	tbl, ok := orders.Table("orders")
	require.True(t, ok)
	require.Len(t, tbl.ForeignKeys(), 1)
	ref := tbl.ForeignKeys()[0].ReferencedTable()
	require.NotNil(t, ref)
	assert.Equal(t, "customer", ref.Name())
}

func TestLoadScoreRejectsUnknownColumnType(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "bad.grain.yaml", `
tables:
  - name: t
    columns:
      - {name: c, type: nonsense}
`)

	_, err := loadScore(dir, "celesta")
	require.Error(t, err)
}
