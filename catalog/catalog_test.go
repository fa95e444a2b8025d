package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intellect4all/reldb/schema"
)

func newUsersSchema(name string) *schema.Table {
	s := schema.New(name)
	_ = s.AddColumn(schema.Column{Name: "id", Type: schema.Int, PrimaryKey: true})
	_ = s.AddColumn(schema.Column{Name: "label", Type: schema.Varchar, MaxLen: 32})
	return s
}

func TestCreateTableRegistersInMetadata(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenDatabase(Config{RootDir: dir}, "shop")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.CreateTable(newUsersSchema("widgets"))
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"widgets"}, db.ListTables())
}

func TestCreateTableRejectsDuplicate(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenDatabase(Config{RootDir: dir}, "shop")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.CreateTable(newUsersSchema("widgets"))
	require.NoError(t, err)
	_, err = db.CreateTable(newUsersSchema("widgets"))
	require.Error(t, err)
}

func TestDatabaseReopenLoadsExistingTables(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenDatabase(Config{RootDir: dir}, "shop")
	require.NoError(t, err)
	_, err = db.CreateTable(newUsersSchema("widgets"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := OpenDatabase(Config{RootDir: dir}, "shop")
	require.NoError(t, err)
	defer reopened.Close()
	require.ElementsMatch(t, []string{"widgets"}, reopened.ListTables())
}

func TestDropTableRemovesFromRegistry(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenDatabase(Config{RootDir: dir}, "shop")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.CreateTable(newUsersSchema("widgets"))
	require.NoError(t, err)
	ok, err := db.DropTable("widgets")
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, db.ListTables())
}

func TestCatalogOpensPerUserDatabases(t *testing.T) {
	dir := t.TempDir()
	cat := NewCatalog(dir, nil)

	db, err := cat.OpenDatabase("alice", "shop")
	require.NoError(t, err)
	_, err = db.CreateTable(newUsersSchema("widgets"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	names, err := cat.ListDatabases("alice")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"shop"}, names)
}
