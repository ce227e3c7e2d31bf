package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sockMigrationFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, body := range files {
		fsys["sql/migrations/"+name] = &fstest.MapFile{Data: []byte(body)}
	}
	return fsys
}

func TestEmbeddedMigrations_DescribeSockSchema(t *testing.T) {
	t.Parallel()

	migrations, err := loadMigrationsFromFS(migrationsFS)
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	socks, keys := migrations[0], migrations[1]
	assert.Equal(t, "0001_create_socks", socks.label())
	assert.Equal(t, "0002_create_idempotency_keys", keys.label())

	// Ограничения склада продублированы в схеме: прямой SQL не обойдёт валидацию.
	assert.Contains(t, socks.UpSQL, "CHECK (cotton_percentage BETWEEN 0 AND 100)")
	assert.Contains(t, socks.UpSQL, "CHECK (quantity >= 0)")
	assert.Contains(t, socks.UpSQL, "idx_socks_parameters")
	assert.Contains(t, socks.DownSQL, "DROP TABLE IF EXISTS socks")

	assert.Contains(t, keys.UpSQL, "ttl_at")
	assert.Contains(t, keys.UpSQL, "idx_idempotency_keys_ttl_at")
	assert.Contains(t, keys.DownSQL, "DROP TABLE IF EXISTS idempotency_keys")
}

func TestLoadMigrationsFromFS_SortsByVersion(t *testing.T) {
	t.Parallel()

	migrations, err := loadMigrationsFromFS(sockMigrationFS(map[string]string{
		"0010_add_sock_sku.up.sql":      "ALTER TABLE socks ADD COLUMN sku TEXT;",
		"0010_add_sock_sku.down.sql":    "ALTER TABLE socks DROP COLUMN sku;",
		"0002_create_sell_log.up.sql":   "CREATE TABLE sell_log (id BIGINT);",
		"0002_create_sell_log.down.sql": "DROP TABLE sell_log;",
		"0001_create_socks.up.sql":      "CREATE TABLE socks (id BIGINT);",
		"0001_create_socks.down.sql":    "DROP TABLE socks;",
	}))
	require.NoError(t, err)

	labels := make([]string, 0, len(migrations))
	for _, m := range migrations {
		labels = append(labels, m.label())
	}
	assert.Equal(t, []string{"0001_create_socks", "0002_create_sell_log", "0010_add_sock_sku"}, labels)
	assert.Equal(t, "ALTER TABLE socks ADD COLUMN sku TEXT;", migrations[2].UpSQL)
}

func TestLoadMigrationsFromFS_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{
			name:    "no files",
			files:   map[string]string{},
			wantErr: "no migration files found",
		},
		{
			name:    "missing down",
			files:   map[string]string{"0001_create_socks.up.sql": "CREATE TABLE socks (id BIGINT);"},
			wantErr: "0001_create_socks must have both up and down files",
		},
		{
			name:    "bad file name",
			files:   map[string]string{"create_socks.sql": "SELECT 1;"},
			wantErr: "invalid migration file name: create_socks.sql",
		},
		{
			name: "blank body",
			files: map[string]string{
				"0001_create_socks.up.sql":   " \n\t",
				"0001_create_socks.down.sql": "DROP TABLE socks;",
			},
			wantErr: "migration file is empty: 0001_create_socks.up.sql",
		},
		{
			name: "names differ for one version",
			files: map[string]string{
				"0001_create_socks.up.sql":   "CREATE TABLE socks (id BIGINT);",
				"0001_create_stock.down.sql": "DROP TABLE socks;",
			},
			wantErr: "migration name mismatch for version 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadMigrationsFromFS(sockMigrationFS(tt.files))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPlanMigrations(t *testing.T) {
	t.Parallel()

	all := []migration{
		{Version: 1, Name: "create_socks"},
		{Version: 2, Name: "create_idempotency_keys"},
		{Version: 3, Name: "add_sock_sku"},
	}

	tests := []struct {
		name      string
		applied   map[int64]bool
		direction migrationDirection
		steps     int
		want      []int64
		wantErr   string
	}{
		{name: "fresh database", applied: map[int64]bool{}, direction: migrationUp, want: []int64{1, 2, 3}},
		{name: "only socks applied", applied: map[int64]bool{1: true}, direction: migrationUp, want: []int64{2, 3}},
		{name: "one step up", applied: map[int64]bool{}, direction: migrationUp, steps: 1, want: []int64{1}},
		{name: "up to date", applied: map[int64]bool{1: true, 2: true, 3: true}, direction: migrationUp, want: nil},
		{name: "roll back newest first", applied: map[int64]bool{1: true, 2: true, 3: true}, direction: migrationDown, steps: 2, want: []int64{3, 2}},
		{name: "roll back on empty schema", applied: map[int64]bool{}, direction: migrationDown, steps: 1, want: nil},
		{name: "applied version unknown to binary", applied: map[int64]bool{9: true}, direction: migrationDown, steps: 1, wantErr: "9"},
		{name: "unknown direction", applied: map[int64]bool{}, direction: migrationDirection("sideways"), wantErr: "sideways"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := planMigrations(all, tt.applied, tt.direction, tt.steps)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			var versions []int64
			for _, m := range plan {
				versions = append(versions, m.Version)
			}
			assert.Equal(t, tt.want, versions)
		})
	}
}
