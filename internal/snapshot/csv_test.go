package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	input := "\xEF\xBB\xBF序号, 负责人 ,完成进度\n1,张三,30%\n2,李\"四\",50%,extra\n3\n,,\n"

	snap, err := ParseCSV(strings.NewReader(input), "progress")
	require.NoError(t, err)

	assert.Equal(t, "progress", snap.Name)
	assert.Equal(t, []string{"序号", "负责人", "完成进度"}, snap.Columns)
	require.Len(t, snap.Rows, 3)
	assert.Equal(t, []string{"1", "张三", "30%"}, snap.Rows[0])
	assert.Equal(t, "50%", snap.Cell(1, 2))
	assert.Equal(t, "", snap.Cell(2, 1), "short rows read as empty cells")
}

func TestParseCSVSemicolon(t *testing.T) {
	snap, err := ParseCSV(strings.NewReader("名称;状态\n项目A;正常\n"), "t")
	require.NoError(t, err)
	assert.Equal(t, []string{"名称", "状态"}, snap.Columns)
	assert.Equal(t, [][]string{{"项目A", "正常"}}, snap.Rows)
}

func TestParseCSVEmpty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""), "t")
	assert.True(t, errors.Is(err, ErrEmptySnapshot))
}

func TestFromGrid(t *testing.T) {
	grid := [][]string{{" 名称", "状态 "}, {"a", "b"}}
	snap, err := FromGrid("g", grid)
	require.NoError(t, err)
	assert.Equal(t, []string{"名称", "状态"}, snap.Columns)
	assert.Equal(t, [][]string{{"a", "b"}}, snap.Rows)

	grid[1][0] = "mutated"
	assert.Equal(t, "a", snap.Rows[0][0])

	_, err = FromGrid("g", nil)
	assert.ErrorIs(t, err, ErrEmptySnapshot)
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "old"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "new"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old", "plan.csv"), []byte("名称\nA\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new", "plan.csv"), []byte("名称\nB\n"), 0o644))

	manifest := filepath.Join(dir, "pairs.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(`
tables:
  - baseline: old/plan.csv
    current: new/plan.csv
`), 0o644))

	pairs, err := LoadManifest(manifest)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "plan", pairs[0].Name)
	assert.Equal(t, "A", pairs[0].Baseline.Cell(0, 0))
	assert.Equal(t, "B", pairs[0].Current.Cell(0, 0))
	assert.Equal(t, filepath.Join(dir, "new", "plan.csv"), pairs[0].Current.Source)

	require.NoError(t, os.WriteFile(manifest, []byte("tables: []\n"), 0o644))
	_, err = LoadManifest(manifest)
	assert.Error(t, err)
}
