package state

import (
	"fmt"
	"sync"
	"testing"

	"docwatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspacePairs(t *testing.T) {
	ws := NewWorkspace()
	snap := models.TableSnapshot{Columns: []string{"名称"}, Rows: [][]string{{"a"}}}

	ws.Stage("b-table", Baseline, snap)
	ws.Stage("b-table", Current, snap)
	ws.Stage("a-table", Current, snap)
	ws.Stage("a-table", Baseline, snap)
	ws.Stage("pending", Baseline, snap)

	pairs := ws.Pairs()
	require.Len(t, pairs, 2)
	assert.Equal(t, "a-table", pairs[0].Name)
	assert.Equal(t, "a-table", pairs[0].Current.Name)
	assert.Equal(t, "b-table", pairs[1].Name)

	status := ws.Status()
	require.Len(t, status, 3)
	assert.Equal(t, "pending", status[2].Name)
	assert.False(t, status[2].Ready)
	assert.Equal(t, 1, status[2].BaselineRows)

	ws.Clear("a-table")
	assert.Len(t, ws.Pairs(), 1)
	ws.Clear("")
	assert.Empty(t, ws.Status())
}

func TestWorkspaceConcurrentStage(t *testing.T) {
	ws := NewWorkspace()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("t%02d", i)
			ws.Stage(name, Baseline, models.TableSnapshot{})
			ws.Stage(name, Current, models.TableSnapshot{})
			_ = ws.Pairs()
		}(i)
	}
	wg.Wait()
	assert.Len(t, ws.Pairs(), 20)
}

func TestParseSide(t *testing.T) {
	side, err := ParseSide("current")
	require.NoError(t, err)
	assert.Equal(t, Current, side)

	_, err = ParseSide("both")
	assert.Error(t, err)
}
