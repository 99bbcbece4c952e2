package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cogtask/internal/queue"
	"github.com/roach88/cogtask/internal/ui"
)

func TestKindNames(t *testing.T) {
	assert.Equal(t, "update_graph", UpdateGraph.String())
	assert.Equal(t, "key_press", KeyPress.String())
	assert.Equal(t, "finish", SyncFinish.String())
	assert.Equal(t, "log_extend", LogExtend.String())
	assert.Equal(t, "block_crashed", BlockCrashed.String())
	assert.Equal(t, "unknown", SyncKind(0).String())
}

func TestConstructors(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	kp := NewKeyPress(at, []ui.Key{ui.KeySpace})
	assert.Equal(t, Sync{Kind: KeyPress, Time: at, Keys: []ui.Key{ui.KeySpace}}, kp)

	a := NewLogAppend(at, "answers", "key", "A")
	assert.Equal(t, LogAppend, a.Kind)
	assert.Equal(t, []Entry{{Field: "key", Value: "A"}}, a.Entries)

	e := NewLogExtend(at, MainEvent, []Entry{{"event", "start"}, {"tag", "x"}})
	assert.Equal(t, LogExtend, e.Kind)
	assert.Len(t, e.Entries, 2)
}

func TestLog_StampsAndPushes(t *testing.T) {
	r := queue.New[Async]()
	before := time.Now()

	require.True(t, Log(r.Writer(), "grp", "event", "start"))

	got, ok := r.TryPop()
	require.True(t, ok)
	assert.Equal(t, "grp", got.Group)
	assert.False(t, got.Time.Before(before))

	r.Close()
	assert.False(t, Log(r.Writer(), "grp", "event", "late"))
}
