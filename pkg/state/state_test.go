package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/flightrec/pkg/capture"
	"github.com/bft-labs/flightrec/pkg/recorder"
)

func TestState_NextSessionID(t *testing.T) {
	var st State
	assert.True(t, st.IsEmpty())
	assert.Equal(t, uint32(1), st.NextSessionID())

	st.RecordDrain(recorder.Status{Status: capture.Status{SessionID: 41, WindowLen: 100, Incomplete: true}, DroppedRecords: 2}, time.Unix(10, 0))
	assert.False(t, st.IsEmpty())
	assert.Equal(t, uint32(42), st.NextSessionID())
	assert.Equal(t, 100, st.WindowLen)
	assert.Equal(t, uint32(2), st.DroppedRecords)
	assert.True(t, st.Incomplete)
	assert.Equal(t, 0, st.ArchiveLen)

	st.RecordArchive(64, 100, 164)
	assert.Equal(t, int64(64), st.ArchiveAddr)
	assert.Equal(t, int64(164), st.ArchiveNext)
}

func TestFileRepository_MissingFile(t *testing.T) {
	repo := NewFileRepository(filepath.Join(t.TempDir(), "nested"))
	st, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, st.IsEmpty())
}

func TestFileRepository_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	repo := NewFileRepository(dir)
	ctx := context.Background()

	want := State{LastSessionID: 3, WindowLen: 512, SessionsDrained: 3, ArchiveNext: 1536, LastDrainedAt: time.Unix(1700000000, 0).UTC()}
	require.NoError(t, repo.Save(ctx, want))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.True(t, want.LastDrainedAt.Equal(got.LastDrainedAt))
	got.LastDrainedAt = want.LastDrainedAt
	assert.Equal(t, want, got)

	_, err = os.Stat(repo.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")
}

func TestFileRepository_Corrupt(t *testing.T) {
	dir := t.TempDir()
	repo := NewFileRepository(dir)
	require.NoError(t, os.WriteFile(repo.Path(), []byte("{not json"), 0o600))

	_, err := repo.Load(context.Background())
	assert.Error(t, err)
}

func TestFileRepository_Canceled(t *testing.T) {
	repo := NewFileRepository(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, repo.Save(ctx, State{}))
	_, err := repo.Load(ctx)
	assert.Error(t, err)
}
