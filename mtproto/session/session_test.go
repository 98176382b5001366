package session_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ansel1/merry/v2"
	"github.com/stretchr/testify/require"

	"github.com/MUTLCC/TeleDoge/mtproto/session"
)

func TestNextMsgIDStrictlyIncreasing(t *testing.T) {
	s := session.New(make([]byte, 256), 1)
	var last int64
	for i := 0; i < 1000; i++ {
		id := s.NextMsgID()
		require.Greater(t, id, last)
		last = id
	}
}

func TestNextSequenceParity(t *testing.T) {
	s := session.New(make([]byte, 256), 1)

	seq1 := s.NextSequence(true)
	require.Equal(t, int32(1), seq1)
	seq2 := s.NextSequence(false)
	require.Equal(t, int32(2), seq2) // n still 1, non-content doesn't advance it
	seq3 := s.NextSequence(true)
	require.Equal(t, int32(3), seq3)
}

func TestUpdateTimeOffsetShiftsNextMsgID(t *testing.T) {
	s := session.New(make([]byte, 256), 1)
	before := s.NextMsgID()

	// Simulate a server claiming to be far in the future.
	future := (before >> 32) + 10_000
	s.UpdateTimeOffset(future << 32)

	after := s.NextMsgID()
	require.Greater(t, after>>32, before>>32)
}

func TestFileStoreRoundTripPlain(t *testing.T) {
	dir := t.TempDir()
	store := session.NewFileStore(filepath.Join(dir, "sess.bin"))

	saved := session.New([]byte("0123456789abcdef0123456789abcdef"), 999)
	saved.Salt = 42
	require.NoError(t, store.Save(saved))

	loaded := &session.Session{}
	require.NoError(t, store.Load(loaded))
	require.Equal(t, saved.AuthKey, loaded.AuthKey)
	require.Equal(t, saved.Salt, loaded.Salt)
	require.Equal(t, saved.ID, loaded.ID)
}

func TestFileStoreRoundTripEncrypted(t *testing.T) {
	dir := t.TempDir()
	store := &session.FileStore{Path: filepath.Join(dir, "sess.bin"), Passphrase: "correct horse battery staple"}

	saved := session.New([]byte("auth-key-bytes-go-here-0123456789"), 7)
	saved.Salt = -5
	require.NoError(t, store.Save(saved))

	raw, err := os.ReadFile(store.Path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "auth-key-bytes-go-here")

	loaded := &session.Session{}
	require.NoError(t, store.Load(loaded))
	require.Equal(t, saved.AuthKey, loaded.AuthKey)
	require.Equal(t, saved.Salt, loaded.Salt)

	wrongPass := &session.FileStore{Path: store.Path, Passphrase: "wrong"}
	require.Error(t, wrongPass.Load(&session.Session{}))
}

func TestFileStoreLoadMissingFile(t *testing.T) {
	store := session.NewFileStore(filepath.Join(t.TempDir(), "missing.bin"))
	err := store.Load(&session.Session{})
	require.True(t, merry.Is(err, session.ErrNoSessionData))
}
