package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"os"

	"github.com/ansel1/merry/v2"
	"golang.org/x/crypto/pbkdf2"

	"github.com/MUTLCC/TeleDoge/mtproto/wire"
)

// ErrNoSessionData is returned by Store.Load when no prior session
// exists yet.
var ErrNoSessionData = merry.New("session: no session data")

// Store persists and restores the fields a Session needs across
// process restarts: the auth key, salt, and session id.
type Store interface {
	Save(s *Session) error
	Load(s *Session) error
}

// NoopStore never persists anything; every Load fails with
// ErrNoSessionData. Useful for callers that manage session
// persistence themselves.
type NoopStore struct{}

func (NoopStore) Save(*Session) error { return nil }
func (NoopStore) Load(*Session) error { return merry.Wrap(ErrNoSessionData) }

// MemoryStore keeps the last-saved session fields in memory, for tests
// and for callers that intentionally don't want disk persistence but
// do want reconnect-time continuity within one process.
type MemoryStore struct {
	saved    bool
	authKey  []byte
	salt     int64
	sessID   int64
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Save(s *Session) error {
	m.authKey = append([]byte(nil), s.AuthKey...)
	m.salt = s.Salt
	m.sessID = s.ID
	m.saved = true
	return nil
}

func (m *MemoryStore) Load(s *Session) error {
	if !m.saved {
		return merry.Wrap(ErrNoSessionData)
	}
	s.AuthKey = append([]byte(nil), m.authKey...)
	s.Salt = m.salt
	s.ID = m.sessID
	return nil
}

// FileStore persists a session to a single file. If Passphrase is
// non-empty, the serialized record is sealed with AES-256-GCM under a
// key stretched from Passphrase via PBKDF2-HMAC-SHA256
// (golang.org/x/crypto/pbkdf2) — an auth_key is as sensitive as a
// long-lived bearer credential and shouldn't sit on disk in the clear.
type FileStore struct {
	Path       string
	Passphrase string
}

const pbkdf2Iterations = 100_000

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (f *FileStore) Save(s *Session) error {
	w := wire.NewWriter(1024)
	w.StringBytes(s.AuthKey)
	w.Long(s.Salt)
	w.Long(s.ID)

	payload := w.Bytes()
	if f.Passphrase != "" {
		sealed, err := f.seal(payload)
		if err != nil {
			return merry.Wrap(err)
		}
		payload = sealed
	}

	fh, err := os.Create(f.Path)
	if err != nil {
		return merry.Wrap(err)
	}
	defer fh.Close()
	if _, err := fh.Write(payload); err != nil {
		return merry.Wrap(err)
	}
	return nil
}

func (f *FileStore) Load(s *Session) error {
	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return merry.Wrap(ErrNoSessionData)
	}
	if err != nil {
		return merry.Wrap(err)
	}

	if f.Passphrase != "" {
		data, err = f.unseal(data)
		if err != nil {
			return merry.Wrap(err)
		}
	}

	r := wire.NewReader(data)
	s.AuthKey = r.StringBytes()
	s.Salt = r.Long()
	s.ID = r.Long()
	if r.Err() != nil {
		return merry.Wrap(r.Err())
	}
	return nil
}

func (f *FileStore) deriveKey(salt []byte) []byte {
	return pbkdf2.Key([]byte(f.Passphrase), salt, pbkdf2Iterations, 32, sha256.New)
}

func (f *FileStore) seal(plain []byte) ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, merry.Wrap(err)
	}
	block, err := aes.NewCipher(f.deriveKey(salt))
	if err != nil {
		return nil, merry.Wrap(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, merry.Wrap(err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, merry.Wrap(err)
	}
	sealed := gcm.Seal(nil, nonce, plain, nil)

	out := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

func (f *FileStore) unseal(data []byte) ([]byte, error) {
	if len(data) < 16+12 {
		return nil, merry.New("session: encrypted file too short")
	}
	salt, rest := data[:16], data[16:]
	block, err := aes.NewCipher(f.deriveKey(salt))
	if err != nil {
		return nil, merry.Wrap(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, merry.Wrap(err)
	}
	if len(rest) < gcm.NonceSize() {
		return nil, merry.New("session: encrypted file too short")
	}
	nonce, cipherText := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return nil, merry.Wrap(err)
	}
	return plain, nil
}
