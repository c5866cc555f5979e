package cookies

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tubefetch/internal/models"
)

const sampleCookies = "# Netscape HTTP Cookie File\n" +
	".youtube.com\tTRUE\t/\tTRUE\t1999999999\tSID\tabc123\n" +
	"#HttpOnly_.youtube.com\tTRUE\t/\tTRUE\t0\tHSID\tdef456\n"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "cookies"), MaxFileSize, arbor.NewLogger())
	require.NoError(t, err)
	return store
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	var validationErr *models.ValidationError
	assert.True(t, errors.As(err, &validationErr), "expected ValidationError, got %v", err)
}

func TestNewStore_PrivateDirectory(t *testing.T) {
	store := newTestStore(t)

	info, err := os.Stat(store.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestUpload_ValidFile(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Upload([]byte(sampleCookies), int64(len(sampleCookies)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "cookie_"))

	path, ok := store.Resolve(id)
	require.True(t, ok)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleCookies, string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	artifact, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, 2, artifact.Records)
}

func TestUpload_Rejections(t *testing.T) {
	oversize := bytes.Repeat([]byte("a"), MaxFileSize+1)

	tests := []struct {
		name         string
		data         []byte
		declaredSize int64
	}{
		{"declared size over limit", []byte(sampleCookies), MaxFileSize + 1},
		{"actual size over limit", oversize, 10},
		{"empty", []byte{}, 0},
		{"unrelated text", []byte("hello world\nthis is not a cookie file\n"), 40},
		{"json", []byte(`[{"name":"SID","value":"abc"}]`), 30},
		{"binary", []byte{0xff, 0xfe, 0x00, 0x01}, 4},
		{"header with garbage", []byte("# Netscape HTTP Cookie File\nnot a record\n"), 41},
		{"bad expiry", []byte(".youtube.com\tTRUE\t/\tTRUE\tsoon\tSID\tabc\n"), 38},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)

			_, err := store.Upload(tt.data, tt.declaredSize)
			require.Error(t, err)
			assertValidationError(t, err)
			assert.Equal(t, 0, store.Len())

			entries, err := os.ReadDir(store.Dir())
			require.NoError(t, err)
			assert.Empty(t, entries, "nothing should be persisted for rejected uploads")
		})
	}
}

func TestUpload_HeaderOnlyAccepted(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Upload([]byte("# HTTP Cookie File\n# comment\n"), 30)
	assert.NoError(t, err)
}

func TestUploadReader_StopsAtLimit(t *testing.T) {
	store := newTestStore(t)

	body := strings.NewReader(sampleCookies + strings.Repeat("#", MaxFileSize))
	_, err := store.UploadReader(body, -1)
	assertValidationError(t, err)
}

func TestSeed(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Seed("")
	require.NoError(t, err)
	assert.Empty(t, id)

	id, err = store.Seed(sampleCookies)
	require.NoError(t, err)
	_, ok := store.Resolve(id)
	assert.True(t, ok)
}

func TestResolve_Unknown(t *testing.T) {
	store := newTestStore(t)

	_, ok := store.Resolve("cookie_missing")
	assert.False(t, ok)
	_, ok = store.Resolve("")
	assert.False(t, ok)
}

func TestRelease(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Upload([]byte(sampleCookies), int64(len(sampleCookies)))
	require.NoError(t, err)
	path, _ := store.Resolve(id)

	store.Release(id)

	_, ok := store.Resolve(id)
	assert.False(t, ok)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Second release and unknown ids are no-ops
	store.Release(id)
	store.Release("cookie_unknown")
}

func TestRelease_FileAlreadyGone(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Upload([]byte(sampleCookies), int64(len(sampleCookies)))
	require.NoError(t, err)
	path, _ := store.Resolve(id)
	require.NoError(t, os.Remove(path))

	store.Release(id)
	assert.Equal(t, 0, store.Len())
}

func TestReleaseAndSweep_Concurrent(t *testing.T) {
	store := newTestStore(t)
	base := time.Now()
	store.now = func() time.Time { return base }

	ids := make([]string, 20)
	for i := range ids {
		id, err := store.Upload([]byte(sampleCookies), int64(len(sampleCookies)))
		require.NoError(t, err)
		ids[i] = id
	}

	store.now = func() time.Time { return base.Add(31 * time.Minute) }

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			store.Release(id)
		}(id)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		store.Sweep(30 * time.Minute)
	}()
	wg.Wait()

	assert.Equal(t, 0, store.Len())
	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSweep_RespectsAge(t *testing.T) {
	store := newTestStore(t)
	base := time.Now()
	store.now = func() time.Time { return base }

	oldID, err := store.Upload([]byte(sampleCookies), int64(len(sampleCookies)))
	require.NoError(t, err)

	store.now = func() time.Time { return base.Add(20 * time.Minute) }
	freshID, err := store.Upload([]byte(sampleCookies), int64(len(sampleCookies)))
	require.NoError(t, err)

	store.now = func() time.Time { return base.Add(31 * time.Minute) }
	removed := store.Sweep(30 * time.Minute)

	assert.Equal(t, 1, removed)
	_, ok := store.Resolve(oldID)
	assert.False(t, ok)
	_, ok = store.Resolve(freshID)
	assert.True(t, ok)
}

func TestSweep_RemovesStaleUntrackedFiles(t *testing.T) {
	store := newTestStore(t)

	orphan := filepath.Join(store.Dir(), "cookies-orphan.txt")
	require.NoError(t, os.WriteFile(orphan, []byte(sampleCookies), 0600))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(orphan, old, old))

	removed := store.Sweep(30 * time.Minute)

	assert.Equal(t, 1, removed)
	_, err := os.Stat(orphan)
	assert.True(t, os.IsNotExist(err))
}

func TestParseNetscape(t *testing.T) {
	result, err := ParseNetscape([]byte(sampleCookies))
	require.NoError(t, err)

	assert.True(t, result.HasHeader)
	require.Len(t, result.Cookies, 2)
	assert.Empty(t, result.Malformed)

	sid := result.Cookies[0]
	assert.Equal(t, ".youtube.com", sid.Domain)
	assert.Equal(t, "youtube.com", sid.HostDomain())
	assert.True(t, sid.IncludeSubdomains)
	assert.True(t, sid.Secure)
	assert.False(t, sid.HTTPOnly)
	assert.Equal(t, int64(1999999999), sid.Expires.Unix())

	hsid := result.Cookies[1]
	assert.True(t, hsid.HTTPOnly)
	assert.True(t, hsid.Expires.IsZero(), "expiry 0 is a session cookie")
}

func TestParseNetscape_CRLFAndValueWithTabs(t *testing.T) {
	data := "# Netscape HTTP Cookie File\r\n.example.com\tFALSE\t/\tFALSE\t0\tpref\ta\tb\r\n"

	result, err := ParseNetscape([]byte(data))
	require.NoError(t, err)
	require.Len(t, result.Cookies, 1)
	assert.Equal(t, "a\tb", result.Cookies[0].Value)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleCookies), 0600))

	cookies, err := ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, cookies, 2)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
