package auth

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func sample(name string) *SessionData {
	return &SessionData{
		Name: name,
		URL:  "https://example.com/login",
		Cookies: []Cookie{
			{Name: "sid", Value: "abc", Domain: ".example.com", Path: "/", HTTPOnly: true, Secure: true, SameSite: "Lax"},
			{Name: "pref", Value: "1", Domain: ".example.com", Expires: float64(time.Now().Add(time.Hour).Unix())},
		},
		CreatedAt: time.Now(),
	}
}

func testStore(t *testing.T, s *Store) {
	t.Helper()

	names, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, s.Save(sample("b")))
	require.NoError(t, s.Save(sample("a")))
	require.NoError(t, s.Save(sample("a")))

	names, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	got, err := s.Load("a")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/login", got.URL)
	assert.Len(t, got.Cookies, 2)

	require.NoError(t, s.Delete("b"))
	names, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)

	_, err = s.Load("b")
	assert.Error(t, err)

	assert.ErrorIs(t, s.Save(&SessionData{}), ErrEmptyName)
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	assert.Equal(t, dir, s.Location())
	testStore(t, s)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	s := NewKeyringStore()
	assert.True(t, s.UsesKeyring())
	assert.Equal(t, "OS keyring", s.Location())
	testStore(t, s)
}

func TestLoad_Expired(t *testing.T) {
	s := NewFileStore(t.TempDir())
	old := sample("old")
	old.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, s.Save(old))

	got, err := s.Load("old")
	assert.ErrorIs(t, err, ErrSessionExpired)
	require.NotNil(t, got)
	assert.Equal(t, "old", got.Name)
}

func TestHTTPCookies(t *testing.T) {
	cookies := sample("x").HTTPCookies()
	require.Len(t, cookies, 2)

	assert.Equal(t, "sid", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.True(t, cookies[0].Expires.IsZero())

	assert.Equal(t, "/", cookies[1].Path)
	assert.False(t, cookies[1].Expires.IsZero())
}

func TestEarliestExpiry(t *testing.T) {
	assert.True(t, EarliestExpiry([]Cookie{{Name: "s"}}).IsZero())
	got := EarliestExpiry([]Cookie{{Expires: 2000}, {Expires: 1000}, {}})
	assert.Equal(t, int64(1000), got.Unix())
}

func TestParseNetscape(t *testing.T) {
	in := strings.Join([]string{
		"# Netscape HTTP Cookie File",
		"",
		".example.com\tTRUE\t/\tTRUE\t1893456000\tsid\tabc",
		"#HttpOnly_.example.com\tTRUE\t/app\tFALSE\t0\ttoken\txyz",
		"broken line",
	}, "\n")

	cookies, err := ParseNetscape(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, cookies, 2)

	assert.Equal(t, Cookie{Domain: ".example.com", Path: "/", Secure: true, Name: "sid", Value: "abc", Expires: 1893456000}, cookies[0])
	assert.True(t, cookies[1].HTTPOnly)
	assert.Equal(t, "/app", cookies[1].Path)
	assert.Zero(t, cookies[1].Expires)
}

func TestParseJSON(t *testing.T) {
	cookies, err := ParseJSON(strings.NewReader(`[{"name":"sid","value":"abc","domain":".example.com","httpOnly":true}]`))
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HTTPOnly)

	_, err = ParseJSON(strings.NewReader(`{`))
	assert.Error(t, err)
}

func TestCookieDomain(t *testing.T) {
	assert.Equal(t, ".example.com", CookieDomain("https://www.example.com/login"))
	assert.Equal(t, ".shop.test", CookieDomain("http://shop.test:8080"))
	assert.Equal(t, "", CookieDomain("not a url"))
}
