package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRows(t *testing.T, o *Opener, src string) ([][]string, *Source) {
	t.Helper()
	s, err := o.Open(context.Background(), src)
	require.NoError(t, err)
	rows, err := collect(s.Rows(context.Background()))
	require.NoError(t, err)
	return rows, s
}

func TestOpener_LocalCSV(t *testing.T) {
	p := writeTestFile(t, "providers.csv", "name,state\nA,Lagos\n")

	rows, s := openRows(t, NewOpener(OpenerOptions{}), p)
	defer s.Close() //nolint:errcheck

	assert.Equal(t, FormatCSV, s.Format)
	assert.Equal(t, p, s.Path)
	assert.Equal(t, [][]string{{"name", "state"}, {"A", "Lagos"}}, rows)
}

func TestOpener_FileScheme(t *testing.T) {
	p := writeTestFile(t, "providers.csv", "name\n")

	s, err := NewOpener(OpenerOptions{}).Open(context.Background(), "file://"+p)
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck
	assert.Equal(t, p, s.Path)
}

func TestOpener_MissingLocalFile(t *testing.T) {
	_, err := NewOpener(OpenerOptions{}).Open(context.Background(), "/no/such/providers.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetcher: open")
}

func TestOpener_UnsupportedScheme(t *testing.T) {
	_, err := NewOpener(OpenerOptions{}).Open(context.Background(), "s3://bucket/providers.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scheme")
}

func TestOpener_LocalXLSX(t *testing.T) {
	p := createTestXLSX(t, "providers.xlsx", map[string][][]string{
		"Sheet1": {{"name", "state"}, {"A", "Lagos"}},
	})

	rows, s := openRows(t, NewOpener(OpenerOptions{}), p)
	defer s.Close() //nolint:errcheck

	assert.Equal(t, FormatXLSX, s.Format)
	assert.Len(t, rows, 2)
}

func TestOpener_ZipIsExtractedAndCleanedUp(t *testing.T) {
	zipPath := createTestZIP(t, "providers.zip", map[string]string{"providers.csv": "name\nA\n"})
	tmp := t.TempDir()

	rows, s := openRows(t, NewOpener(OpenerOptions{TempDir: tmp}), zipPath)
	assert.Equal(t, [][]string{{"name"}, {"A"}}, rows)
	extracted := s.Path

	require.NoError(t, s.Close())
	_, err := os.Stat(extracted)
	assert.True(t, os.IsNotExist(err))
}

func TestOpener_HTTPDownloadsToTemp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("name,state\nA,Kano\n"))
	}))
	defer srv.Close()

	tmp := t.TempDir()
	o := NewOpener(OpenerOptions{HTTP: newTestFetcher(), TempDir: tmp})

	rows, s := openRows(t, o, srv.URL+"/exports/providers.csv")
	assert.Equal(t, []string{"A", "Kano"}, rows[1])
	assert.Equal(t, ".csv", s.Path[len(s.Path)-4:])

	require.NoError(t, s.Close())
	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOpener_FTPZip(t *testing.T) {
	zipPath := createTestZIP(t, "providers.zip", map[string]string{"providers.csv": "name\nB\n"})
	data, err := os.ReadFile(zipPath)
	require.NoError(t, err)

	srv := newMiniFTPServer(t, map[string]string{"/providers.zip": string(data)})

	rows, s := openRows(t, NewOpener(OpenerOptions{TempDir: t.TempDir()}), fmt.Sprintf("ftp://%s/providers.zip", srv.addr()))
	defer s.Close() //nolint:errcheck
	assert.Equal(t, [][]string{{"name"}, {"B"}}, rows)
}

func TestSource_RowsOpenError(t *testing.T) {
	s := &Source{Path: "/no/such/file.csv", Format: FormatCSV}
	_, err := collect(s.Rows(context.Background()))
	require.Error(t, err)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatXLSX, detectFormat("a/b/Providers.XLSX"))
	assert.Equal(t, FormatCSV, detectFormat("providers.csv"))
	assert.Equal(t, FormatCSV, detectFormat("providers"))
}
