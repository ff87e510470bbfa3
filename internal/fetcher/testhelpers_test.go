package fetcher

import (
	"archive/zip"
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// collect drains both channels and returns all rows and the first error.
func collect(rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	var rows [][]string
	for r := range rowCh {
		rows = append(rows, r)
	}
	return rows, <-errCh
}

func streamString(t *testing.T, content string, opts CSVOptions) ([][]string, error) {
	t.Helper()
	return collect(StreamCSV(context.Background(), strings.NewReader(content), opts))
}

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func createTestXLSX(t *testing.T, name string, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for sheetName, rows := range sheets {
		sheet, err := f.AddSheet(sheetName)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.Save(p))
	return p
}

func createTestZIP(t *testing.T, name string, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), name)
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for entry, content := range files {
		fw, err := w.Create(entry)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return zipPath
}

// miniFTPServer speaks just enough FTP for jlaffaye/ftp to log in and RETR.
type miniFTPServer struct {
	listener net.Listener
	files    map[string]string
	wg       sync.WaitGroup

	mu    sync.Mutex
	users []string
}

func newMiniFTPServer(t *testing.T, files map[string]string) *miniFTPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &miniFTPServer{listener: ln, files: files}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.close)
	return s
}

func (s *miniFTPServer) addr() string {
	return s.listener.Addr().String()
}

func (s *miniFTPServer) loggedInUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.users...)
}

func (s *miniFTPServer) close() {
	_ = s.listener.Close()
	s.wg.Wait()
}

func (s *miniFTPServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *miniFTPServer) handle(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close() //nolint:errcheck
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	w := bufio.NewWriter(conn)
	r := bufio.NewReader(conn)
	reply := func(format string, args ...any) {
		_, _ = fmt.Fprintf(w, format+"\r\n", args...)
		_ = w.Flush()
	}

	reply("220 ready")

	var data net.Listener
	openData := func() bool {
		var err error
		data, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			reply("425 can't open data connection")
			return false
		}
		return true
	}

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")

		switch strings.ToUpper(cmd) {
		case "USER":
			s.mu.Lock()
			s.users = append(s.users, arg)
			s.mu.Unlock()
			reply("331 password please")
		case "PASS":
			reply("230 logged in")
		case "FEAT":
			reply("211-Features:\r\n UTF8\r\n211 End")
		case "TYPE", "OPTS":
			reply("200 ok")
		case "EPSV":
			if openData() {
				reply("229 Entering Extended Passive Mode (|||%d|)", data.Addr().(*net.TCPAddr).Port)
			}
		case "PASV":
			if openData() {
				port := data.Addr().(*net.TCPAddr).Port
				reply("227 Entering Passive Mode (127,0,0,1,%d,%d)", port/256, port%256)
			}
		case "RETR":
			content, ok := s.files[arg]
			if data == nil || !ok {
				if data != nil {
					_ = data.Close()
					data = nil
				}
				reply("550 file not found")
				continue
			}
			reply("150 opening data connection")
			dc, err := data.Accept()
			if err == nil {
				_, _ = io.WriteString(dc, content)
				_ = dc.Close()
			}
			_ = data.Close()
			data = nil
			reply("226 transfer complete")
		case "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 not implemented")
		}
	}
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close() //nolint:errcheck
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}
