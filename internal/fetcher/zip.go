package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// tabularExts are the entry extensions a provider archive may carry.
var tabularExts = map[string]bool{".csv": true, ".txt": true, ".xlsx": true, ".xlsm": true}

// ExtractTabular pulls the single CSV or XLSX entry out of a ZIP archive and
// writes it to destDir under its base name. Folders, dotfiles, __MACOSX
// metadata and non-tabular entries such as readmes are skipped.
func ExtractTabular(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var picked []*zip.File
	for _, f := range r.File {
		if isTabularEntry(f) {
			picked = append(picked, f)
		}
	}
	if len(picked) != 1 {
		names := make([]string, len(picked))
		for i, f := range picked {
			names[i] = f.Name
		}
		return "", eris.Errorf("zip: want one CSV or XLSX entry, found %d %v", len(picked), names)
	}

	entry := picked[0]
	dest := filepath.Join(destDir, path.Base(entry.Name))

	src, err := entry.Open()
	if err != nil {
		return "", eris.Wrapf(err, "zip: open %s", entry.Name)
	}
	defer src.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	_, err = io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", eris.Wrapf(err, "zip: extract %s", entry.Name)
	}
	return dest, nil
}

func isTabularEntry(f *zip.File) bool {
	if f.FileInfo().IsDir() {
		return false
	}
	name := strings.ReplaceAll(f.Name, "\\", "/")
	if strings.HasPrefix(name, "__MACOSX/") || strings.Contains(name, "/__MACOSX/") {
		return false
	}
	base := path.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return tabularExts[strings.ToLower(path.Ext(base))]
}
