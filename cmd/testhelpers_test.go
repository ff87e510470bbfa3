package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const testReference = `{
  "states": [
    {"id": 1, "name": "Lagos", "slug": "lagos", "lgas": [
      {"id": 10, "name": "Ikeja", "slug": "ikeja"},
      {"id": 11, "name": "Eti-Osa", "slug": "eti-osa"}
    ]},
    {"id": 15, "name": "Federal Capital Territory", "slug": "fct", "display_name": "FCT Abuja", "lgas": [
      {"id": 150, "name": "Abuja Municipal Area Council", "slug": "amac"},
      {"id": 151, "name": "Bwari", "slug": "bwari"}
    ]}
  ]
}`

const testProvidersCSV = "Name,Provider Type,State,LGA,Latitude,Longitude\n" +
	"Test Clinic,Hospital,Lagos State,Ikeja,6.5,3.3\n" +
	"Eti-Osa Police,police,lagos,Eti Osa,6.45,3.6\n" +
	"Bwari Fire,Fire Service,Abuja,Bwari,9.28,7.38\n" +
	"Nowhere,Hospital,Atlantis,Ikeja,6.5,3.3\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// setFlags sets flags on a package-level command and restores the defaults
// when the test ends.
func setFlags(t *testing.T, cmd *cobra.Command, values map[string]string) {
	t.Helper()
	for name, v := range values {
		f := cmd.Flags().Lookup(name)
		require.NotNil(t, f, "flag %q", name)
		def := f.DefValue
		require.NoError(t, cmd.Flags().Set(name, v))
		t.Cleanup(func() {
			_ = cmd.Flags().Set(name, def)
			f.Changed = false
		})
	}
}
