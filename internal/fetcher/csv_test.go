package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamCSV_HeaderAndRows(t *testing.T) {
	rows, err := streamString(t, "name,provider_type,state\nGeneral Hospital,HOSPITAL,Lagos\nEti-Osa Police,POLICE,Lagos\n", CSVOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"name", "provider_type", "state"}, rows[0])
	assert.Equal(t, []string{"Eti-Osa Police", "POLICE", "Lagos"}, rows[2])
}

func TestStreamCSV_TrimSpace(t *testing.T) {
	rows, err := streamString(t, " name , state \n  Clinic A ,  Kano\n", CSVOptions{TrimSpace: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "state"}, rows[0])
	assert.Equal(t, []string{"Clinic A", "Kano"}, rows[1])
}

func TestStreamCSV_StripsBOM(t *testing.T) {
	rows, err := streamString(t, "\ufeffname,state\nA,B\n", CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, "name", rows[0][0])
}

func TestStreamCSV_QuotedFieldsAndVariableWidth(t *testing.T) {
	rows, err := streamString(t, "name,address\n\"Hospital, Ikeja\",\"12 \"\"A\"\" Road\"\nshort\n", CSVOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Hospital, Ikeja", `12 "A" Road`}, rows[1])
	assert.Equal(t, []string{"short"}, rows[2])
}

func TestStreamCSV_Delimiter(t *testing.T) {
	rows, err := streamString(t, "a;b\n1;2\n", CSVOptions{Delimiter: ';'})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, rows[1])
}

func TestStreamCSV_Comment(t *testing.T) {
	rows, err := streamString(t, "# exported 2024\na,b\n1,2\n", CSVOptions{Comment: '#'})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"a", "b"}, rows[0])
}

func TestStreamCSV_MalformedQuote(t *testing.T) {
	_, err := streamString(t, "a,b\n\"unterminated,2\n", CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
}

func TestStreamCSV_LazyQuotes(t *testing.T) {
	rows, err := streamString(t, "a,b\nsay \"hi\",2\n", CSVOptions{LazyQuotes: true})
	require.NoError(t, err)
	assert.Equal(t, `say "hi"`, rows[1][0])
}

func TestStreamCSV_Empty(t *testing.T) {
	rows, err := streamString(t, "", CSVOptions{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStreamCSV_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sb strings.Builder
	for i := 0; i < 500; i++ {
		sb.WriteString("a,b\n")
	}
	rows, err := collect(StreamCSV(ctx, strings.NewReader(sb.String()), CSVOptions{}))
	require.Error(t, err)
	assert.Less(t, len(rows), 500)
}
