package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPreservesOrderAndDedupes(t *testing.T) {
	table := New(map[string]string{
		"10001": "9004567",
		"10002": "9004568",
		"10003": "9004567",
	})

	criteria, unmapped := table.Map([]string{"10002", "99999", "10001", "10003", "10002", "00000"})

	if diff := cmp.Diff([]string{"9004568", "9004567"}, criteria); diff != "" {
		t.Errorf("criteria mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"99999", "00000"}, unmapped); diff != "" {
		t.Errorf("unmapped mismatch (-want +got):\n%s", diff)
	}
}

func TestNewCopiesInput(t *testing.T) {
	src := map[string]string{"10001": "1"}
	table := New(src)
	src["10001"] = "2"
	src["10002"] = "3"

	got, ok := table.Lookup("10001")
	assert.True(t, ok)
	assert.Equal(t, "1", got)
	assert.Equal(t, 1, table.Len())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFormats(t *testing.T) {
	want := map[string]string{"90210": "9030917", "10001": "9004567"}

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"tsv", "zips.txt", "9030917\t90210\n\n# comment\n9004567\t10001\n"},
		{"tsv ext", "zips.tsv", "9030917\t90210\r\n9004567\t10001\r\n"},
		{"yaml", "zips.yaml", "\"90210\": \"9030917\"\n10001: 9004567\n"},
		{"toml", "zips.toml", "[zips]\n90210 = \"9030917\"\n10001 = 9004567\n"},
		{"json", "zips.json", `{"90210": "9030917", "10001": 9004567}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Load(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			for zip, criterion := range want {
				got, ok := table.Lookup(zip)
				assert.True(t, ok, "zip %s missing", zip)
				assert.Equal(t, criterion, got)
			}
			assert.Equal(t, len(want), table.Len())
		})
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"empty tsv", "zips.txt", "\n\n", "mapping table is empty"},
		{"bad tsv line", "zips.txt", "9030917 90210\n", "line 1"},
		{"non-numeric criterion", "zips.json", `{"90210": "abc"}`, "not numeric"},
		{"unsupported extension", "zips.csv", "x", "unsupported mapping file extension"},
		{"bad value type", "zips.yaml", "90210: [1, 2]\n", "must be a string or integer"},
		{"malformed json", "zips.json", `{`, "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
