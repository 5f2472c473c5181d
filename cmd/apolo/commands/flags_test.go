package commands

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuro-inc/apolo-cli/cmd/apolo/handlers"
	"github.com/neuro-inc/apolo-cli/internal/transfer"
)

func TestCopyFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want handlers.CopyOptions
	}{
		{
			name: "defaults",
			want: handlers.CopyOptions{Glob: true},
		},
		{
			name: "filters keep order",
			args: []string{"--exclude", "*.tmp", "--include", "keep.tmp", "--exclude", "cache"},
			want: handlers.CopyOptions{Glob: true, Filters: []transfer.Filter{
				{Pattern: "*.tmp"},
				{Pattern: "keep.tmp", Include: true},
				{Pattern: "cache"},
			}},
		},
		{
			name: "short flags",
			args: []string{"-r", "-u", "-c", "-p", "-T", "--no-glob"},
			want: handlers.CopyOptions{Recursive: true, Update: true, Continue: true, Progress: true, NoTargetDirectory: true},
		},
		{
			name: "ignore files",
			args: []string{"--exclude-from-files", ".gitignore,.apoloignore", "-t", "storage:dst"},
			want: handlers.CopyOptions{Glob: true, TargetDirectory: "storage:dst", IgnoreFiles: []string{".gitignore", ".apoloignore"}},
		},
		{
			name: "no ignore files",
			args: []string{"--exclude-from-files", ""},
			want: handlers.CopyOptions{Glob: true, IgnoreFiles: []string{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts handlers.CopyOptions
			cmd := &cobra.Command{Use: "cp"}
			finish := copyFlags(cmd, &opts)

			require.NoError(t, cmd.ParseFlags(tt.args))
			finish()

			assert.Equal(t, tt.want, opts)
		})
	}
}

func TestFilterValue_String(t *testing.T) {
	var filters []transfer.Filter
	exclude := filterValue{filters: &filters}
	include := filterValue{filters: &filters, include: true}

	assert.Equal(t, "", exclude.String())
	require.NoError(t, exclude.Set("a"))
	require.NoError(t, include.Set("b"))
	require.NoError(t, exclude.Set("c"))

	assert.Equal(t, "[a,c]", exclude.String())
	assert.Equal(t, "[b]", include.String())
	assert.Equal(t, "pattern", exclude.Type())
}
