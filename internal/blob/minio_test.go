package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMinioStoreRequiresEndpointAndBucket(t *testing.T) {
	_, err := NewMinioStore(Options{Bucket: "files"})
	assert.Error(t, err)
	_, err = NewMinioStore(Options{Endpoint: "localhost:9000"})
	assert.Error(t, err)
}

func TestObjectURL(t *testing.T) {
	cases := []struct {
		name string
		opts Options
		key  string
		want string
	}{
		{
			name: "plain endpoint",
			opts: Options{Endpoint: "localhost:9000", Bucket: "checklist-files"},
			key:  "cli_1/prg_1/att_1-lease.pdf",
			want: "http://localhost:9000/checklist-files/cli_1/prg_1/att_1-lease.pdf",
		},
		{
			name: "tls endpoint",
			opts: Options{Endpoint: "s3.example.com", Bucket: "files", UseSSL: true},
			key:  "a/b.txt",
			want: "https://s3.example.com/files/a/b.txt",
		},
		{
			name: "public url and escaping",
			opts: Options{Endpoint: "minio:9000", Bucket: "files", PublicURL: "https://cdn.example.com/"},
			key:  "c/p/att-résumé #1.pdf",
			want: "https://cdn.example.com/files/c/p/att-r%C3%A9sum%C3%A9%20%231.pdf",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewMinioStore(tc.opts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, s.ObjectURL(tc.key))
		})
	}
}
