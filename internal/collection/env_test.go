package collection

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadEnvironment(t *testing.T) {
	t.Parallel()

	cases := []struct {
		file string
		want []Variable
	}{
		{
			file: "env_postman.json",
			want: []Variable{
				{Key: "baseUrl", Value: "https://staging.example.com"},
				{Key: "password", Value: "override"},
				{Key: "off", Value: "1", Disabled: true},
			},
		},
		{
			file: "env_local.env",
			want: []Variable{
				{Key: "BASE_URL", Value: "http://localhost"},
				{Key: "Z_LAST", Value: "z"},
			},
		},
		{
			file: "env_staging.bru",
			want: []Variable{
				{Key: "baseUrl", Value: "https://stg.example.com"},
				{Key: "unused", Value: "1", Disabled: true},
				{Key: "apiKey"},
				{Key: "password"},
			},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.file, func(t *testing.T) {
			t.Parallel()
			got, err := LoadEnvironment(filepath.Join("testdata", tc.file))
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("environment mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeEnvironmentPlainObject(t *testing.T) {
	t.Parallel()

	got, err := DecodeEnvironment([]byte(`{"z": "1", "a": 2, "n": null, "skip": {"x": 1}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []Variable{{Key: "z", Value: "1"}, {Key: "a", Value: "2"}, {Key: "n"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}
