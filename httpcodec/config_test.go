// SPDX-License-Identifier: GPL-3.0-or-later

package httpcodec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestLoadCompressorConfig(t *testing.T) {
	type testcase struct {
		// name is the name of the test case.
		name string

		// data is the YAML to load.
		data string

		// want is the expected config when loading succeeds.
		want *CompressorConfig

		// wantErr indicates whether we expect an error.
		wantErr bool
	}

	cases := []testcase{
		{
			name: "empty document yields defaults",
			data: "",
			want: NewCompressorConfig(),
		},
		{
			name: "all fields",
			data: "encodings: [zstd, gzip, lz4]\nlevel: 9\nminLength: 256\n",
			want: &CompressorConfig{
				Encodings: []string{EncodingZstd, EncodingGzip, EncodingLZ4},
				Level:     9,
				MinLength: 256,
			},
		},
		{
			name: "partial override",
			data: "level: 1\n",
			want: &CompressorConfig{
				Encodings: []string{EncodingGzip, EncodingDeflate},
				Level:     1,
			},
		},
		{
			name:    "unknown field",
			data:    "levels: 3\n",
			wantErr: true,
		},
		{
			name:    "malformed YAML",
			data:    "encodings: [gzip\n",
			wantErr: true,
		},
		{
			name:    "no encodings",
			data:    "encodings: []\n",
			wantErr: true,
		},
		{
			name:    "unsupported encoding",
			data:    "encodings: [br]\n",
			wantErr: true,
		},
		{
			name:    "duplicate encoding",
			data:    "encodings: [gzip, deflate, gzip]\n",
			wantErr: true,
		},
		{
			name:    "level too low",
			data:    "level: 0\n",
			wantErr: true,
		},
		{
			name:    "level too high",
			data:    "level: 10\n",
			wantErr: true,
		},
		{
			name:    "negative minLength",
			data:    "minLength: -1\n",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadCompressorConfig([]byte(tc.data))
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)
				require.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, cfg); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestNewCompressorConfigIsValid(t *testing.T) {
	require.NoError(t, NewCompressorConfig().Validate())
}
