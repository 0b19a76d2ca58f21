package ffmpeg

import (
	"testing"
	"time"
)

func TestParseProbeOutput(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    time.Duration
		wantErr bool
	}{
		{
			name: "valid duration",
			out:  `{"format": {"duration": "12.500000"}}`,
			want: 12500 * time.Millisecond,
		},
		{
			name: "integer seconds",
			out:  `{"format": {"duration": "8"}}`,
			want: 8 * time.Second,
		},
		{
			name:    "missing duration",
			out:     `{"format": {}}`,
			wantErr: true,
		},
		{
			name:    "not json",
			out:     "no such file",
			wantErr: true,
		},
		{
			name:    "duration not a number",
			out:     `{"format": {"duration": "N/A"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProbeOutput([]byte(tt.out))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseProbeOutput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseProbeOutput() = %v, want %v", got, tt.want)
			}
		})
	}
}
