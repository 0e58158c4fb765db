package handler

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "calendar date", input: `"2026-03-14"`, want: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)},
		{name: "rfc3339", input: `"2026-03-14T09:30:00Z"`, want: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)},
		{name: "day first", input: `"14/03/2026"`, wantErr: true},
		{name: "empty", input: `""`, wantErr: true},
		{name: "number", input: `20260314`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(d.Time), "got %s", d.Time)
		})
	}
}
