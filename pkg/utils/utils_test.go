package utils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{" Dueño  cc ", "DUENO CC"},
		{"Intercompañía", "INTERCOMPANIA"},
		{"Gerente Ops", "GERENTE OPS"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLabel(tt.in))
		})
	}

	assert.True(t, HasNormalizedPrefix("Indirecto - Papelería", "INDIRECTO"))
	assert.False(t, HasNormalizedPrefix("Directo", "INDIRECTO"))
}

func TestParseAmountCents(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"3000", 300000, false},
		{"1,234.50", 123450, false},
		{"0.125", 13, false},
		{"", 0, true},
		{"abc", 0, true},
		{"-5", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmountCents(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "3000.00", FormatCents(300000))
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "-1.50", FormatCents(-150))
}

func TestValidateHeaderIDs(t *testing.T) {
	assert.Error(t, ValidateHeaderIDs(nil))
	assert.Error(t, ValidateHeaderIDs([]int64{1, 0}))
	assert.NoError(t, ValidateHeaderIDs([]int64{1, 2}))
	assert.Equal(t, []int64{3, 1, 2}, DedupeIDs([]int64{3, 1, 3, 2, 1}))
}

func TestValidateActor(t *testing.T) {
	assert.Error(t, ValidateActor("  "))
	assert.NoError(t, ValidateActor("ana"))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "okay", SanitizeString("o\x00k\x1fay"))
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	logger, err := NewLogger(LoggerConfig{Level: "debug", OutputPath: path, Format: "json", Name: "po"})
	require.NoError(t, err)
	logger.Info("hello")
	require.NoError(t, logger.Sync())
	assert.FileExists(t, path)

	fallback, err := NewLogger(LoggerConfig{Level: "loud", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, fallback)
}
