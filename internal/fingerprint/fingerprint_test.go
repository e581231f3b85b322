package fingerprint

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/threatviz/internal/types"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"em dash", "cve—2021—44228", "CVE-2021-44228"},
		{"en dash", "CVE–2023–1234", "CVE-2023-1234"},
		{"non-breaking hyphen", "cve‑2022‑0001", "CVE-2022-0001"},
		{"minus sign", "CVE−2020−12345", "CVE-2020-12345"},
		{"fullwidth characters", "ＣＶＥ－２０２１－４４２２８", "CVE-2021-44228"},
		{"surrounding noise", "  <CVE-2021-44228>!? ", "CVE-2021-44228"},
		{"non-ascii letters dropped", "cvé-2021-1", "CV-2021-1"},
		{"underscores dropped", "cve_2021_44228", "CVE202144228"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"cve—2021—44228",
		"ＣＶＥ－２０２１－４４２２８",
		"Analyze CVE‐2019‐0708 please",
		"ﬁ-ligature-①",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
		assert.Regexp(t, `^[A-Z0-9-]*$`, once)
	}
}

func TestValidate(t *testing.T) {
	valid := []string{"CVE-2021-44228", "CVE-1999-0001", "CVE-2024-1234567"}
	for _, in := range valid {
		t.Run(in, func(t *testing.T) {
			got, err := Validate(in)
			require.NoError(t, err)
			assert.Equal(t, in, got)
		})
	}

	invalid := []string{"CVE-21-442", "CVE-2021-123", "CVE-2021-12345678", "GHSA-2021-44228", "CVE2021-44228", "", "CVE-2021-44228 extra"}
	for _, in := range invalid {
		t.Run("reject "+in, func(t *testing.T) {
			_, err := Validate(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidFormat))
			assert.Equal(t, types.INVALID_FORMAT, types.CodeOf(err))
		})
	}
}

func TestValidate_TrimsAndUppercases(t *testing.T) {
	got, err := Validate("  cve-2021-44228\n")
	require.NoError(t, err)
	assert.Equal(t, "CVE-2021-44228", got)
}

func TestExtract(t *testing.T) {
	id, ok := Extract("please analyze cve-2021-44228 and then CVE-2022-22965")
	require.True(t, ok)
	assert.Equal(t, "CVE-2021-44228", id)

	_, ok = Extract("nothing to see here")
	assert.False(t, ok)

	_, ok = Extract("XCVE-2021-44228")
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	id, err := Resolve("CVE-2021-44228")
	require.NoError(t, err)
	assert.Equal(t, "CVE-2021-44228", id)

	id, err = Resolve("analyze CVE-2014-0160")
	require.NoError(t, err)
	assert.Equal(t, "CVE-2014-0160", id)

	_, err = Resolve("analyze heartbleed")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}
