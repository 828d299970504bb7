package ffmpeg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolError(t *testing.T) {
	err := &ToolError{ExitCode: 1}
	assert.Equal(t, "ffmpeg exited with code 1", err.Error())

	err = &ToolError{ExitCode: 234, StderrTail: "No such file or directory"}
	assert.Contains(t, err.Error(), "code 234")
	assert.Contains(t, err.Error(), "No such file")
}

func TestTailOf(t *testing.T) {
	assert.Equal(t, "short", tailOf("short"))

	long := strings.Repeat("x", 600) + "END"
	tail := tailOf(long)
	assert.Len(t, tail, stderrTailLimit)
	assert.True(t, strings.HasSuffix(tail, "END"), "tail keeps the end of stderr")
}

func TestVersionRegex(t *testing.T) {
	tests := []struct {
		in           string
		major, minor int
	}{
		{"6.0", 6, 0},
		{"n6.1-2-gdeadbeef", 6, 1},
		{"7.0.1", 7, 0},
		{"4.4.2-0ubuntu0.22.04.1", 4, 4},
	}
	for _, tc := range tests {
		m := versionRegex.FindStringSubmatch(tc.in)
		if assert.Len(t, m, 3, tc.in) {
			assert.Equal(t, tc.major, atoi(t, m[1]), tc.in)
			assert.Equal(t, tc.minor, atoi(t, m[2]), tc.in)
		}
	}

	assert.Nil(t, versionRegex.FindStringSubmatch("git-2023"), "unversioned builds do not match")
}

func atoi(t *testing.T, s string) int {
	t.Helper()
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}
