package main

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		account   string
		want      string
	}{
		{"requested wins", "  Ace ", "alice", "Ace"},
		{"account fallback", "   ", "alice", "alice"},
		{"placeholder", "", "", "Player"},
		{"ascii cut", "abcdefghijklmnopqrstuvwxyz", "", "abcdefghijklmnop"},
		{"multibyte cut on rune boundary", "ÄÖÜäöüßÄÖÜäöüßÄÖÜ", "", "ÄÖÜäöüßÄÖÜäöüßÄÖ"},
		{"emoji", "🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀", "", "🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := displayName(tt.requested, tt.account)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, utf8.RuneCountInString(got), maxNameLen)
		})
	}
}
