package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeFiltersStopwordsAndShortTokens(t *testing.T) {
	tk := New(DefaultConfig())
	got := tk.Tokenize("The quick Fox jumps over a lazy Dog")
	require.Equal(t, []string{"quick", "fox", "jumps", "over", "lazy", "dog"}, got)
}

func TestTokenizeStripsDiacritics(t *testing.T) {
	tk := New(DefaultConfig())
	got := tk.Tokenize("café naïve résumé")
	require.Equal(t, []string{"cafe", "naive", "resume"}, got)
}

func TestTokenizeEmptyText(t *testing.T) {
	tk := New(DefaultConfig())
	require.Empty(t, tk.Tokenize(""))
}

func TestTokenizeWithStemming(t *testing.T) {
	tk := New(Config{Stem: true, Language: "english"})
	got := tk.Tokenize("running runners jumps")
	require.NotEmpty(t, got)
	require.Contains(t, got[0], "run")
}
