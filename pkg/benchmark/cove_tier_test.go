package benchmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContradictsOnPolarityFlip(t *testing.T) {
	assert.True(t, contradicts("Yes, that is correct.", "No, that is not correct."))
}

func TestContradictsAgreesWhenAligned(t *testing.T) {
	assert.False(t, contradicts(
		"Yes, the Eiffel Tower is located in Paris, France.",
		"Confirmed, the Eiffel Tower stands in Paris, France.",
	))
}

func TestContradictsFlagsUnrelatedAnswers(t *testing.T) {
	assert.True(t, contradicts(
		"The capital of France is Paris.",
		"Bananas are a good source of potassium.",
	))
}

func TestLexicalOverlapIdentical(t *testing.T) {
	assert.Equal(t, 1.0, lexicalOverlap("the quick brown fox", "the quick brown fox"))
}

func TestLexicalOverlapEmptyInputsAreInconclusive(t *testing.T) {
	assert.Equal(t, 1.0, lexicalOverlap("", "something here"))
}

func TestWordSetDropsShortTokensAndPunctuation(t *testing.T) {
	ws := wordSet("Is it, truly, a big day?")
	assert.True(t, ws["truly"])
	assert.True(t, ws["big"])
	assert.True(t, ws["day"])
	assert.False(t, ws["is"])
	assert.False(t, ws["it"])
	assert.False(t, ws["a"])
}
