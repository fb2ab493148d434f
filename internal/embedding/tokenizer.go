package embedding

import (
	"strings"
	"unicode"
)

// BERT special token IDs.
const (
	tokenCLS = 101
	tokenSEP = 102
	vocabCap = 30000
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer splits on whitespace and punctuation and maps each lowercased word
// to a hash-based ID. It has no vocabulary file, so it only approximates the model's tokenizer.
type SimpleTokenizer struct{}

// Tokenize returns [CLS] words... [SEP] padded with zeros to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens < 2 {
		maxTokens = 2
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = tokenCLS
	attentionMask[0] = 1
	pos := 1
	for _, word := range SplitWords(text) {
		if pos >= maxTokens-1 {
			break
		}
		// Keep clear of the reserved low IDs.
		inputIDs[pos] = int64(1000 + HashString(strings.ToLower(word))%(vocabCap-1000))
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos] = tokenSEP
	attentionMask[pos] = 1
	return inputIDs, attentionMask, tokenTypeIDs
}

// SplitWords splits text into words, treating punctuation as separate tokens.
func SplitWords(text string) []string {
	var words []string
	for _, field := range strings.Fields(text) {
		start := -1
		for i, r := range field {
			if unicode.IsPunct(r) {
				if start >= 0 {
					words = append(words, field[start:i])
					start = -1
				}
				words = append(words, string(r))
				continue
			}
			if start < 0 {
				start = i
			}
		}
		if start >= 0 {
			words = append(words, field[start:])
		}
	}
	return words
}
