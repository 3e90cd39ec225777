package onnx

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

const maxWordRunes = 100

// WordPiece is an uncased BERT tokenizer driven by a vocab.txt file.
type WordPiece struct {
	vocab map[string]int64
	cls   int64
	sep   int64
	pad   int64
	unk   int64
}

// LoadVocab reads a vocab.txt with one token per line; the line number is the id.
func LoadVocab(path string) (*WordPiece, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()
	return ReadVocab(f)
}

// ReadVocab parses vocabulary lines from r.
func ReadVocab(r io.Reader) (*WordPiece, error) {
	vocab := make(map[string]int64)
	sc := bufio.NewScanner(r)
	var id int64
	for sc.Scan() {
		tok := strings.TrimRight(sc.Text(), "\r")
		if tok != "" {
			vocab[tok] = id
		}
		id++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	wp := &WordPiece{vocab: vocab}
	for _, sp := range []struct {
		tok string
		dst *int64
	}{{"[CLS]", &wp.cls}, {"[SEP]", &wp.sep}, {"[PAD]", &wp.pad}, {"[UNK]", &wp.unk}} {
		v, ok := vocab[sp.tok]
		if !ok {
			return nil, fmt.Errorf("vocab is missing %s", sp.tok)
		}
		*sp.dst = v
	}
	return wp, nil
}

// Encode fills ids and mask (both of length maxLen) with [CLS] tokens [SEP]
// followed by padding. Long inputs are truncated to fit.
func (w *WordPiece) Encode(text string, ids, mask []int64) {
	maxLen := len(ids)
	for i := range ids {
		ids[i] = w.pad
		mask[i] = 0
	}
	if maxLen < 2 {
		return
	}
	ids[0], mask[0] = w.cls, 1
	pos := 1
	for _, word := range basicTokens(text) {
		for _, id := range w.pieces(word) {
			if pos >= maxLen-1 {
				break
			}
			ids[pos], mask[pos] = id, 1
			pos++
		}
	}
	ids[pos], mask[pos] = w.sep, 1
}

// Tokens returns the wordpiece ids of text without special tokens.
func (w *WordPiece) Tokens(text string) []int64 {
	var out []int64
	for _, word := range basicTokens(text) {
		out = append(out, w.pieces(word)...)
	}
	return out
}

// pieces splits one word by greedy longest-match-first.
func (w *WordPiece) pieces(word string) []int64 {
	runes := []rune(word)
	if len(runes) > maxWordRunes {
		return []int64{w.unk}
	}
	var out []int64
	for start := 0; start < len(runes); {
		end := len(runes)
		found := int64(-1)
		for end > start {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := w.vocab[sub]; ok {
				found = id
				break
			}
			end--
		}
		if found < 0 {
			return []int64{w.unk}
		}
		out = append(out, found)
		start = end
	}
	return out
}

// basicTokens lowercases text and splits it on whitespace and punctuation,
// keeping each punctuation rune as its own token.
func basicTokens(text string) []string {
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r), unicode.IsControl(r):
			flush()
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			flush()
			out = append(out, string(r))
		case unicode.Is(unicode.Mn, r):
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}
