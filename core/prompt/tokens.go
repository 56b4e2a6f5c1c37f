package prompt

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter approximates the token count of a text for the downstream model
type TokenCounter interface {
	Count(text string) int
}

// NewTokenCounter returns the counter for a tokenizer setting: "" or
// "estimate" selects the estimator, a name ending in "_base" a tiktoken
// encoding, anything else a model name known to tiktoken.
func NewTokenCounter(name string) TokenCounter {
	switch {
	case name == "" || name == "estimate":
		return EstimateCounter{}
	case strings.HasSuffix(name, "_base"):
		return &TiktokenCounter{encoding: name}
	default:
		return &TiktokenCounter{model: name}
	}
}

// EstimateCounter estimates one token per four characters
type EstimateCounter struct{}

// Count returns ceil(runes/4)
func (EstimateCounter) Count(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// TiktokenCounter counts tokens with a tiktoken encoding. The encoding is
// loaded on first use; if it cannot be loaded the estimator is used instead.
type TiktokenCounter struct {
	model    string
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// NewTiktokenCounter creates a counter for a tiktoken encoding such as cl100k_base
func NewTiktokenCounter(encoding string) *TiktokenCounter {
	return &TiktokenCounter{encoding: encoding}
}

// Init loads the encoding. It may download the encoding data on first use.
func (c *TiktokenCounter) Init() error {
	c.once.Do(func() {
		var enc *tiktoken.Tiktoken
		var err error
		if c.model != "" {
			enc, err = tiktoken.EncodingForModel(c.model)
		} else {
			enc, err = tiktoken.GetEncoding(c.encoding)
		}
		if err != nil {
			c.initErr = fmt.Errorf("error loading tiktoken encoding %s%s: %w", c.model, c.encoding, err)
			return
		}
		c.enc = enc
	})
	return c.initErr
}

// Count returns the number of tokens of text
func (c *TiktokenCounter) Count(text string) int {
	if err := c.Init(); err != nil {
		return EstimateCounter{}.Count(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}
