package utils

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/pkoukk/tiktoken-go"
)

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

// NumTokens counts text tokens with the cl100k encoding. When the encoding
// cannot be loaded it falls back to a four-bytes-per-token estimate.
func NumTokens(text string) int {
	encoderOnce.Do(func() {
		tkm, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Warn("tiktoken unavailable, estimating tokens", "error", err)
			return
		}
		encoder = tkm
	})
	if encoder == nil {
		return EstimateTokens(text)
	}
	return len(encoder.Encode(text, nil, nil))
}

func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
