package protocol

import (
	"fmt"
	"strings"

	"github.com/luxfi/log"

	"github.com/luxfi/fixinject/pkg/fileutil"
	"github.com/luxfi/fixinject/pkg/message"
)

// fixHandler implements the FIX tag-value wire format.
type fixHandler struct {
	logger log.Logger
}

// NewFIX returns the FIX protocol handler.
func NewFIX(logger log.Logger) Handler {
	return &fixHandler{logger: logger}
}

func (h *fixHandler) Name() string { return "FIX" }

func (h *fixHandler) WellFormed(data []byte) bool {
	return message.WellFormedTagValue(string(data))
}

func (h *fixHandler) Parse(data []byte) (message.Message, error) {
	return h.ParseText(string(data))
}

func (h *fixHandler) ParseText(text string) (message.Message, error) {
	if !message.WellFormedTagValue(text) {
		return nil, fmt.Errorf("%w: not a FIX tag-value message", ErrMalformedMessage)
	}
	return message.NewTagValue(text), nil
}

func (h *fixHandler) ReadFile(path string, opts ReadOptions, emit func(message.Message)) error {
	return fileutil.ReadTextFile(path, opts.BufferSize, h.logger, func(line string) {
		s := strings.TrimSpace(line)
		if s == "" || !message.WellFormedTagValue(s) {
			return
		}
		m, err := h.ParseText(s)
		if err != nil {
			h.logger.Warn("failed to parse FIX message", "error", err)
			return
		}
		if !opts.Validate || m.Valid() {
			emit(m)
		}
	})
}

func (h *fixHandler) Extensions() []string {
	return []string{"txt", "fix", "log"}
}
