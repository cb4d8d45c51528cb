package protocol

import (
	"fmt"
	"strings"

	"github.com/luxfi/log"

	"github.com/luxfi/fixinject/pkg/fileutil"
	"github.com/luxfi/fixinject/pkg/message"
)

// defaultHeaderLen is used when parsing loose bytes or text without a
// configured header length.
const defaultHeaderLen = 8

// byteHeaderXMLHandler implements the fixed-header binary format with a
// trailing XML text payload.
type byteHeaderXMLHandler struct {
	logger log.Logger
}

// NewByteHeaderXML returns the BYTE_HEADER_XML protocol handler.
func NewByteHeaderXML(logger log.Logger) Handler {
	return &byteHeaderXMLHandler{logger: logger}
}

func (h *byteHeaderXMLHandler) Name() string { return "BYTE_HEADER_XML" }

func (h *byteHeaderXMLHandler) WellFormed(data []byte) bool {
	return len(data) > 0
}

func (h *byteHeaderXMLHandler) Parse(data []byte) (message.Message, error) {
	if !h.WellFormed(data) {
		return nil, fmt.Errorf("%w: empty binary input", ErrMalformedMessage)
	}
	headerLen := defaultHeaderLen
	if len(data) < headerLen {
		headerLen = len(data)
	}
	return message.ParseFramedBinary(data, headerLen)
}

func (h *byteHeaderXMLHandler) ParseText(text string) (message.Message, error) {
	// Text input gets a zeroed header and the text as payload.
	return message.NewFramedBinary(make([]byte, defaultHeaderLen), text), nil
}

func (h *byteHeaderXMLHandler) ReadFile(path string, opts ReadOptions, emit func(message.Message)) error {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".xml") || strings.HasSuffix(lower, ".txt") {
		return h.readTextFile(path, opts, emit)
	}
	return h.readBinaryFile(path, opts, emit)
}

func (h *byteHeaderXMLHandler) readTextFile(path string, opts ReadOptions, emit func(message.Message)) error {
	return fileutil.ReadTextFile(path, opts.BufferSize, h.logger, func(line string) {
		s := strings.TrimSpace(line)
		if s == "" {
			return
		}
		m, err := h.ParseText(s)
		if err != nil {
			h.logger.Warn("failed to parse XML message", "error", err)
			return
		}
		if !opts.Validate || m.Valid() {
			emit(m)
		}
	})
}

func (h *byteHeaderXMLHandler) readBinaryFile(path string, opts ReadOptions, emit func(message.Message)) error {
	return fileutil.ReadBinaryFile(path, opts.BufferSize, opts.HeaderLength, h.logger, func(data []byte) {
		if !message.WellFormedFrame(data, opts.HeaderLength) {
			return
		}
		m, err := message.ParseFramedBinary(data, opts.HeaderLength)
		if err != nil {
			h.logger.Warn("failed to parse binary message", "path", path, "error", err)
			return
		}
		if !opts.Validate || m.Valid() {
			emit(m)
		}
	})
}

func (h *byteHeaderXMLHandler) Extensions() []string {
	return []string{"xml", "bin", "dat"}
}
