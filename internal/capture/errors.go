package capture

import (
	"errors"
	"fmt"
)

// ErrorCode identifies which step of a capture session ended it.
type ErrorCode string

// ErrorCode constants. CodeOK is the only non-failure outcome.
const (
	CodeOK                          ErrorCode = "OK"
	CodeInputFormatNotFound         ErrorCode = "INPUT_FORMAT_NOT_FOUND"
	CodeOpenInputFailed             ErrorCode = "OPEN_INPUT_FAILED"
	CodeStreamInfoUnavailable       ErrorCode = "STREAM_INFO_UNAVAILABLE"
	CodeNoMediaStreamFound          ErrorCode = "NO_MEDIA_STREAM_FOUND"
	CodeDecoderNotFound             ErrorCode = "DECODER_NOT_FOUND"
	CodeDecoderParameterCopyFailed  ErrorCode = "DECODER_PARAMETER_COPY_FAILED"
	CodeDecoderOpenFailed           ErrorCode = "DECODER_OPEN_FAILED"
	CodePacketReadFailed            ErrorCode = "PACKET_READ_FAILED"
	CodeUnsupportedColorSubsampling ErrorCode = "UNSUPPORTED_COLOR_SUBSAMPLING"

	CodeInvalidConfig       ErrorCode = "INVALID_CONFIG"
	CodeDecodeFailed        ErrorCode = "DECODE_FAILED"
	CodeConverterInitFailed ErrorCode = "CONVERTER_INIT_FAILED"
	CodeEncoderInitFailed   ErrorCode = "ENCODER_INIT_FAILED"
	CodeFrameLayoutInvalid  ErrorCode = "FRAME_LAYOUT_INVALID"
	CodeConvertFailed       ErrorCode = "CONVERT_FAILED"
	CodeEncodeFailed        ErrorCode = "ENCODE_FAILED"
)

// ExitCode maps a terminal code onto a process exit status.
func (c ErrorCode) ExitCode() int {
	if c == CodeOK {
		return 0
	}
	return 1
}

func (c ErrorCode) String() string {
	return string(c)
}

// ErrNotReady is returned by Source.PollFrame when the decoder needs more
// packets before it can emit another frame. It is not a failure.
var ErrNotReady = errors.New("decoder needs more input")

// Error is a capture failure tagged with the step that produced it.
type Error struct {
	Code ErrorCode
	Op   string
	Err  error
}

// NewError creates a new capture error.
func NewError(code ErrorCode, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Op)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HasCode checks if the error matches a specific code.
func (e *Error) HasCode(code ErrorCode) bool {
	return e.Code == code
}

// CodeOf extracts the ErrorCode carried by err. A nil error is CodeOK and an
// untagged error is reported as fallback.
func CodeOf(err error, fallback ErrorCode) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return fallback
}

// wrap tags err with code unless it already carries one.
func wrap(err error, code ErrorCode, op string) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return NewError(code, op, err)
}
