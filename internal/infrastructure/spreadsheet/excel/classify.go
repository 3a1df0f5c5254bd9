package excel

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"syscall"

	"github.com/kirillkom/edc-ingest/internal/infrastructure/resilience"
)

// ClassifyFileError separates momentary conditions (cloud-sync placeholders,
// exclusive locks, interrupted reads) from defects that retrying cannot fix
// (missing or corrupt workbooks).
func ClassifyFileError(err error) resilience.Classification {
	if err == nil {
		return resilience.Classification{}
	}

	if os.IsNotExist(err) || errors.Is(err, fs.ErrPermission) {
		return resilience.Classification{Retryable: false, RecordFailure: true}
	}
	if errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR) {
		return resilience.Classification{Retryable: true, RecordFailure: true}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not a valid zip"), strings.Contains(msg, "zip: not a valid"),
		strings.Contains(msg, "unsupported workbook"):
		return resilience.Classification{Retryable: false, RecordFailure: true}
	case strings.Contains(msg, "locked"), strings.Contains(msg, "temporarily unavailable"),
		strings.Contains(msg, "unexpected eof"):
		return resilience.Classification{Retryable: true, RecordFailure: true}
	default:
		return resilience.Classification{Retryable: true, RecordFailure: true}
	}
}
