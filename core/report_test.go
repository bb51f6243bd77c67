package core

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinterLine(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Writer: &buf}

	p.Line(StatusOK, "Cleaned %s", "a.jpg")
	assert.Contains(t, buf.String(), "[OK]")
	assert.Contains(t, buf.String(), "Cleaned a.jpg")
}

func TestPrinterResult(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Writer: &buf}

	p.Result(Result{Status: StatusError, Err: errors.New("boom")})
	assert.Contains(t, buf.String(), "[ERROR]")
	assert.Contains(t, buf.String(), "boom")

	buf.Reset()
	p.Result(Result{Status: StatusSkip, Message: "Directory: x"})
	assert.Contains(t, buf.String(), "[SKIP]")
	assert.Contains(t, buf.String(), "Directory: x")
}

func TestPrinterQuietStillEmitsRaw(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Writer: &buf, Quiet: true}

	p.Line(StatusInfo, "hidden")
	p.Raw("path.jpg")
	assert.Equal(t, "path.jpg\n", buf.String())
}
