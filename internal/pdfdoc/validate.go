// Package pdfdoc implements the PDF-facing stages of the pipeline:
// validation (C1), rasterization (C2), and reconstruction (C10).
//
// Grounded on the teacher's detectMimeTypeFromMagicBytes
// (internal/processor/processor.go) for the general "read a small header
// window, check magic bytes" technique, redirected here to the PDF-specific
// %PDF- header and trailer /Encrypt scan; page geometry is read through the
// pure-Go github.com/ledongthuc/pdf library (grounded on
// casadeprovision2016-nCotAi/services/go-pdf-processor, which uses the same
// package for text extraction).
package pdfdoc

import (
	"bytes"
	"os"

	"github.com/JAaron93/phenomenallayout/internal/apperr"
	pdflib "github.com/ledongthuc/pdf"
)

const (
	headerWindow = 1024
	tailWindow   = 1024
)

var pdfHeader = []byte("%PDF-")

// Validate checks file format, header, encryption, and structural integrity
// per SPEC_FULL.md §4.1. It reads only the first and last 1 KiB of the file
// for header/EOF detection; the encryption check additionally opens the
// document to inspect its trailer, since that is not reliably determinable
// from the tail window alone.
func Validate(jobID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperr.NewFileNotFound(jobID, path)
		}
		return apperr.NewInternal(jobID, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return apperr.NewInternal(jobID, err)
	}
	if info.Size() == 0 {
		return apperr.NewCorrupted(jobID, "empty file")
	}

	head := make([]byte, headerWindow)
	n, _ := f.ReadAt(head, 0)
	head = head[:n]
	if !bytes.Contains(head, pdfHeader) {
		return apperr.NewFormatUnsupported(jobID, "missing %PDF- header")
	}

	tailSize := int64(tailWindow)
	if info.Size() < tailSize {
		tailSize = info.Size()
	}
	tail := make([]byte, tailSize)
	if _, err := f.ReadAt(tail, info.Size()-tailSize); err != nil {
		return apperr.NewInternal(jobID, err)
	}
	if !bytes.Contains(tail, []byte("%%EOF")) {
		return apperr.NewCorrupted(jobID, "missing %%EOF marker")
	}

	pf, reader, err := pdflib.Open(path)
	if err != nil {
		if looksEncrypted(err) {
			return apperr.NewEncrypted(jobID)
		}
		return apperr.NewCorrupted(jobID, err.Error())
	}
	defer pf.Close()
	if reader.NumPage() < 1 {
		return apperr.NewCorrupted(jobID, "zero pages")
	}

	return nil
}

func looksEncrypted(err error) bool {
	msg := err.Error()
	return bytes.Contains([]byte(msg), []byte("encrypt")) || bytes.Contains([]byte(msg), []byte("Encrypt"))
}

// PageCount returns the number of pages in a previously validated document.
func PageCount(jobID, path string) (int, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return 0, apperr.NewCorrupted(jobID, err.Error())
	}
	defer f.Close()
	return reader.NumPage(), nil
}

// PageDimensions returns the width/height in points of the given 1-indexed
// page, falling back to US Letter (612x792pt) if the page's MediaBox is
// absent.
func PageDimensions(jobID, path string, pageNum int) (width, height float64, err error) {
	f, reader, openErr := pdflib.Open(path)
	if openErr != nil {
		return 0, 0, apperr.NewCorrupted(jobID, openErr.Error())
	}
	defer f.Close()
	if pageNum < 1 || pageNum > reader.NumPage() {
		return 0, 0, apperr.NewInvalidInput(jobID, "page number out of range")
	}
	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return 612, 792, nil
	}
	box := page.V.Key("MediaBox")
	if box.Len() != 4 {
		return 612, 792, nil
	}
	x0 := box.Index(0).Float64()
	y0 := box.Index(1).Float64()
	x1 := box.Index(2).Float64()
	y1 := box.Index(3).Float64()
	return x1 - x0, y1 - y0, nil
}
