package workspace

import (
	"bufio"
	"io"
	"net/http"
	"strings"
)

// sniffLen is how many leading bytes content detection looks at.
const sniffLen = 512

// Candidate is one file offered for intake. Reader must stay readable until
// Intake returns.
type Candidate struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

type classified struct {
	name        string
	contentType string
	body        io.Reader
}

// IsImageType reports whether a mime type names an image.
func IsImageType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

// detectImageType trusts a declared image type. A missing or generic type is
// sniffed from the content instead.
func detectImageType(declared string, head []byte) (string, bool) {
	declared = strings.TrimSpace(declared)
	if IsImageType(declared) {
		return declared, true
	}
	if declared != "" && declared != "application/octet-stream" {
		return "", false
	}
	sniffed := http.DetectContentType(head)
	if IsImageType(sniffed) {
		return sniffed, true
	}
	return "", false
}

// classify splits candidates into images and rejected names.
func classify(candidates []Candidate) ([]classified, []string) {
	var accepted []classified
	var rejected []string

	for _, c := range candidates {
		br := bufio.NewReaderSize(c.Reader, sniffLen)
		head, _ := br.Peek(sniffLen)
		ct, ok := detectImageType(c.ContentType, head)
		if !ok {
			rejected = append(rejected, c.Name)
			continue
		}
		accepted = append(accepted, classified{name: c.Name, contentType: ct, body: br})
	}
	return accepted, rejected
}
