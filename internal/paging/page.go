package paging

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/google/uuid"
)

const (
	MAX_PAGE_SIZE    = 64 * 1024
	PAGE_HEADER_SIZE = 48
)

// Page is one file of a table log. Pages link to their neighbours by id.
type Page struct {
	id uuid.UUID

	Prev uuid.UUID
	Next uuid.UUID

	buf []byte
}

func NewPage(prev_page_id, next_page_id uuid.UUID) *Page {
	return &Page{uuid.New(), prev_page_id, next_page_id, []byte{}}
}

func (p *Page) ID() uuid.UUID { return p.id }

func (p *Page) Size() int { return len(p.buf) }

var ERR_INVALID_PAGE_HEADER = errors.New("invalid page headers")

func LoadPageUUID(base string, id uuid.UUID) (*Page, error) { return LoadPage(base, id.String()) }
func LoadPage(base string, id string) (*Page, error) {
	data, err := os.ReadFile(path.Join(base, id))
	if err != nil {
		return nil, err
	}
	if len(data) < PAGE_HEADER_SIZE {
		return nil, fmt.Errorf("%w: page %s is %d bytes", ERR_INVALID_PAGE_HEADER, id, len(data))
	}

	page_id, err := uuid.FromBytes(data[0:16])
	if err != nil {
		return nil, fmt.Errorf("%w: page ID: %s", ERR_INVALID_PAGE_HEADER, err)
	}
	prev_page_id, err := uuid.FromBytes(data[16:32])
	if err != nil {
		return nil, fmt.Errorf("%w: previous page ID: %s", ERR_INVALID_PAGE_HEADER, err)
	}
	next_page_id, err := uuid.FromBytes(data[32:48])
	if err != nil {
		return nil, fmt.Errorf("%w: next page ID: %s", ERR_INVALID_PAGE_HEADER, err)
	}

	if id != page_id.String() {
		return nil, fmt.Errorf("%w: page id mismatch %s != %s", ERR_INVALID_PAGE_HEADER, id, page_id)
	}

	return &Page{page_id, prev_page_id, next_page_id, data[PAGE_HEADER_SIZE:]}, nil
}

// The first 48 bytes are the page's own id followed by the previous and
// next page ids, 16 bytes each.
//
// The rest ({MAX_PAGE_SIZE}) is the page data.
func (page *Page) WriteToFile(base string) error {
	buf := make([]byte, 0, PAGE_HEADER_SIZE+len(page.buf))
	for _, id := range []uuid.UUID{page.id, page.Prev, page.Next} {
		b, err := id.MarshalBinary()
		if err != nil {
			return err
		}
		buf = append(buf, b...)
	}
	buf = append(buf, page.buf...)

	return os.WriteFile(path.Join(base, page.id.String()), buf, 0644)
}

var (
	ERR_PAGE_OVERFLOW = errors.New("page overflow")
	ERR_MAX_DATA_SIZE = errors.New("maximum data size exceeded")
)

const block_header_size = 2

func (p *Page) Push(data []byte) error {
	buf_size := len(p.buf)
	data_size := len(data)

	// check data size is less than uint16::MAX
	if int(uint16(data_size)) < data_size {
		return ERR_MAX_DATA_SIZE
	}

	// +2 bytes to account for the header
	if data_size+block_header_size+buf_size > MAX_PAGE_SIZE {
		return ERR_PAGE_OVERFLOW
	}

	// prefix each data block with its size
	header := make([]byte, block_header_size)
	binary.BigEndian.PutUint16(header, uint16(data_size))
	p.buf = append(p.buf, header...)
	p.buf = append(p.buf, data...)

	return nil
}

func (p *Page) NewReader() *PageReader {
	return &PageReader{nil, p, nil, nil}
}

type PageReader struct {
	r   *bufio.Reader
	p   *Page
	Buf []byte
	err error
}

// ReadNext moves to the next data block. It returns false at the end of
// the page or on a truncated block; Err tells them apart.
func (r *PageReader) ReadNext() bool {
	if r.r == nil {
		r.r = bufio.NewReader(bytes.NewReader(r.p.buf))
	}

	// decode the data block size from the header
	header := make([]byte, block_header_size)
	if _, err := io.ReadFull(r.r, header); err != nil {
		if err == io.ErrUnexpectedEOF {
			r.err = err
		}
		return false
	}
	size := binary.BigEndian.Uint16(header)

	buf := make([]byte, size)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.err = io.ErrUnexpectedEOF
		return false
	}
	r.Buf = buf
	return true
}

func (r *PageReader) Err() error { return r.err }
